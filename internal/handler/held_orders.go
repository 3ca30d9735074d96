package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dapoer-pos/api/internal/middleware"
	"github.com/dapoer-pos/api/internal/service"
)

// HeldOrderServicer is the service surface the held-order handler needs.
type HeldOrderServicer interface {
	Save(ctx context.Context, req service.SaveHeldOrderRequest) (*service.SaveHeldOrderResult, error)
	List(ctx context.Context, shiftID uuid.UUID) ([]service.HeldOrderView, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type HeldOrderHandler struct {
	svc HeldOrderServicer
}

func NewHeldOrderHandler(svc HeldOrderServicer) *HeldOrderHandler {
	return &HeldOrderHandler{svc: svc}
}

func (h *HeldOrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Save)
	r.Get("/", h.ListByShift)
	r.Delete("/{id}", h.Delete)
}

type heldOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int32  `json:"quantity"`
	Note      string `json:"note"`
}

type saveHeldOrderRequest struct {
	ShiftID     string                 `json:"shift_id"`
	OrderType   string                 `json:"order_type"`
	TableNumber string                 `json:"table_number"`
	Note        string                 `json:"note"`
	Items       []heldOrderItemRequest `json:"items"`
}

type heldOrderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int32  `json:"quantity"`
	Note      string `json:"note"`
}

type heldOrderResponse struct {
	ID          string                  `json:"id"`
	ShiftID     string                  `json:"shift_id"`
	CashierID   string                  `json:"cashier_id"`
	OrderType   string                  `json:"order_type"`
	TableNumber string                  `json:"table_number"`
	Items       []heldOrderItemResponse `json:"items"`
	Total       string                  `json:"total"`
	Note        string                  `json:"note"`
	CreatedAt   time.Time               `json:"created_at"`
	Duplicate   bool                    `json:"duplicate,omitempty"`
}

func toHeldOrderItemResponses(items []service.HeldOrderItem) []heldOrderItemResponse {
	resp := make([]heldOrderItemResponse, len(items))
	for i, it := range items {
		resp[i] = heldOrderItemResponse{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Price:     it.Price.StringFixed(2),
			Quantity:  it.Quantity,
			Note:      it.Note,
		}
	}
	return resp
}

func (h *HeldOrderHandler) Save(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req saveHeldOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	svcReq := service.SaveHeldOrderRequest{
		ShiftID:     shiftID,
		CashierID:   claims.UserID,
		OrderType:   req.OrderType,
		TableNumber: req.TableNumber,
		Note:        req.Note,
	}
	for _, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
			return
		}
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item price"})
			return
		}
		svcReq.Items = append(svcReq.Items, service.HeldOrderItem{
			ProductID: productID,
			Name:      it.Name,
			Price:     price,
			Quantity:  it.Quantity,
			Note:      it.Note,
		})
	}

	result, err := h.svc.Save(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, "saving held order", err)
		return
	}

	order := result.HeldOrder
	resp := heldOrderResponse{
		ID:          order.ID.String(),
		ShiftID:     order.ShiftID.String(),
		CashierID:   order.CashierID.String(),
		OrderType:   order.OrderType,
		TableNumber: order.TableNumber.String,
		Items:       toHeldOrderItemResponses(svcReq.Items),
		Total:       numericToString(order.Total),
		Note:        order.Note.String,
		CreatedAt:   order.CreatedAt,
		Duplicate:   result.Duplicate,
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *HeldOrderHandler) ListByShift(w http.ResponseWriter, r *http.Request) {
	shiftID, err := uuid.Parse(r.URL.Query().Get("shift_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "shift_id query parameter is required"})
		return
	}

	orders, err := h.svc.List(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, "listing held orders", err)
		return
	}

	resp := make([]heldOrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = heldOrderResponse{
			ID:          o.ID.String(),
			ShiftID:     o.ShiftID.String(),
			CashierID:   o.CashierID.String(),
			OrderType:   o.OrderType,
			TableNumber: o.TableNumber,
			Items:       toHeldOrderItemResponses(o.Items),
			Total:       o.Total.StringFixed(2),
			Note:        o.Note,
			CreatedAt:   o.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HeldOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid held order id"})
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "deleting held order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
