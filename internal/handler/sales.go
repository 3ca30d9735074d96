package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/middleware"
	"github.com/dapoer-pos/api/internal/service"
	"github.com/dapoer-pos/api/internal/ws"
)

// SaleServicer is the service surface the sale handler needs.
type SaleServicer interface {
	CreateSale(ctx context.Context, req service.CreateSaleRequest) (*service.CreateSaleResult, error)
	DeleteSale(ctx context.Context, saleID uuid.UUID) error
}

// SaleStore is the read-only query subset for sale listings.
// Satisfied by *database.Queries; narrow interface for testability.
type SaleStore interface {
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ListSalesByShift(ctx context.Context, shiftID uuid.UUID) ([]database.Sale, error)
	ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
}

// Broadcaster pushes events to connected POS terminals.
type Broadcaster interface {
	Broadcast(event ws.Event)
}

type SaleHandler struct {
	svc   SaleServicer
	store SaleStore
	hub   Broadcaster
}

func NewSaleHandler(svc SaleServicer, store SaleStore, hub Broadcaster) *SaleHandler {
	return &SaleHandler{svc: svc, store: store, hub: hub}
}

func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.ListByShift)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

type createSaleItemRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int32  `json:"quantity"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	Note          string `json:"note"`
}

type createSaleRequest struct {
	ShiftID       string                  `json:"shift_id"`
	OrderType     string                  `json:"order_type"`
	TableNumber   string                  `json:"table_number"`
	PaymentMethod string                  `json:"payment_method"`
	DiscountType  string                  `json:"discount_type"`
	DiscountValue string                  `json:"discount_value"`
	PaidAmount    string                  `json:"paid_amount"`
	Note          string                  `json:"note"`
	Items         []createSaleItemRequest `json:"items"`
}

type saleItemResponse struct {
	ID             string  `json:"id"`
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	UnitPrice      string  `json:"unit_price"`
	Quantity       int32   `json:"quantity"`
	DiscountType   *string `json:"discount_type"`
	DiscountAmount string  `json:"discount_amount"`
	Subtotal       string  `json:"subtotal"`
	Total          string  `json:"total"`
	Note           *string `json:"note"`
}

type saleResponse struct {
	ID             string             `json:"id"`
	ShiftID        string             `json:"shift_id"`
	CashierID      string             `json:"cashier_id"`
	SaleNumber     string             `json:"sale_number"`
	OrderType      string             `json:"order_type"`
	TableNumber    *string            `json:"table_number"`
	PaymentMethod  string             `json:"payment_method"`
	Status         string             `json:"status"`
	Subtotal       string             `json:"subtotal"`
	DiscountType   *string            `json:"discount_type"`
	DiscountAmount string             `json:"discount_amount"`
	Total          string             `json:"total"`
	PaidAmount     string             `json:"paid_amount"`
	ChangeAmount   string             `json:"change_amount"`
	Note           *string            `json:"note"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []saleItemResponse `json:"items,omitempty"`
}

func toSaleItemResponse(it database.SaleItem) saleItemResponse {
	return saleItemResponse{
		ID:             it.ID.String(),
		ProductID:      it.ProductID.String(),
		ProductName:    it.ProductName,
		UnitPrice:      numericToString(it.UnitPrice),
		Quantity:       it.Quantity,
		DiscountType:   textPtr(it.DiscountType),
		DiscountAmount: numericToString(it.DiscountAmount),
		Subtotal:       numericToString(it.Subtotal),
		Total:          numericToString(it.Total),
		Note:           textPtr(it.Note),
	}
}

func toSaleResponse(s database.Sale, items []database.SaleItem) saleResponse {
	resp := saleResponse{
		ID:             s.ID.String(),
		ShiftID:        s.ShiftID.String(),
		CashierID:      s.CashierID.String(),
		SaleNumber:     s.SaleNumber,
		OrderType:      s.OrderType,
		TableNumber:    textPtr(s.TableNumber),
		PaymentMethod:  s.PaymentMethod,
		Status:         s.Status,
		Subtotal:       numericToString(s.Subtotal),
		DiscountType:   textPtr(s.DiscountType),
		DiscountAmount: numericToString(s.DiscountAmount),
		Total:          numericToString(s.Total),
		PaidAmount:     numericToString(s.PaidAmount),
		ChangeAmount:   numericToString(s.ChangeAmount),
		Note:           textPtr(s.Note),
		CreatedAt:      s.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, toSaleItemResponse(it))
	}
	return resp
}

type lowStockResponse struct {
	IngredientID string `json:"ingredient_id"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	CurrentStock string `json:"current_stock"`
	MinStock     string `json:"min_stock"`
}

type createSaleResponse struct {
	saleResponse
	LowStock []lowStockResponse `json:"low_stock"`
}

func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	svcReq := service.CreateSaleRequest{
		ShiftID:       shiftID,
		CashierID:     claims.UserID,
		OrderType:     req.OrderType,
		TableNumber:   req.TableNumber,
		PaymentMethod: req.PaymentMethod,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		PaidAmount:    req.PaidAmount,
		Note:          req.Note,
	}
	for _, it := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateSaleItemRequest{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue,
			Note:          it.Note,
		})
	}

	result, err := h.svc.CreateSale(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, "creating sale", err)
		return
	}

	h.broadcastSaleCompleted(result.Sale)

	resp := createSaleResponse{saleResponse: toSaleResponse(result.Sale, result.Items)}
	for _, alert := range result.LowStock {
		low := lowStockResponse{
			IngredientID: alert.IngredientID.String(),
			Name:         alert.Name,
			Unit:         alert.Unit,
			CurrentStock: alert.CurrentStock.StringFixed(3),
			MinStock:     alert.MinStock.StringFixed(3),
		}
		resp.LowStock = append(resp.LowStock, low)
		h.broadcastLowStock(low)
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *SaleHandler) broadcastSaleCompleted(s database.Sale) {
	payload, err := json.Marshal(map[string]string{
		"id":             s.ID.String(),
		"shift_id":       s.ShiftID.String(),
		"sale_number":    s.SaleNumber,
		"total":          numericToString(s.Total),
		"payment_method": s.PaymentMethod,
	})
	if err != nil {
		log.Printf("ERROR: marshaling sale event: %v", err)
		return
	}
	h.hub.Broadcast(ws.Event{Type: "sale.completed", Payload: payload})
}

func (h *SaleHandler) broadcastLowStock(low lowStockResponse) {
	payload, err := json.Marshal(low)
	if err != nil {
		log.Printf("ERROR: marshaling low stock event: %v", err)
		return
	}
	h.hub.Broadcast(ws.Event{Type: "stock.low", Payload: payload})
}

func (h *SaleHandler) ListByShift(w http.ResponseWriter, r *http.Request) {
	shiftID, err := uuid.Parse(r.URL.Query().Get("shift_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "shift_id query parameter is required"})
		return
	}

	sales, err := h.store.ListSalesByShift(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, "listing sales", err)
		return
	}

	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = toSaleResponse(s, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale id"})
		return
	}

	sale, err := h.store.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		writeServiceError(w, "getting sale", err)
		return
	}

	items, err := h.store.ListSaleItemsBySale(r.Context(), id)
	if err != nil {
		writeServiceError(w, "listing sale items", err)
		return
	}

	writeJSON(w, http.StatusOK, toSaleResponse(sale, items))
}

func (h *SaleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale id"})
		return
	}

	if err := h.svc.DeleteSale(r.Context(), id); err != nil {
		writeServiceError(w, "deleting sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
