package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/enum"
	"github.com/dapoer-pos/api/internal/middleware"
	"github.com/dapoer-pos/api/internal/service"
)

// StockServicer is the service surface the stock handler needs.
type StockServicer interface {
	ResolveIngredientNeeds(ctx context.Context, productID uuid.UUID, quantity int32) ([]service.IngredientNeed, error)
	RecordMovement(ctx context.Context, req service.MovementRequest) (database.StockMovement, error)
	Adjust(ctx context.Context, req service.AdjustmentRequest) (database.StockMovement, error)
}

// IngredientStore is the read-only query subset for ingredient views.
// Satisfied by *database.Queries; narrow interface for testability.
type IngredientStore interface {
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	ListStockMovementsByIngredient(ctx context.Context, arg database.ListStockMovementsByIngredientParams) ([]database.StockMovement, error)
	ListLowStockIngredients(ctx context.Context) ([]database.Ingredient, error)
}

type StockHandler struct {
	svc   StockServicer
	store IngredientStore
}

func NewStockHandler(svc StockServicer, store IngredientStore) *StockHandler {
	return &StockHandler{svc: svc, store: store}
}

// RegisterRoutes mounts the ingredient-scoped stock endpoints. Manual
// stock mutations are back-office operations, so they are role-gated.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/low-stock", h.ListLowStock)
	r.Get("/{id}", h.GetIngredient)
	r.Get("/{id}/movements", h.ListMovements)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager))
		r.Post("/{id}/movements", h.RecordMovement)
		r.Post("/{id}/adjust", h.Adjust)
	})
}

// RegisterProductRoutes mounts the recipe resolver under /products.
func (h *StockHandler) RegisterProductRoutes(r chi.Router) {
	r.Get("/{id}/ingredient-needs", h.ResolveNeeds)
}

type ingredientResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	CurrentStock string    `json:"current_stock"`
	MinStock     string    `json:"min_stock"`
	CostPerUnit  string    `json:"cost_per_unit"`
	IsActive     bool      `json:"is_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toIngredientResponse(ing database.Ingredient) ingredientResponse {
	return ingredientResponse{
		ID:           ing.ID.String(),
		Name:         ing.Name,
		Unit:         ing.Unit,
		CurrentStock: numericToStockString(ing.CurrentStock),
		MinStock:     numericToStockString(ing.MinStock),
		CostPerUnit:  numericToString(ing.CostPerUnit),
		IsActive:     ing.IsActive,
		UpdatedAt:    ing.UpdatedAt,
	}
}

type movementResponse struct {
	ID            string    `json:"id"`
	IngredientID  string    `json:"ingredient_id"`
	Type          string    `json:"type"`
	Quantity      string    `json:"quantity"`
	StockBefore   string    `json:"stock_before"`
	StockAfter    string    `json:"stock_after"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   *string   `json:"reference_id"`
	Note          *string   `json:"note"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMovementResponse(m database.StockMovement) movementResponse {
	resp := movementResponse{
		ID:            m.ID.String(),
		IngredientID:  m.IngredientID.String(),
		Type:          m.Type,
		Quantity:      numericToStockString(m.Quantity),
		StockBefore:   numericToStockString(m.StockBefore),
		StockAfter:    numericToStockString(m.StockAfter),
		ReferenceType: m.ReferenceType,
		Note:          textPtr(m.Note),
		CreatedBy:     m.CreatedBy.String(),
		CreatedAt:     m.CreatedAt,
	}
	if m.ReferenceID.Valid {
		s := uuid.UUID(m.ReferenceID.Bytes).String()
		resp.ReferenceID = &s
	}
	return resp
}

type recordMovementRequest struct {
	Type          string `json:"type"`
	Quantity      string `json:"quantity"`
	ReferenceType string `json:"reference_type"`
	Note          string `json:"note"`
}

type adjustRequest struct {
	NewQuantity string `json:"new_quantity"`
	Note        string `json:"note"`
}

func (h *StockHandler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient id"})
		return
	}

	ing, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		writeServiceError(w, "getting ingredient", err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientResponse(ing))
}

func (h *StockHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListLowStockIngredients(r.Context())
	if err != nil {
		writeServiceError(w, "listing low stock", err)
		return
	}

	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = toIngredientResponse(ing)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient id"})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	movements, err := h.store.ListStockMovementsByIngredient(r.Context(), database.ListStockMovementsByIngredientParams{
		IngredientID: id,
		Limit:        int32(limit),
	})
	if err != nil {
		writeServiceError(w, "listing stock movements", err)
		return
	}

	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = toMovementResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StockHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient id"})
		return
	}

	var req recordMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	movement, err := h.svc.RecordMovement(r.Context(), service.MovementRequest{
		IngredientID:  id,
		Type:          req.Type,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		Note:          req.Note,
		ActorID:       claims.UserID,
	})
	if err != nil {
		writeServiceError(w, "recording stock movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient id"})
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	movement, err := h.svc.Adjust(r.Context(), service.AdjustmentRequest{
		IngredientID: id,
		NewQuantity:  req.NewQuantity,
		Note:         req.Note,
		ActorID:      claims.UserID,
	})
	if err != nil {
		writeServiceError(w, "adjusting stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementResponse(movement))
}

type ingredientNeedResponse struct {
	IngredientID string `json:"ingredient_id"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	Needed       string `json:"needed"`
	Available    string `json:"available"`
	Sufficient   bool   `json:"sufficient"`
}

func (h *StockHandler) ResolveNeeds(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	quantity := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
			return
		}
		quantity = n
	}

	needs, err := h.svc.ResolveIngredientNeeds(r.Context(), id, int32(quantity))
	if err != nil {
		writeServiceError(w, "resolving ingredient needs", err)
		return
	}

	resp := make([]ingredientNeedResponse, len(needs))
	for i, n := range needs {
		resp[i] = ingredientNeedResponse{
			IngredientID: n.IngredientID.String(),
			Name:         n.IngredientName,
			Unit:         n.Unit,
			Needed:       n.Needed.StringFixed(3),
			Available:    n.Available.StringFixed(3),
			Sufficient:   n.Available.GreaterThanOrEqual(n.Needed),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
