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
	"github.com/dapoer-pos/api/internal/middleware"
	"github.com/dapoer-pos/api/internal/service"
)

// ShiftServicer is the service surface the shift handler needs.
type ShiftServicer interface {
	Open(ctx context.Context, cashierID uuid.UUID, openingFloat string) (database.Shift, error)
	Close(ctx context.Context, shiftID, cashierID uuid.UUID, actualCash string) (database.Shift, error)
	AddCashFlow(ctx context.Context, shiftID uuid.UUID, direction, label, amount string) (database.CashFlow, error)
	DeleteCashFlow(ctx context.Context, id uuid.UUID) error
	GetSummary(ctx context.Context, shiftID uuid.UUID) (*service.ShiftSummary, error)
}

// ShiftStore is the read-only query subset for shift listings.
// Satisfied by *database.Queries; narrow interface for testability.
type ShiftStore interface {
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	GetOpenShiftByCashier(ctx context.Context, cashierID uuid.UUID) (database.Shift, error)
	ListShifts(ctx context.Context, arg database.ListShiftsParams) ([]database.Shift, error)
	ListShiftsByCashier(ctx context.Context, arg database.ListShiftsByCashierParams) ([]database.Shift, error)
	ListCashFlowsByShift(ctx context.Context, shiftID uuid.UUID) ([]database.CashFlow, error)
}

type ShiftHandler struct {
	svc   ShiftServicer
	store ShiftStore
}

func NewShiftHandler(svc ShiftServicer, store ShiftStore) *ShiftHandler {
	return &ShiftHandler{svc: svc, store: store}
}

func (h *ShiftHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/active", h.Active)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/close", h.Close)
	r.Get("/{id}/summary", h.Summary)
	r.Post("/{id}/cash-flows", h.AddCashFlow)
	r.Get("/{id}/cash-flows", h.ListCashFlows)
	r.Delete("/cash-flows/{id}", h.DeleteCashFlow)
}

type openShiftRequest struct {
	OpeningFloat string `json:"opening_float"`
}

type closeShiftRequest struct {
	ActualCash string `json:"actual_cash"`
}

type cashFlowRequest struct {
	Direction string `json:"direction"`
	Label     string `json:"label"`
	Amount    string `json:"amount"`
}

type shiftResponse struct {
	ID           string     `json:"id"`
	CashierID    string     `json:"cashier_id"`
	Status       string     `json:"status"`
	OpeningFloat string     `json:"opening_float"`
	TotalCash    string     `json:"total_cash"`
	TotalNonCash string     `json:"total_non_cash"`
	CashIn       string     `json:"cash_in"`
	CashOut      string     `json:"cash_out"`
	ExpectedCash string     `json:"expected_cash"`
	ActualCash   *string    `json:"actual_cash"`
	Difference   *string    `json:"difference"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
}

func toShiftResponse(s database.Shift) shiftResponse {
	resp := shiftResponse{
		ID:           s.ID.String(),
		CashierID:    s.CashierID.String(),
		Status:       s.Status,
		OpeningFloat: numericToString(s.OpeningFloat),
		TotalCash:    numericToString(s.TotalCash),
		TotalNonCash: numericToString(s.TotalNonCash),
		CashIn:       numericToString(s.CashIn),
		CashOut:      numericToString(s.CashOut),
		ExpectedCash: numericToString(s.ExpectedCash),
		ActualCash:   numericToStringPtr(s.ActualCash),
		Difference:   numericToStringPtr(s.Difference),
		StartedAt:    s.StartedAt,
	}
	if s.EndedAt.Valid {
		resp.EndedAt = &s.EndedAt.Time
	}
	return resp
}

type cashFlowResponse struct {
	ID        string    `json:"id"`
	ShiftID   string    `json:"shift_id"`
	Direction string    `json:"direction"`
	Label     string    `json:"label"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func toCashFlowResponse(f database.CashFlow) cashFlowResponse {
	return cashFlowResponse{
		ID:        f.ID.String(),
		ShiftID:   f.ShiftID.String(),
		Direction: f.Direction,
		Label:     f.Label,
		Amount:    numericToString(f.Amount),
		CreatedAt: f.CreatedAt,
	}
}

func (h *ShiftHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req openShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	shift, err := h.svc.Open(r.Context(), claims.UserID, req.OpeningFloat)
	if err != nil {
		writeServiceError(w, "opening shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftResponse(shift))
}

func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	var shifts []database.Shift
	var err error
	if v := r.URL.Query().Get("cashier_id"); v != "" {
		cashierID, parseErr := uuid.Parse(v)
		if parseErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cashier_id"})
			return
		}
		shifts, err = h.store.ListShiftsByCashier(r.Context(), database.ListShiftsByCashierParams{
			CashierID: cashierID,
			Limit:     int32(limit),
			Offset:    int32(offset),
		})
	} else {
		shifts, err = h.store.ListShifts(r.Context(), database.ListShiftsParams{
			Limit:  int32(limit),
			Offset: int32(offset),
		})
	}
	if err != nil {
		writeServiceError(w, "listing shifts", err)
		return
	}

	resp := make([]shiftResponse, len(shifts))
	for i, s := range shifts {
		resp[i] = toShiftResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Active returns the caller's open shift, so a POS terminal can resume an
// in-progress drawer session after a reload or re-login.
func (h *ShiftHandler) Active(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	shift, err := h.store.GetOpenShiftByCashier(r.Context(), claims.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open shift"})
		return
	}
	if err != nil {
		writeServiceError(w, "getting active shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftResponse(shift))
}

func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	shift, err := h.store.GetShift(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "shift not found"})
			return
		}
		writeServiceError(w, "getting shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftResponse(shift))
}

func (h *ShiftHandler) Close(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	var req closeShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	shift, err := h.svc.Close(r.Context(), id, claims.UserID, req.ActualCash)
	if err != nil {
		writeServiceError(w, "closing shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftResponse(shift))
}

type paymentTotalResponse struct {
	PaymentMethod string `json:"payment_method"`
	SaleCount     int64  `json:"sale_count"`
	Total         string `json:"total"`
}

type shiftSummaryResponse struct {
	Shift         shiftResponse          `json:"shift"`
	PaymentTotals []paymentTotalResponse `json:"payment_totals"`
	CashFlows     []cashFlowResponse     `json:"cash_flows"`
}

func (h *ShiftHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	summary, err := h.svc.GetSummary(r.Context(), id)
	if err != nil {
		writeServiceError(w, "getting shift summary", err)
		return
	}

	totals := make([]paymentTotalResponse, len(summary.PaymentTotals))
	for i, t := range summary.PaymentTotals {
		totals[i] = paymentTotalResponse{
			PaymentMethod: t.PaymentMethod,
			SaleCount:     t.SaleCount,
			Total:         t.Total.StringFixed(2),
		}
	}
	flows := make([]cashFlowResponse, len(summary.CashFlows))
	for i, f := range summary.CashFlows {
		flows[i] = toCashFlowResponse(f)
	}

	writeJSON(w, http.StatusOK, shiftSummaryResponse{
		Shift:         toShiftResponse(summary.Shift),
		PaymentTotals: totals,
		CashFlows:     flows,
	})
}

func (h *ShiftHandler) AddCashFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	var req cashFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	flow, err := h.svc.AddCashFlow(r.Context(), id, req.Direction, req.Label, req.Amount)
	if err != nil {
		writeServiceError(w, "adding cash flow", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashFlowResponse(flow))
}

func (h *ShiftHandler) ListCashFlows(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shift id"})
		return
	}

	flows, err := h.store.ListCashFlowsByShift(r.Context(), id)
	if err != nil {
		writeServiceError(w, "listing cash flows", err)
		return
	}

	resp := make([]cashFlowResponse, len(flows))
	for i, f := range flows {
		resp[i] = toCashFlowResponse(f)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShiftHandler) DeleteCashFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cash flow id"})
		return
	}

	if err := h.svc.DeleteCashFlow(r.Context(), id); err != nil {
		writeServiceError(w, "deleting cash flow", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
