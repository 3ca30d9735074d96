package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/enum"
)

// heldOrderDedupWindow absorbs rapid double-submits of the same cart. It is
// a heuristic, not a lock: two genuinely different saves with identical
// content inside the window collapse into one, which is accepted behavior.
const heldOrderDedupWindow = 5 * time.Second

// HeldOrderStore defines the DB methods for parked carts.
// Satisfied by *database.Queries.
type HeldOrderStore interface {
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	FindRecentHeldOrder(ctx context.Context, arg database.FindRecentHeldOrderParams) (database.HeldOrder, error)
	CreateHeldOrder(ctx context.Context, arg database.CreateHeldOrderParams) (database.HeldOrder, error)
	ListHeldOrdersByShift(ctx context.Context, shiftID uuid.UUID) ([]database.HeldOrder, error)
	DeleteHeldOrder(ctx context.Context, id uuid.UUID) (int64, error)
}

// HeldOrderItem is one strictly-typed cart line in a parked order.
type HeldOrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int32           `json:"quantity"`
	Note      string          `json:"note"`
}

// SaveHeldOrderRequest parks an in-progress cart.
type SaveHeldOrderRequest struct {
	ShiftID     uuid.UUID
	CashierID   uuid.UUID
	OrderType   string
	TableNumber string
	Note        string
	Items       []HeldOrderItem
}

// SaveHeldOrderResult reports the stored row and whether the save was
// de-duplicated against an earlier identical one.
type SaveHeldOrderResult struct {
	HeldOrder database.HeldOrder
	Duplicate bool
}

// HeldOrderView is a held order with its items deserialized.
type HeldOrderView struct {
	ID          uuid.UUID
	ShiftID     uuid.UUID
	CashierID   uuid.UUID
	OrderType   string
	TableNumber string
	Items       []HeldOrderItem
	Total       decimal.Decimal
	Note        string
	CreatedAt   time.Time
}

// HeldOrderService manages durable parked carts.
type HeldOrderService struct {
	store HeldOrderStore
	now   func() time.Time
}

// NewHeldOrderService creates a new HeldOrderService.
func NewHeldOrderService(store HeldOrderStore) *HeldOrderService {
	return &HeldOrderService{store: store, now: time.Now}
}

// Save parks a cart. If an identical items payload was saved by the same
// cashier in the same shift within the de-dup window, the earlier row is
// returned instead of inserting a duplicate.
func (s *HeldOrderService) Save(ctx context.Context, req SaveHeldOrderRequest) (*SaveHeldOrderResult, error) {
	if req.ShiftID == uuid.Nil {
		return nil, ErrShiftRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !isValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	total := decimal.Zero
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt32(item.Quantity)))
	}

	shift, err := s.store.GetShift(ctx, req.ShiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}
	if shift.Status != enum.ShiftStatusOpen {
		return nil, ErrShiftClosed
	}

	// json.Marshal of the typed slice is deterministic, so identical carts
	// produce byte-identical payloads for the equality check below.
	payload, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}

	existing, err := s.store.FindRecentHeldOrder(ctx, database.FindRecentHeldOrderParams{
		ShiftID:      req.ShiftID,
		CashierID:    req.CashierID,
		Items:        payload,
		CreatedAfter: s.now().Add(-heldOrderDedupWindow),
	})
	if err == nil {
		return &SaveHeldOrderResult{HeldOrder: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find recent held order: %w", err)
	}

	created, err := s.store.CreateHeldOrder(ctx, database.CreateHeldOrderParams{
		ShiftID:     req.ShiftID,
		CashierID:   req.CashierID,
		OrderType:   req.OrderType,
		TableNumber: textOrNull(req.TableNumber),
		Items:       payload,
		Total:       decimalToNumeric(total),
		Note:        textOrNull(req.Note),
	})
	if err != nil {
		return nil, fmt.Errorf("create held order: %w", err)
	}
	return &SaveHeldOrderResult{HeldOrder: created}, nil
}

// List returns a shift's held orders, newest first. Malformed stored item
// payloads decode to an empty cart instead of failing the whole listing.
func (s *HeldOrderService) List(ctx context.Context, shiftID uuid.UUID) ([]HeldOrderView, error) {
	rows, err := s.store.ListHeldOrdersByShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list held orders: %w", err)
	}
	views := make([]HeldOrderView, len(rows))
	for i, row := range rows {
		views[i] = HeldOrderView{
			ID:          row.ID,
			ShiftID:     row.ShiftID,
			CashierID:   row.CashierID,
			OrderType:   row.OrderType,
			TableNumber: row.TableNumber.String,
			Items:       decodeHeldItems(row.Items),
			Total:       numericToDecimal(row.Total),
			Note:        row.Note.String,
			CreatedAt:   row.CreatedAt,
		}
	}
	return views, nil
}

// decodeHeldItems tolerates legacy or malformed payloads by substituting an
// empty cart.
func decodeHeldItems(raw []byte) []HeldOrderItem {
	var items []HeldOrderItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return []HeldOrderItem{}
	}
	if items == nil {
		return []HeldOrderItem{}
	}
	return items
}

// Delete removes a held order. Used both on explicit delete and when a
// cashier resumes a parked cart.
func (s *HeldOrderService) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.store.DeleteHeldOrder(ctx, id)
	if err != nil {
		return fmt.Errorf("delete held order: %w", err)
	}
	if n == 0 {
		return ErrHeldOrderNotFound
	}
	return nil
}
