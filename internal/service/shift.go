package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/enum"
)

// ShiftStore defines the DB methods needed for shift lifecycle and cash
// flows. Satisfied by *database.Queries (and its WithTx variant).
type ShiftStore interface {
	GetOpenShiftByCashier(ctx context.Context, cashierID uuid.UUID) (database.Shift, error)
	CreateShift(ctx context.Context, arg database.CreateShiftParams) (database.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	GetShiftForUpdate(ctx context.Context, id uuid.UUID) (database.Shift, error)
	CloseShift(ctx context.Context, arg database.CloseShiftParams) (database.Shift, error)
	CreateCashFlow(ctx context.Context, arg database.CreateCashFlowParams) (database.CashFlow, error)
	GetCashFlow(ctx context.Context, id uuid.UUID) (database.CashFlow, error)
	DeleteCashFlow(ctx context.Context, id uuid.UUID) error
	ListCashFlowsByShift(ctx context.Context, shiftID uuid.UUID) ([]database.CashFlow, error)
	ApplyCashFlowIn(ctx context.Context, arg database.ShiftAmountParams) error
	ApplyCashFlowOut(ctx context.Context, arg database.ShiftAmountParams) error
	ReverseCashFlowIn(ctx context.Context, arg database.ShiftAmountParams) error
	ReverseCashFlowOut(ctx context.Context, arg database.ShiftAmountParams) error
	GetShiftPaymentTotals(ctx context.Context, shiftID uuid.UUID) ([]database.GetShiftPaymentTotalsRow, error)
}

// NewShiftStore creates a ShiftStore from a DBTX (pool or tx).
type NewShiftStore func(db database.DBTX) ShiftStore

// ShiftService handles the cash-drawer session ledger.
type ShiftService struct {
	store    ShiftStore
	pool     TxBeginner
	newStore NewShiftStore
}

// NewShiftService creates a new ShiftService.
func NewShiftService(store ShiftStore, pool TxBeginner, newStore NewShiftStore) *ShiftService {
	return &ShiftService{store: store, pool: pool, newStore: newStore}
}

// Open starts a new shift with the given opening float. At most one open
// shift per cashier: checked here and backed by a partial unique index,
// so a concurrent double-open loses on the constraint.
func (s *ShiftService) Open(ctx context.Context, cashierID uuid.UUID, openingFloat string) (database.Shift, error) {
	float, err := decimal.NewFromString(openingFloat)
	if err != nil || float.IsNegative() {
		return database.Shift{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Shift{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	_, err = store.GetOpenShiftByCashier(ctx, cashierID)
	if err == nil {
		return database.Shift{}, ErrShiftAlreadyOpen
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Shift{}, fmt.Errorf("check open shift: %w", err)
	}

	shift, err := store.CreateShift(ctx, database.CreateShiftParams{
		CashierID:    cashierID,
		OpeningFloat: decimalToNumeric(float),
	})
	if err != nil {
		if isOpenShiftConflict(err) {
			return database.Shift{}, ErrShiftAlreadyOpen
		}
		return database.Shift{}, fmt.Errorf("create shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Shift{}, fmt.Errorf("commit tx: %w", err)
	}
	return shift, nil
}

func isOpenShiftConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "shifts_one_open_per_cashier"
	}
	return false
}

// Close reconciles and terminates the cashier's open shift. The recorded
// difference is actual counted cash minus expected cash: positive means
// overage, negative means shortage. Closed shifts are terminal.
func (s *ShiftService) Close(ctx context.Context, shiftID, cashierID uuid.UUID, actualCash string) (database.Shift, error) {
	actual, err := decimal.NewFromString(actualCash)
	if err != nil || actual.IsNegative() {
		return database.Shift{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Shift{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetShiftForUpdate(ctx, shiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Shift{}, ErrShiftNotFound
		}
		return database.Shift{}, fmt.Errorf("get shift: %w", err)
	}
	if shift.CashierID != cashierID {
		return database.Shift{}, ErrShiftNotFound
	}
	if shift.Status != enum.ShiftStatusOpen {
		return database.Shift{}, ErrShiftClosed
	}

	difference := actual.Sub(numericToDecimal(shift.ExpectedCash))
	closed, err := store.CloseShift(ctx, database.CloseShiftParams{
		ID:         shiftID,
		ActualCash: decimalToNumeric(actual),
		Difference: decimalToNumeric(difference),
	})
	if err != nil {
		return database.Shift{}, fmt.Errorf("close shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Shift{}, fmt.Errorf("commit tx: %w", err)
	}
	return closed, nil
}

// AddCashFlow appends a manual drawer adjustment and applies it to the
// shift's running totals in the same transaction.
func (s *ShiftService) AddCashFlow(ctx context.Context, shiftID uuid.UUID, direction, label, amount string) (database.CashFlow, error) {
	if direction != enum.CashFlowIn && direction != enum.CashFlowOut {
		return database.CashFlow{}, ErrInvalidDirection
	}
	if label == "" {
		return database.CashFlow{}, ErrLabelRequired
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil || !amt.IsPositive() {
		return database.CashFlow{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.CashFlow{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetShiftForUpdate(ctx, shiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.CashFlow{}, ErrShiftNotFound
		}
		return database.CashFlow{}, fmt.Errorf("get shift: %w", err)
	}
	if shift.Status != enum.ShiftStatusOpen {
		return database.CashFlow{}, ErrShiftClosed
	}

	flow, err := store.CreateCashFlow(ctx, database.CreateCashFlowParams{
		ShiftID:   shiftID,
		Direction: direction,
		Label:     label,
		Amount:    decimalToNumeric(amt),
	})
	if err != nil {
		return database.CashFlow{}, fmt.Errorf("create cash flow: %w", err)
	}

	params := database.ShiftAmountParams{ID: shiftID, Amount: decimalToNumeric(amt)}
	if direction == enum.CashFlowIn {
		err = store.ApplyCashFlowIn(ctx, params)
	} else {
		err = store.ApplyCashFlowOut(ctx, params)
	}
	if err != nil {
		return database.CashFlow{}, fmt.Errorf("apply cash flow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.CashFlow{}, fmt.Errorf("commit tx: %w", err)
	}
	return flow, nil
}

// DeleteCashFlow removes a cash flow and reverses its exact effect on the
// shift totals, clamping cash_in/cash_out at zero. Only allowed while the
// owning shift is open.
func (s *ShiftService) DeleteCashFlow(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	flow, err := store.GetCashFlow(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCashFlowNotFound
		}
		return fmt.Errorf("get cash flow: %w", err)
	}

	shift, err := store.GetShiftForUpdate(ctx, flow.ShiftID)
	if err != nil {
		return fmt.Errorf("get shift: %w", err)
	}
	if shift.Status != enum.ShiftStatusOpen {
		return ErrShiftClosed
	}

	params := database.ShiftAmountParams{ID: flow.ShiftID, Amount: flow.Amount}
	if flow.Direction == enum.CashFlowIn {
		err = store.ReverseCashFlowIn(ctx, params)
	} else {
		err = store.ReverseCashFlowOut(ctx, params)
	}
	if err != nil {
		return fmt.Errorf("reverse cash flow: %w", err)
	}

	if err := store.DeleteCashFlow(ctx, id); err != nil {
		return fmt.Errorf("delete cash flow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PaymentTotal is one payment method's completed-sales aggregate.
type PaymentTotal struct {
	PaymentMethod string
	SaleCount     int64
	Total         decimal.Decimal
}

// ShiftSummary is the read-only reconciliation view of a shift.
type ShiftSummary struct {
	Shift         database.Shift
	PaymentTotals []PaymentTotal
	CashFlows     []database.CashFlow
}

// GetSummary aggregates per-payment-method totals and the cash-flow list.
// Pure reporting, no writes.
func (s *ShiftService) GetSummary(ctx context.Context, shiftID uuid.UUID) (*ShiftSummary, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}

	rows, err := s.store.GetShiftPaymentTotals(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("get payment totals: %w", err)
	}
	totals := make([]PaymentTotal, len(rows))
	for i, r := range rows {
		totals[i] = PaymentTotal{
			PaymentMethod: r.PaymentMethod,
			SaleCount:     r.SaleCount,
			Total:         numericToDecimal(r.Total),
		}
	}

	flows, err := s.store.ListCashFlowsByShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list cash flows: %w", err)
	}

	return &ShiftSummary{Shift: shift, PaymentTotals: totals, CashFlows: flows}, nil
}
