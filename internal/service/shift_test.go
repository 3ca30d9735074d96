package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/enum"
)

// mockShiftStore is a stateful in-memory ShiftStore. Writes apply
// immediately; these tests exercise behavior, not transaction boundaries.
type mockShiftStore struct {
	shifts    map[uuid.UUID]database.Shift
	cashFlows map[uuid.UUID]database.CashFlow
	payments  map[uuid.UUID][]database.GetShiftPaymentTotalsRow

	createShiftErr error
}

func newMockShiftStore() *mockShiftStore {
	return &mockShiftStore{
		shifts:    make(map[uuid.UUID]database.Shift),
		cashFlows: make(map[uuid.UUID]database.CashFlow),
		payments:  make(map[uuid.UUID][]database.GetShiftPaymentTotalsRow),
	}
}

func (m *mockShiftStore) addOpenShift(cashierID uuid.UUID, openingFloat string) uuid.UUID {
	id := uuid.New()
	m.shifts[id] = database.Shift{
		ID:           id,
		CashierID:    cashierID,
		Status:       enum.ShiftStatusOpen,
		OpeningFloat: makeNumeric(openingFloat),
		TotalCash:    makeNumeric("0"),
		TotalNonCash: makeNumeric("0"),
		CashIn:       makeNumeric("0"),
		CashOut:      makeNumeric("0"),
		ExpectedCash: makeNumeric(openingFloat),
		StartedAt:    time.Now(),
	}
	return id
}

func (m *mockShiftStore) GetOpenShiftByCashier(ctx context.Context, cashierID uuid.UUID) (database.Shift, error) {
	for _, sh := range m.shifts {
		if sh.CashierID == cashierID && sh.Status == enum.ShiftStatusOpen {
			return sh, nil
		}
	}
	return database.Shift{}, pgx.ErrNoRows
}

func (m *mockShiftStore) CreateShift(ctx context.Context, arg database.CreateShiftParams) (database.Shift, error) {
	if m.createShiftErr != nil {
		return database.Shift{}, m.createShiftErr
	}
	id := uuid.New()
	sh := database.Shift{
		ID:           id,
		CashierID:    arg.CashierID,
		Status:       enum.ShiftStatusOpen,
		OpeningFloat: arg.OpeningFloat,
		TotalCash:    makeNumeric("0"),
		TotalNonCash: makeNumeric("0"),
		CashIn:       makeNumeric("0"),
		CashOut:      makeNumeric("0"),
		ExpectedCash: arg.OpeningFloat,
		StartedAt:    time.Now(),
	}
	m.shifts[id] = sh
	return sh, nil
}

func (m *mockShiftStore) GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error) {
	sh, ok := m.shifts[id]
	if !ok {
		return database.Shift{}, pgx.ErrNoRows
	}
	return sh, nil
}

func (m *mockShiftStore) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (database.Shift, error) {
	return m.GetShift(ctx, id)
}

func (m *mockShiftStore) CloseShift(ctx context.Context, arg database.CloseShiftParams) (database.Shift, error) {
	sh, ok := m.shifts[arg.ID]
	if !ok || sh.Status != enum.ShiftStatusOpen {
		return database.Shift{}, pgx.ErrNoRows
	}
	sh.Status = enum.ShiftStatusClosed
	sh.ActualCash = arg.ActualCash
	sh.Difference = arg.Difference
	sh.EndedAt.Time = time.Now()
	sh.EndedAt.Valid = true
	m.shifts[arg.ID] = sh
	return sh, nil
}

func (m *mockShiftStore) CreateCashFlow(ctx context.Context, arg database.CreateCashFlowParams) (database.CashFlow, error) {
	id := uuid.New()
	cf := database.CashFlow{
		ID:        id,
		ShiftID:   arg.ShiftID,
		Direction: arg.Direction,
		Label:     arg.Label,
		Amount:    arg.Amount,
		CreatedAt: time.Now(),
	}
	m.cashFlows[id] = cf
	return cf, nil
}

func (m *mockShiftStore) GetCashFlow(ctx context.Context, id uuid.UUID) (database.CashFlow, error) {
	cf, ok := m.cashFlows[id]
	if !ok {
		return database.CashFlow{}, pgx.ErrNoRows
	}
	return cf, nil
}

func (m *mockShiftStore) DeleteCashFlow(ctx context.Context, id uuid.UUID) error {
	delete(m.cashFlows, id)
	return nil
}

func (m *mockShiftStore) ListCashFlowsByShift(ctx context.Context, shiftID uuid.UUID) ([]database.CashFlow, error) {
	var flows []database.CashFlow
	for _, cf := range m.cashFlows {
		if cf.ShiftID == shiftID {
			flows = append(flows, cf)
		}
	}
	return flows, nil
}

func (m *mockShiftStore) updateShift(id uuid.UUID, apply func(sh *database.Shift)) {
	sh, ok := m.shifts[id]
	if !ok || sh.Status != enum.ShiftStatusOpen {
		return
	}
	apply(&sh)
	m.shifts[id] = sh
}

func (m *mockShiftStore) ApplyCashFlowIn(ctx context.Context, arg database.ShiftAmountParams) error {
	m.updateShift(arg.ID, func(sh *database.Shift) {
		sh.CashIn = addNumeric(sh.CashIn, arg.Amount)
		sh.ExpectedCash = addNumeric(sh.ExpectedCash, arg.Amount)
	})
	return nil
}

func (m *mockShiftStore) ApplyCashFlowOut(ctx context.Context, arg database.ShiftAmountParams) error {
	m.updateShift(arg.ID, func(sh *database.Shift) {
		sh.CashOut = addNumeric(sh.CashOut, arg.Amount)
		sh.ExpectedCash = subNumericClamped(sh.ExpectedCash, arg.Amount)
	})
	return nil
}

func (m *mockShiftStore) ReverseCashFlowIn(ctx context.Context, arg database.ShiftAmountParams) error {
	m.updateShift(arg.ID, func(sh *database.Shift) {
		sh.CashIn = subNumericClamped(sh.CashIn, arg.Amount)
		sh.ExpectedCash = subNumericClamped(sh.ExpectedCash, arg.Amount)
	})
	return nil
}

func (m *mockShiftStore) ReverseCashFlowOut(ctx context.Context, arg database.ShiftAmountParams) error {
	m.updateShift(arg.ID, func(sh *database.Shift) {
		sh.CashOut = subNumericClamped(sh.CashOut, arg.Amount)
		sh.ExpectedCash = addNumeric(sh.ExpectedCash, arg.Amount)
	})
	return nil
}

func (m *mockShiftStore) GetShiftPaymentTotals(ctx context.Context, shiftID uuid.UUID) ([]database.GetShiftPaymentTotalsRow, error) {
	return m.payments[shiftID], nil
}

func newShiftService(store *mockShiftStore) *ShiftService {
	return NewShiftService(store, &mockTxBeginner{}, func(db database.DBTX) ShiftStore { return store })
}

func TestOpenShift(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	cashier := uuid.New()

	shift, err := svc.Open(context.Background(), cashier, "100000")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if shift.Status != enum.ShiftStatusOpen {
		t.Errorf("status: got %q, want %q", shift.Status, enum.ShiftStatusOpen)
	}
	requireNumeric(t, "opening float", shift.OpeningFloat, "100000")
	requireNumeric(t, "expected cash", shift.ExpectedCash, "100000")
	requireNumeric(t, "total cash", shift.TotalCash, "0")
}

func TestOpenShift_InvalidFloat(t *testing.T) {
	svc := newShiftService(newMockShiftStore())
	for _, val := range []string{"", "abc", "-50"} {
		if _, err := svc.Open(context.Background(), uuid.New(), val); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Open(%q): got %v, want ErrInvalidAmount", val, err)
		}
	}
}

func TestOpenShift_AlreadyOpen(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	cashier := uuid.New()
	store.addOpenShift(cashier, "50000")

	_, err := svc.Open(context.Background(), cashier, "100000")
	if !errors.Is(err, ErrShiftAlreadyOpen) {
		t.Fatalf("got %v, want ErrShiftAlreadyOpen", err)
	}
	if !IsConflict(err) {
		t.Error("double open must classify as a conflict")
	}
}

func TestOpenShift_ConstraintBackstop(t *testing.T) {
	// The pre-check saw no open shift but the insert hit the partial
	// unique index: a concurrent open won the race.
	store := newMockShiftStore()
	store.createShiftErr = &pgconn.PgError{Code: "23505", ConstraintName: "shifts_one_open_per_cashier"}
	svc := newShiftService(store)

	_, err := svc.Open(context.Background(), uuid.New(), "100000")
	if !errors.Is(err, ErrShiftAlreadyOpen) {
		t.Fatalf("got %v, want ErrShiftAlreadyOpen", err)
	}
}

func TestCloseShift_Difference(t *testing.T) {
	tests := []struct {
		name       string
		actual     string
		difference string
	}{
		{"shortage", "130000", "-5000"},
		{"overage", "140000", "5000"},
		{"balanced", "135000", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMockShiftStore()
			svc := newShiftService(store)
			cashier := uuid.New()
			shiftID := store.addOpenShift(cashier, "135000")

			closed, err := svc.Close(context.Background(), shiftID, cashier, tc.actual)
			if err != nil {
				t.Fatalf("Close: %v", err)
			}
			if closed.Status != enum.ShiftStatusClosed {
				t.Errorf("status: got %q, want %q", closed.Status, enum.ShiftStatusClosed)
			}
			if !closed.EndedAt.Valid {
				t.Error("ended_at not set")
			}
			requireNumeric(t, "actual cash", closed.ActualCash, tc.actual)
			requireNumeric(t, "difference", closed.Difference, tc.difference)
		})
	}
}

func TestCloseShift_WrongCashier(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	shiftID := store.addOpenShift(uuid.New(), "100000")

	_, err := svc.Close(context.Background(), shiftID, uuid.New(), "100000")
	if !errors.Is(err, ErrShiftNotFound) {
		t.Fatalf("got %v, want ErrShiftNotFound", err)
	}
}

func TestCloseShift_AlreadyClosed(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	cashier := uuid.New()
	shiftID := store.addOpenShift(cashier, "100000")
	if _, err := svc.Close(context.Background(), shiftID, cashier, "100000"); err != nil {
		t.Fatalf("first close: %v", err)
	}

	_, err := svc.Close(context.Background(), shiftID, cashier, "100000")
	if !errors.Is(err, ErrShiftClosed) {
		t.Fatalf("got %v, want ErrShiftClosed", err)
	}
}

func TestCloseShift_NotFound(t *testing.T) {
	svc := newShiftService(newMockShiftStore())
	_, err := svc.Close(context.Background(), uuid.New(), uuid.New(), "100000")
	if !errors.Is(err, ErrShiftNotFound) {
		t.Fatalf("got %v, want ErrShiftNotFound", err)
	}
}

func TestAddCashFlow_OutAndDelete(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	cashier := uuid.New()
	shiftID := store.addOpenShift(cashier, "140000")

	flow, err := svc.AddCashFlow(context.Background(), shiftID, enum.CashFlowOut, "beli galon", "5000")
	if err != nil {
		t.Fatalf("AddCashFlow: %v", err)
	}
	if flow.Direction != enum.CashFlowOut || flow.Label != "beli galon" {
		t.Errorf("unexpected flow: %+v", flow)
	}
	shift := store.shifts[shiftID]
	requireNumeric(t, "cash_out", shift.CashOut, "5000")
	requireNumeric(t, "expected_cash", shift.ExpectedCash, "135000")

	if err := svc.DeleteCashFlow(context.Background(), flow.ID); err != nil {
		t.Fatalf("DeleteCashFlow: %v", err)
	}
	shift = store.shifts[shiftID]
	requireNumeric(t, "cash_out after delete", shift.CashOut, "0")
	requireNumeric(t, "expected_cash after delete", shift.ExpectedCash, "140000")
	if len(store.cashFlows) != 0 {
		t.Error("cash flow row remains after delete")
	}
}

func TestAddCashFlow_In(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	shiftID := store.addOpenShift(uuid.New(), "100000")

	if _, err := svc.AddCashFlow(context.Background(), shiftID, enum.CashFlowIn, "modal tambahan", "20000"); err != nil {
		t.Fatalf("AddCashFlow: %v", err)
	}
	shift := store.shifts[shiftID]
	requireNumeric(t, "cash_in", shift.CashIn, "20000")
	requireNumeric(t, "expected_cash", shift.ExpectedCash, "120000")
}

func TestAddCashFlow_Validation(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	cashier := uuid.New()
	shiftID := store.addOpenShift(cashier, "100000")

	closedID := store.addOpenShift(uuid.New(), "0")
	sh := store.shifts[closedID]
	sh.Status = enum.ShiftStatusClosed
	store.shifts[closedID] = sh

	tests := []struct {
		name      string
		shiftID   uuid.UUID
		direction string
		label     string
		amount    string
		wantErr   error
	}{
		{"bad direction", shiftID, "SIDEWAYS", "x", "1000", ErrInvalidDirection},
		{"empty label", shiftID, enum.CashFlowIn, "", "1000", ErrLabelRequired},
		{"zero amount", shiftID, enum.CashFlowIn, "x", "0", ErrInvalidAmount},
		{"negative amount", shiftID, enum.CashFlowIn, "x", "-1000", ErrInvalidAmount},
		{"bad amount", shiftID, enum.CashFlowIn, "x", "abc", ErrInvalidAmount},
		{"unknown shift", uuid.New(), enum.CashFlowIn, "x", "1000", ErrShiftNotFound},
		{"closed shift", closedID, enum.CashFlowIn, "x", "1000", ErrShiftClosed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddCashFlow(context.Background(), tc.shiftID, tc.direction, tc.label, tc.amount)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDeleteCashFlow_NotFound(t *testing.T) {
	svc := newShiftService(newMockShiftStore())
	if err := svc.DeleteCashFlow(context.Background(), uuid.New()); !errors.Is(err, ErrCashFlowNotFound) {
		t.Fatalf("got %v, want ErrCashFlowNotFound", err)
	}
}

func TestDeleteCashFlow_ClosedShift(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	cashier := uuid.New()
	shiftID := store.addOpenShift(cashier, "100000")

	flow, err := svc.AddCashFlow(context.Background(), shiftID, enum.CashFlowOut, "es batu", "3000")
	if err != nil {
		t.Fatalf("AddCashFlow: %v", err)
	}
	if _, err := svc.Close(context.Background(), shiftID, cashier, "97000"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := svc.DeleteCashFlow(context.Background(), flow.ID); !errors.Is(err, ErrShiftClosed) {
		t.Fatalf("got %v, want ErrShiftClosed", err)
	}
}

func TestGetSummary(t *testing.T) {
	store := newMockShiftStore()
	svc := newShiftService(store)
	shiftID := store.addOpenShift(uuid.New(), "100000")
	store.payments[shiftID] = []database.GetShiftPaymentTotalsRow{
		{PaymentMethod: enum.PaymentMethodCash, SaleCount: 3, Total: makeNumeric("75000")},
		{PaymentMethod: enum.PaymentMethodQRIS, SaleCount: 1, Total: makeNumeric("18000")},
	}
	if _, err := svc.AddCashFlow(context.Background(), shiftID, enum.CashFlowOut, "beli galon", "5000"); err != nil {
		t.Fatalf("AddCashFlow: %v", err)
	}

	summary, err := svc.GetSummary(context.Background(), shiftID)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.Shift.ID != shiftID {
		t.Errorf("summary shift mismatch")
	}
	if len(summary.PaymentTotals) != 2 {
		t.Fatalf("payment totals: got %d, want 2", len(summary.PaymentTotals))
	}
	if summary.PaymentTotals[0].SaleCount != 3 || !summary.PaymentTotals[0].Total.Equal(mustDecimal("75000")) {
		t.Errorf("unexpected cash total: %+v", summary.PaymentTotals[0])
	}
	if len(summary.CashFlows) != 1 {
		t.Errorf("cash flows: got %d, want 1", len(summary.CashFlows))
	}
}

func TestGetSummary_NotFound(t *testing.T) {
	svc := newShiftService(newMockShiftStore())
	if _, err := svc.GetSummary(context.Background(), uuid.New()); !errors.Is(err, ErrShiftNotFound) {
		t.Fatalf("got %v, want ErrShiftNotFound", err)
	}
}
