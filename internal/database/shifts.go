package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const shiftColumns = `id, cashier_id, status, opening_float, total_cash, total_non_cash,
	cash_in, cash_out, expected_cash, actual_cash, difference, started_at, ended_at`

func scanShift(row interface{ Scan(dest ...any) error }) (Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.CashierID, &s.Status, &s.OpeningFloat, &s.TotalCash, &s.TotalNonCash,
		&s.CashIn, &s.CashOut, &s.ExpectedCash, &s.ActualCash, &s.Difference, &s.StartedAt, &s.EndedAt)
	return s, err
}

const createShift = `
INSERT INTO shifts (cashier_id, status, opening_float, expected_cash)
VALUES ($1, 'OPEN', $2, $2)
RETURNING ` + shiftColumns

type CreateShiftParams struct {
	CashierID    uuid.UUID
	OpeningFloat pgtype.Numeric
}

func (q *Queries) CreateShift(ctx context.Context, arg CreateShiftParams) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, createShift, arg.CashierID, arg.OpeningFloat))
}

const getShift = `
SELECT ` + shiftColumns + `
FROM shifts
WHERE id = $1
`

func (q *Queries) GetShift(ctx context.Context, id uuid.UUID) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, getShift, id))
}

const getShiftForUpdate = `
SELECT ` + shiftColumns + `
FROM shifts
WHERE id = $1
FOR UPDATE
`

// GetShiftForUpdate locks the shift row so close / cash-flow mutations do
// not interleave. Sale settlement does not take this lock; its total updates
// are atomic increments.
func (q *Queries) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, getShiftForUpdate, id))
}

const getOpenShiftByCashier = `
SELECT ` + shiftColumns + `
FROM shifts
WHERE cashier_id = $1 AND status = 'OPEN'
`

func (q *Queries) GetOpenShiftByCashier(ctx context.Context, cashierID uuid.UUID) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, getOpenShiftByCashier, cashierID))
}

const closeShift = `
UPDATE shifts
SET status = 'CLOSED', actual_cash = $2, difference = $3, ended_at = now()
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + shiftColumns

type CloseShiftParams struct {
	ID         uuid.UUID
	ActualCash pgtype.Numeric
	Difference pgtype.Numeric
}

func (q *Queries) CloseShift(ctx context.Context, arg CloseShiftParams) (Shift, error) {
	return scanShift(q.db.QueryRow(ctx, closeShift, arg.ID, arg.ActualCash, arg.Difference))
}

const listShifts = `
SELECT ` + shiftColumns + `
FROM shifts
ORDER BY started_at DESC
LIMIT $1 OFFSET $2
`

type ListShiftsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListShifts(ctx context.Context, arg ListShiftsParams) ([]Shift, error) {
	rows, err := q.db.Query(ctx, listShifts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

const listShiftsByCashier = `
SELECT ` + shiftColumns + `
FROM shifts
WHERE cashier_id = $1
ORDER BY started_at DESC
LIMIT $2 OFFSET $3
`

type ListShiftsByCashierParams struct {
	CashierID uuid.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListShiftsByCashier(ctx context.Context, arg ListShiftsByCashierParams) ([]Shift, error) {
	rows, err := q.db.Query(ctx, listShiftsByCashier, arg.CashierID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// Shift totals are applied as atomic in-database increments so concurrent
// sales in the same shift never lose updates.

const addCashSaleToShift = `
UPDATE shifts
SET total_cash = total_cash + $2, expected_cash = expected_cash + $2
WHERE id = $1 AND status = 'OPEN'
`

type ShiftAmountParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

func (q *Queries) AddCashSaleToShift(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, addCashSaleToShift, arg.ID, arg.Amount)
	return err
}

const addNonCashSaleToShift = `
UPDATE shifts
SET total_non_cash = total_non_cash + $2
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) AddNonCashSaleToShift(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, addNonCashSaleToShift, arg.ID, arg.Amount)
	return err
}

const reverseCashSaleFromShift = `
UPDATE shifts
SET total_cash = GREATEST(total_cash - $2, 0),
    expected_cash = GREATEST(expected_cash - $2, 0)
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) ReverseCashSaleFromShift(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, reverseCashSaleFromShift, arg.ID, arg.Amount)
	return err
}

const reverseNonCashSaleFromShift = `
UPDATE shifts
SET total_non_cash = GREATEST(total_non_cash - $2, 0)
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) ReverseNonCashSaleFromShift(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, reverseNonCashSaleFromShift, arg.ID, arg.Amount)
	return err
}

const applyCashFlowIn = `
UPDATE shifts
SET cash_in = cash_in + $2, expected_cash = expected_cash + $2
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) ApplyCashFlowIn(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, applyCashFlowIn, arg.ID, arg.Amount)
	return err
}

const applyCashFlowOut = `
UPDATE shifts
SET cash_out = cash_out + $2, expected_cash = expected_cash - $2
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) ApplyCashFlowOut(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, applyCashFlowOut, arg.ID, arg.Amount)
	return err
}

const reverseCashFlowIn = `
UPDATE shifts
SET cash_in = GREATEST(cash_in - $2, 0), expected_cash = expected_cash - $2
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) ReverseCashFlowIn(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, reverseCashFlowIn, arg.ID, arg.Amount)
	return err
}

const reverseCashFlowOut = `
UPDATE shifts
SET cash_out = GREATEST(cash_out - $2, 0), expected_cash = expected_cash + $2
WHERE id = $1 AND status = 'OPEN'
`

func (q *Queries) ReverseCashFlowOut(ctx context.Context, arg ShiftAmountParams) error {
	_, err := q.db.Exec(ctx, reverseCashFlowOut, arg.ID, arg.Amount)
	return err
}

const createCashFlow = `
INSERT INTO cash_flows (shift_id, direction, label, amount)
VALUES ($1, $2, $3, $4)
RETURNING id, shift_id, direction, label, amount, created_at
`

type CreateCashFlowParams struct {
	ShiftID   uuid.UUID
	Direction string
	Label     string
	Amount    pgtype.Numeric
}

func (q *Queries) CreateCashFlow(ctx context.Context, arg CreateCashFlowParams) (CashFlow, error) {
	row := q.db.QueryRow(ctx, createCashFlow, arg.ShiftID, arg.Direction, arg.Label, arg.Amount)
	var cf CashFlow
	err := row.Scan(&cf.ID, &cf.ShiftID, &cf.Direction, &cf.Label, &cf.Amount, &cf.CreatedAt)
	return cf, err
}

const getCashFlow = `
SELECT id, shift_id, direction, label, amount, created_at
FROM cash_flows
WHERE id = $1
`

func (q *Queries) GetCashFlow(ctx context.Context, id uuid.UUID) (CashFlow, error) {
	row := q.db.QueryRow(ctx, getCashFlow, id)
	var cf CashFlow
	err := row.Scan(&cf.ID, &cf.ShiftID, &cf.Direction, &cf.Label, &cf.Amount, &cf.CreatedAt)
	return cf, err
}

const deleteCashFlow = `
DELETE FROM cash_flows
WHERE id = $1
`

func (q *Queries) DeleteCashFlow(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCashFlow, id)
	return err
}

const listCashFlowsByShift = `
SELECT id, shift_id, direction, label, amount, created_at
FROM cash_flows
WHERE shift_id = $1
ORDER BY created_at
`

func (q *Queries) ListCashFlowsByShift(ctx context.Context, shiftID uuid.UUID) ([]CashFlow, error) {
	rows, err := q.db.Query(ctx, listCashFlowsByShift, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var flows []CashFlow
	for rows.Next() {
		var cf CashFlow
		if err := rows.Scan(&cf.ID, &cf.ShiftID, &cf.Direction, &cf.Label, &cf.Amount, &cf.CreatedAt); err != nil {
			return nil, err
		}
		flows = append(flows, cf)
	}
	return flows, rows.Err()
}

const getShiftPaymentTotals = `
SELECT payment_method, COUNT(*), COALESCE(SUM(total), 0)
FROM sales
WHERE shift_id = $1 AND status = 'COMPLETED'
GROUP BY payment_method
ORDER BY payment_method
`

type GetShiftPaymentTotalsRow struct {
	PaymentMethod string
	SaleCount     int64
	Total         pgtype.Numeric
}

func (q *Queries) GetShiftPaymentTotals(ctx context.Context, shiftID uuid.UUID) ([]GetShiftPaymentTotalsRow, error) {
	rows, err := q.db.Query(ctx, getShiftPaymentTotals, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []GetShiftPaymentTotalsRow
	for rows.Next() {
		var t GetShiftPaymentTotalsRow
		if err := rows.Scan(&t.PaymentMethod, &t.SaleCount, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
