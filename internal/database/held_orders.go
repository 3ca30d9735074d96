package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const heldOrderColumns = `id, shift_id, cashier_id, order_type, table_number, items, total, note, created_at`

func scanHeldOrder(row interface{ Scan(dest ...any) error }) (HeldOrder, error) {
	var h HeldOrder
	err := row.Scan(&h.ID, &h.ShiftID, &h.CashierID, &h.OrderType, &h.TableNumber,
		&h.Items, &h.Total, &h.Note, &h.CreatedAt)
	return h, err
}

const findRecentHeldOrder = `
SELECT ` + heldOrderColumns + `
FROM held_orders
WHERE shift_id = $1 AND cashier_id = $2 AND items = $3 AND created_at >= $4
ORDER BY created_at DESC
LIMIT 1
`

type FindRecentHeldOrderParams struct {
	ShiftID      uuid.UUID
	CashierID    uuid.UUID
	Items        []byte
	CreatedAfter time.Time
}

// FindRecentHeldOrder looks for a held order with a byte-identical items
// payload saved by the same cashier in the same shift since CreatedAfter.
// Used to absorb rapid double-submits of the same cart.
func (q *Queries) FindRecentHeldOrder(ctx context.Context, arg FindRecentHeldOrderParams) (HeldOrder, error) {
	return scanHeldOrder(q.db.QueryRow(ctx, findRecentHeldOrder,
		arg.ShiftID, arg.CashierID, arg.Items, arg.CreatedAfter))
}

const createHeldOrder = `
INSERT INTO held_orders (shift_id, cashier_id, order_type, table_number, items, total, note)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + heldOrderColumns

type CreateHeldOrderParams struct {
	ShiftID     uuid.UUID
	CashierID   uuid.UUID
	OrderType   string
	TableNumber pgtype.Text
	Items       []byte
	Total       pgtype.Numeric
	Note        pgtype.Text
}

func (q *Queries) CreateHeldOrder(ctx context.Context, arg CreateHeldOrderParams) (HeldOrder, error) {
	return scanHeldOrder(q.db.QueryRow(ctx, createHeldOrder,
		arg.ShiftID, arg.CashierID, arg.OrderType, arg.TableNumber, arg.Items, arg.Total, arg.Note))
}

const listHeldOrdersByShift = `
SELECT ` + heldOrderColumns + `
FROM held_orders
WHERE shift_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListHeldOrdersByShift(ctx context.Context, shiftID uuid.UUID) ([]HeldOrder, error) {
	rows, err := q.db.Query(ctx, listHeldOrdersByShift, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []HeldOrder
	for rows.Next() {
		h, err := scanHeldOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, h)
	}
	return orders, rows.Err()
}

const getHeldOrder = `
SELECT ` + heldOrderColumns + `
FROM held_orders
WHERE id = $1
`

func (q *Queries) GetHeldOrder(ctx context.Context, id uuid.UUID) (HeldOrder, error) {
	return scanHeldOrder(q.db.QueryRow(ctx, getHeldOrder, id))
}

const deleteHeldOrder = `
DELETE FROM held_orders
WHERE id = $1
`

// DeleteHeldOrder removes a held order and reports how many rows were
// deleted, so callers can distinguish "already gone".
func (q *Queries) DeleteHeldOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteHeldOrder, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
