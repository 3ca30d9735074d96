package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleColumns = `id, shift_id, cashier_id, sale_number, order_type, table_number,
	payment_method, status, subtotal, discount_type, discount_value, discount_amount,
	total, paid_amount, change_amount, note, created_at`

func scanSale(row interface{ Scan(dest ...any) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.ShiftID, &s.CashierID, &s.SaleNumber, &s.OrderType, &s.TableNumber,
		&s.PaymentMethod, &s.Status, &s.Subtotal, &s.DiscountType, &s.DiscountValue, &s.DiscountAmount,
		&s.Total, &s.PaidAmount, &s.ChangeAmount, &s.Note, &s.CreatedAt)
	return s, err
}

const getNextSaleNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(sale_number FROM 5) AS int)), 0) + 1
FROM sales
WHERE shift_id = $1
`

// GetNextSaleNumber returns the next per-shift sequence for sale numbers of
// the form DPR-NNN. Concurrent transactions can read the same MAX; the
// unique constraint on (shift_id, sale_number) catches the race and the
// caller retries.
func (q *Queries) GetNextSaleNumber(ctx context.Context, shiftID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextSaleNumber, shiftID).Scan(&n)
	return n, err
}

const createSale = `
INSERT INTO sales (shift_id, cashier_id, sale_number, order_type, table_number,
	payment_method, status, subtotal, discount_type, discount_value, discount_amount,
	total, paid_amount, change_amount, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + saleColumns

type CreateSaleParams struct {
	ShiftID        uuid.UUID
	CashierID      uuid.UUID
	SaleNumber     string
	OrderType      string
	TableNumber    pgtype.Text
	PaymentMethod  string
	Status         string
	Subtotal       pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	Total          pgtype.Numeric
	PaidAmount     pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	Note           pgtype.Text
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, createSale,
		arg.ShiftID, arg.CashierID, arg.SaleNumber, arg.OrderType, arg.TableNumber,
		arg.PaymentMethod, arg.Status, arg.Subtotal, arg.DiscountType, arg.DiscountValue,
		arg.DiscountAmount, arg.Total, arg.PaidAmount, arg.ChangeAmount, arg.Note))
}

const createSaleItem = `
INSERT INTO sale_items (sale_id, product_id, product_name, unit_price, quantity,
	discount_type, discount_value, discount_amount, subtotal, total, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, sale_id, product_id, product_name, unit_price, quantity,
	discount_type, discount_value, discount_amount, subtotal, total, note
`

type CreateSaleItemParams struct {
	SaleID         uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	UnitPrice      pgtype.Numeric
	Quantity       int32
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	Subtotal       pgtype.Numeric
	Total          pgtype.Numeric
	Note           pgtype.Text
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	row := q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID, arg.ProductID, arg.ProductName, arg.UnitPrice, arg.Quantity,
		arg.DiscountType, arg.DiscountValue, arg.DiscountAmount, arg.Subtotal, arg.Total, arg.Note)
	var it SaleItem
	err := row.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity,
		&it.DiscountType, &it.DiscountValue, &it.DiscountAmount, &it.Subtotal, &it.Total, &it.Note)
	return it, err
}

const getSale = `
SELECT ` + saleColumns + `
FROM sales
WHERE id = $1
`

func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSale, id))
}

const listSalesByShift = `
SELECT ` + saleColumns + `
FROM sales
WHERE shift_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListSalesByShift(ctx context.Context, shiftID uuid.UUID) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listSalesByShift, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

const listSaleItemsBySale = `
SELECT id, sale_id, product_id, product_name, unit_price, quantity,
	discount_type, discount_value, discount_amount, subtotal, total, note
FROM sale_items
WHERE sale_id = $1
ORDER BY id
`

func (q *Queries) ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItemsBySale, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity,
			&it.DiscountType, &it.DiscountValue, &it.DiscountAmount, &it.Subtotal, &it.Total, &it.Note); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteSaleItemsBySale = `
DELETE FROM sale_items
WHERE sale_id = $1
`

func (q *Queries) DeleteSaleItemsBySale(ctx context.Context, saleID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteSaleItemsBySale, saleID)
	return err
}

const deleteSale = `
DELETE FROM sales
WHERE id = $1
`

func (q *Queries) DeleteSale(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteSale, id)
	return err
}
