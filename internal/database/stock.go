package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStockMovement = `
INSERT INTO stock_movements (ingredient_id, type, quantity, stock_before, stock_after,
	reference_type, reference_id, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, ingredient_id, type, quantity, stock_before, stock_after,
	reference_type, reference_id, note, created_by, created_at
`

type CreateStockMovementParams struct {
	IngredientID  uuid.UUID
	Type          string
	Quantity      pgtype.Numeric
	StockBefore   pgtype.Numeric
	StockAfter    pgtype.Numeric
	ReferenceType string
	ReferenceID   pgtype.UUID
	Note          pgtype.Text
	CreatedBy     uuid.UUID
}

// CreateStockMovement appends one ledger entry. Movements are never updated
// or deleted; corrections are new movements.
func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, createStockMovement,
		arg.IngredientID, arg.Type, arg.Quantity, arg.StockBefore, arg.StockAfter,
		arg.ReferenceType, arg.ReferenceID, arg.Note, arg.CreatedBy)
	var m StockMovement
	err := row.Scan(&m.ID, &m.IngredientID, &m.Type, &m.Quantity, &m.StockBefore, &m.StockAfter,
		&m.ReferenceType, &m.ReferenceID, &m.Note, &m.CreatedBy, &m.CreatedAt)
	return m, err
}

const listStockMovementsByIngredient = `
SELECT id, ingredient_id, type, quantity, stock_before, stock_after,
	reference_type, reference_id, note, created_by, created_at
FROM stock_movements
WHERE ingredient_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListStockMovementsByIngredientParams struct {
	IngredientID uuid.UUID
	Limit        int32
}

func (q *Queries) ListStockMovementsByIngredient(ctx context.Context, arg ListStockMovementsByIngredientParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, listStockMovementsByIngredient, arg.IngredientID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.IngredientID, &m.Type, &m.Quantity, &m.StockBefore, &m.StockAfter,
			&m.ReferenceType, &m.ReferenceID, &m.Note, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
