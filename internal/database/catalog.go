package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProductForSale = `
SELECT id, name, price
FROM products
WHERE id = $1 AND is_active = true
`

type GetProductForSaleRow struct {
	ID    uuid.UUID
	Name  string
	Price pgtype.Numeric
}

func (q *Queries) GetProductForSale(ctx context.Context, id uuid.UUID) (GetProductForSaleRow, error) {
	row := q.db.QueryRow(ctx, getProductForSale, id)
	var p GetProductForSaleRow
	err := row.Scan(&p.ID, &p.Name, &p.Price)
	return p, err
}

const listRecipeNeeds = `
SELECT r.ingredient_id, i.name, i.unit, r.quantity, i.current_stock
FROM recipes r
JOIN ingredients i ON i.id = r.ingredient_id
WHERE r.product_id = $1 AND i.is_active = true
ORDER BY r.ingredient_id
`

type ListRecipeNeedsRow struct {
	IngredientID uuid.UUID
	Name         string
	Unit         string
	Quantity     pgtype.Numeric
	CurrentStock pgtype.Numeric
}

// ListRecipeNeeds returns the per-unit ingredient requirements of a product.
// A product with no recipe rows yields an empty slice, which means the
// product sells without any stock constraint.
func (q *Queries) ListRecipeNeeds(ctx context.Context, productID uuid.UUID) ([]ListRecipeNeedsRow, error) {
	rows, err := q.db.Query(ctx, listRecipeNeeds, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRecipeNeedsRow
	for rows.Next() {
		var r ListRecipeNeedsRow
		if err := rows.Scan(&r.IngredientID, &r.Name, &r.Unit, &r.Quantity, &r.CurrentStock); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getIngredient = `
SELECT id, name, unit, current_stock, min_stock, cost_per_unit, is_active, created_at, updated_at
FROM ingredients
WHERE id = $1
`

func (q *Queries) GetIngredient(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	row := q.db.QueryRow(ctx, getIngredient, id)
	var i Ingredient
	err := row.Scan(&i.ID, &i.Name, &i.Unit, &i.CurrentStock, &i.MinStock, &i.CostPerUnit, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getIngredientForUpdate = `
SELECT id, name, unit, current_stock, min_stock, cost_per_unit, is_active, created_at, updated_at
FROM ingredients
WHERE id = $1
FOR UPDATE
`

// GetIngredientForUpdate locks the ingredient row for the remainder of the
// current transaction, serializing concurrent check-then-deduct sequences
// on the same ingredient. Must only be called inside a transaction.
func (q *Queries) GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	row := q.db.QueryRow(ctx, getIngredientForUpdate, id)
	var i Ingredient
	err := row.Scan(&i.ID, &i.Name, &i.Unit, &i.CurrentStock, &i.MinStock, &i.CostPerUnit, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updateIngredientStock = `
UPDATE ingredients
SET current_stock = $2, updated_at = now()
WHERE id = $1
`

type UpdateIngredientStockParams struct {
	ID           uuid.UUID
	CurrentStock pgtype.Numeric
}

func (q *Queries) UpdateIngredientStock(ctx context.Context, arg UpdateIngredientStockParams) error {
	_, err := q.db.Exec(ctx, updateIngredientStock, arg.ID, arg.CurrentStock)
	return err
}

const listLowStockIngredients = `
SELECT id, name, unit, current_stock, min_stock, cost_per_unit, is_active, created_at, updated_at
FROM ingredients
WHERE is_active = true AND current_stock <= min_stock
ORDER BY name
`

func (q *Queries) ListLowStockIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listLowStockIngredients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Ingredient
	for rows.Next() {
		var i Ingredient
		if err := rows.Scan(&i.ID, &i.Name, &i.Unit, &i.CurrentStock, &i.MinStock, &i.CostPerUnit, &i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
