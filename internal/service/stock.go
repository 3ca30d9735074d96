package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/enum"
)

// RecipeStore is the read surface of the recipe resolver.
type RecipeStore interface {
	ListRecipeNeeds(ctx context.Context, productID uuid.UUID) ([]database.ListRecipeNeedsRow, error)
}

// StockStore defines the DB methods needed for manual stock movements.
// Satisfied by *database.Queries (and its WithTx variant).
type StockStore interface {
	RecipeStore
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	UpdateIngredientStock(ctx context.Context, arg database.UpdateIngredientStockParams) error
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// IngredientNeed is one resolved ingredient requirement of a cart line.
type IngredientNeed struct {
	IngredientID   uuid.UUID
	IngredientName string
	Unit           string
	Needed         decimal.Decimal
	Available      decimal.Decimal
}

// resolveIngredientNeeds expands (product, quantity) into ingredient
// requirements via the product's recipe rows. An empty result is a valid
// outcome: the product is untracked and sells without a stock check.
func resolveIngredientNeeds(ctx context.Context, store RecipeStore, productID uuid.UUID, quantity int32) ([]IngredientNeed, error) {
	rows, err := store.ListRecipeNeeds(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list recipe needs: %w", err)
	}
	needs := make([]IngredientNeed, 0, len(rows))
	qty := decimal.NewFromInt32(quantity)
	for _, r := range rows {
		needs = append(needs, IngredientNeed{
			IngredientID:   r.IngredientID,
			IngredientName: r.Name,
			Unit:           r.Unit,
			Needed:         numericToDecimal(r.Quantity).Mul(qty),
			Available:      numericToDecimal(r.CurrentStock),
		})
	}
	return needs, nil
}

// StockService handles the stock ledger outside of sale settlement:
// purchase receipts, waste write-offs, and stock-take corrections.
type StockService struct {
	store    StockStore
	pool     TxBeginner
	newStore NewStockStore
}

// NewStockService creates a new StockService.
func NewStockService(store StockStore, pool TxBeginner, newStore NewStockStore) *StockService {
	return &StockService{store: store, pool: pool, newStore: newStore}
}

// ResolveIngredientNeeds is the read-only resolver contract, evaluated
// against committed stock. No side effects.
func (s *StockService) ResolveIngredientNeeds(ctx context.Context, productID uuid.UUID, quantity int32) ([]IngredientNeed, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return resolveIngredientNeeds(ctx, s.store, productID, quantity)
}

// MovementRequest is a manual IN or OUT movement.
type MovementRequest struct {
	IngredientID  uuid.UUID
	Type          string // enum.MovementTypeIn or enum.MovementTypeOut
	Quantity      string
	ReferenceType string // PURCHASE, WASTE, or ADJUSTMENT
	Note          string
	ActorID       uuid.UUID
}

// RecordMovement applies a manual stock movement atomically: it locks the
// ingredient row, writes the new stock value, and appends the movement with
// before/after snapshots.
func (s *StockService) RecordMovement(ctx context.Context, req MovementRequest) (database.StockMovement, error) {
	if req.Type != enum.MovementTypeIn && req.Type != enum.MovementTypeOut {
		return database.StockMovement{}, ErrInvalidMovementType
	}
	switch req.ReferenceType {
	case enum.MovementRefPurchase, enum.MovementRefWaste, enum.MovementRefAdjustment:
	default:
		return database.StockMovement{}, ErrInvalidReferenceType
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || !qty.IsPositive() {
		return database.StockMovement{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.StockMovement{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ing, err := store.GetIngredientForUpdate(ctx, req.IngredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.StockMovement{}, ErrIngredientNotFound
		}
		return database.StockMovement{}, fmt.Errorf("get ingredient: %w", err)
	}

	before := numericToDecimal(ing.CurrentStock)
	var after decimal.Decimal
	if req.Type == enum.MovementTypeIn {
		after = before.Add(qty)
	} else {
		after = before.Sub(qty)
		if after.IsNegative() {
			return database.StockMovement{}, &InsufficientStockError{
				IngredientName: ing.Name,
				Unit:           ing.Unit,
				Needed:         qty,
				Available:      before,
			}
		}
	}

	if err := store.UpdateIngredientStock(ctx, database.UpdateIngredientStockParams{
		ID:           ing.ID,
		CurrentStock: decimalToNumeric(after),
	}); err != nil {
		return database.StockMovement{}, fmt.Errorf("update stock: %w", err)
	}

	movement, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		IngredientID:  ing.ID,
		Type:          req.Type,
		Quantity:      decimalToNumeric(qty),
		StockBefore:   decimalToNumeric(before),
		StockAfter:    decimalToNumeric(after),
		ReferenceType: req.ReferenceType,
		Note:          textOrNull(req.Note),
		CreatedBy:     req.ActorID,
	})
	if err != nil {
		return database.StockMovement{}, fmt.Errorf("create stock movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.StockMovement{}, fmt.Errorf("commit tx: %w", err)
	}
	return movement, nil
}

// AdjustmentRequest sets an ingredient's stock to a counted value.
type AdjustmentRequest struct {
	IngredientID uuid.UUID
	NewQuantity  string
	Note         string
	ActorID      uuid.UUID
}

// Adjust records a stock-take correction: the movement quantity is the
// absolute difference between the counted and the recorded stock.
func (s *StockService) Adjust(ctx context.Context, req AdjustmentRequest) (database.StockMovement, error) {
	newQty, err := decimal.NewFromString(req.NewQuantity)
	if err != nil || newQty.IsNegative() {
		return database.StockMovement{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.StockMovement{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ing, err := store.GetIngredientForUpdate(ctx, req.IngredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.StockMovement{}, ErrIngredientNotFound
		}
		return database.StockMovement{}, fmt.Errorf("get ingredient: %w", err)
	}

	before := numericToDecimal(ing.CurrentStock)
	diff := newQty.Sub(before)
	if diff.IsZero() {
		return database.StockMovement{}, ErrNoStockChange
	}

	if err := store.UpdateIngredientStock(ctx, database.UpdateIngredientStockParams{
		ID:           ing.ID,
		CurrentStock: decimalToNumeric(newQty),
	}); err != nil {
		return database.StockMovement{}, fmt.Errorf("update stock: %w", err)
	}

	movement, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		IngredientID:  ing.ID,
		Type:          enum.MovementTypeAdjustment,
		Quantity:      decimalToNumeric(diff.Abs()),
		StockBefore:   decimalToNumeric(before),
		StockAfter:    decimalToNumeric(newQty),
		ReferenceType: enum.MovementRefAdjustment,
		Note:          textOrNull(req.Note),
		CreatedBy:     req.ActorID,
	})
	if err != nil {
		return database.StockMovement{}, fmt.Errorf("create stock movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.StockMovement{}, fmt.Errorf("commit tx: %w", err)
	}
	return movement, nil
}
