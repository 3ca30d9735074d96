package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dapoer-pos/api/internal/database"
	"github.com/dapoer-pos/api/internal/enum"
)

const maxSaleNumberRetries = 3

// SaleStore defines the DB methods needed to settle and delete sales.
// Satisfied by *database.Queries (and its WithTx variant).
type SaleStore interface {
	RecipeStore
	GetShift(ctx context.Context, id uuid.UUID) (database.Shift, error)
	GetNextSaleNumber(ctx context.Context, shiftID uuid.UUID) (int32, error)
	GetProductForSale(ctx context.Context, id uuid.UUID) (database.GetProductForSaleRow, error)
	GetIngredientForUpdate(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	UpdateIngredientStock(ctx context.Context, arg database.UpdateIngredientStockParams) error
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	AddCashSaleToShift(ctx context.Context, arg database.ShiftAmountParams) error
	AddNonCashSaleToShift(ctx context.Context, arg database.ShiftAmountParams) error
	ReverseCashSaleFromShift(ctx context.Context, arg database.ShiftAmountParams) error
	ReverseNonCashSaleFromShift(ctx context.Context, arg database.ShiftAmountParams) error
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	DeleteSaleItemsBySale(ctx context.Context, saleID uuid.UUID) error
	DeleteSale(ctx context.Context, id uuid.UUID) error
}

// NewSaleStore creates a SaleStore from a DBTX (pool or tx).
type NewSaleStore func(db database.DBTX) SaleStore

// CreateSaleRequest is the validated input for settling a sale.
type CreateSaleRequest struct {
	ShiftID       uuid.UUID
	CashierID     uuid.UUID
	OrderType     string
	TableNumber   string
	PaymentMethod string
	DiscountType  string
	DiscountValue string
	PaidAmount    string
	Note          string
	Items         []CreateSaleItemRequest
}

// CreateSaleItemRequest is a single cart line.
type CreateSaleItemRequest struct {
	ProductID     string
	Quantity      int32
	DiscountType  string
	DiscountValue string
	Note          string
}

// LowStockAlert reports an ingredient at or below its minimum threshold
// after a committed settlement.
type LowStockAlert struct {
	IngredientID uuid.UUID
	Name         string
	Unit         string
	CurrentStock decimal.Decimal
	MinStock     decimal.Decimal
}

// CreateSaleResult is the committed sale with its lines.
type CreateSaleResult struct {
	Sale     database.Sale
	Items    []database.SaleItem
	LowStock []LowStockAlert
}

// SaleService orchestrates sale settlement: stock sufficiency, pricing,
// persistence, stock deduction, and shift totals, all in one transaction.
type SaleService struct {
	pool     TxBeginner
	newStore NewSaleStore
}

// NewSaleService creates a new SaleService.
func NewSaleService(pool TxBeginner, newStore NewSaleStore) *SaleService {
	return &SaleService{pool: pool, newStore: newStore}
}

// processedItem holds a priced cart line ready for insertion.
type processedItem struct {
	params database.CreateSaleItemParams
}

// aggregatedNeed is the total requirement for one ingredient across the
// whole cart. Lines sharing an ingredient must be checked together, or two
// lines could each pass individually and overdraw in sum.
type aggregatedNeed struct {
	ingredientID uuid.UUID
	needed       decimal.Decimal
	firstProduct string
}

// CreateSale validates, checks stock, prices, and commits a sale atomically.
// Retries on sale_number unique violations (concurrent transactions in the
// same shift can read the same MAX).
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*CreateSaleResult, error) {
	if req.ShiftID == uuid.Nil {
		return nil, ErrShiftRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	if !isValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if req.DiscountType != "" && !isValidDiscountType(req.DiscountType) {
		return nil, ErrInvalidDiscount
	}

	var lastErr error
	for attempt := 0; attempt < maxSaleNumberRetries; attempt++ {
		result, err := s.createSaleTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isSaleNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isSaleNumberConflict checks for a unique violation on the per-shift sale
// number (pgconn error code 23505).
func isSaleNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "sales_shift_id_sale_number_key"
	}
	return false
}

// createSaleTx executes the full settlement in a single transaction:
// resolve and lock stock, check sufficiency, price, persist, deduct,
// update shift totals, commit. Any error rolls back everything.
func (s *SaleService) createSaleTx(ctx context.Context, req CreateSaleRequest) (*CreateSaleResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Shift must exist and be open ---
	shift, err := store.GetShift(ctx, req.ShiftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}
	if shift.Status != enum.ShiftStatusOpen {
		return nil, ErrShiftClosed
	}

	nextNum, err := store.GetNextSaleNumber(ctx, req.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("get next sale number: %w", err)
	}
	saleNumber := fmt.Sprintf("DPR-%03d", nextNum)

	// --- Resolve recipes and price every line ---
	orderSubtotal := decimal.Zero
	var items []processedItem
	needsByIngredient := make(map[uuid.UUID]*aggregatedNeed)

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProductForSale(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		needs, err := resolveIngredientNeeds(ctx, store, productID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		for _, n := range needs {
			agg, ok := needsByIngredient[n.IngredientID]
			if !ok {
				needsByIngredient[n.IngredientID] = &aggregatedNeed{
					ingredientID: n.IngredientID,
					needed:       n.Needed,
					firstProduct: product.Name,
				}
				continue
			}
			agg.needed = agg.needed.Add(n.Needed)
		}

		unitPrice := numericToDecimal(product.Price)
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))

		// Line discount. Totals are intentionally not clamped: a nominal
		// discount larger than the line subtotal yields a negative total.
		itemDiscountType := pgtype.Text{}
		itemDiscountValue := pgtype.Numeric{}
		itemDiscountAmount := decimal.Zero
		if item.DiscountType != "" {
			if !isValidDiscountType(item.DiscountType) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidDiscount)
			}
			dv, err := decimal.NewFromString(item.DiscountValue)
			if err != nil {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidDiscountValue)
			}
			itemDiscountType = pgtype.Text{String: item.DiscountType, Valid: true}
			itemDiscountValue = decimalToNumeric(dv)
			if item.DiscountType == enum.DiscountTypePercentage {
				itemDiscountAmount = lineSubtotal.Mul(dv).Div(decimal.NewFromInt(100))
			} else {
				itemDiscountAmount = dv
			}
		}

		lineTotal := lineSubtotal.Sub(itemDiscountAmount)
		orderSubtotal = orderSubtotal.Add(lineTotal)

		items = append(items, processedItem{
			params: database.CreateSaleItemParams{
				ProductID:      productID,
				ProductName:    product.Name,
				UnitPrice:      decimalToNumeric(unitPrice),
				Quantity:       item.Quantity,
				DiscountType:   itemDiscountType,
				DiscountValue:  itemDiscountValue,
				DiscountAmount: decimalToNumeric(itemDiscountAmount),
				Subtotal:       decimalToNumeric(lineSubtotal),
				Total:          decimalToNumeric(lineTotal),
				Note:           textOrNull(item.Note),
			},
		})
	}

	// --- Lock ingredients and check sufficiency against locked stock ---
	// Rows are locked in primary-key order so two settlements touching the
	// same ingredients never deadlock.
	sortedNeeds := make([]*aggregatedNeed, 0, len(needsByIngredient))
	for _, n := range needsByIngredient {
		sortedNeeds = append(sortedNeeds, n)
	}
	sort.Slice(sortedNeeds, func(i, j int) bool {
		a, b := sortedNeeds[i].ingredientID, sortedNeeds[j].ingredientID
		return bytes.Compare(a[:], b[:]) < 0
	})

	type lockedIngredient struct {
		ingredient database.Ingredient
		stock      decimal.Decimal
	}
	locked := make(map[uuid.UUID]lockedIngredient, len(sortedNeeds))
	for _, need := range sortedNeeds {
		ing, err := store.GetIngredientForUpdate(ctx, need.ingredientID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrIngredientNotFound
			}
			return nil, fmt.Errorf("lock ingredient: %w", err)
		}
		available := numericToDecimal(ing.CurrentStock)
		if available.LessThan(need.needed) {
			return nil, &InsufficientStockError{
				ProductName:    need.firstProduct,
				IngredientName: ing.Name,
				Unit:           ing.Unit,
				Needed:         need.needed,
				Available:      available,
			}
		}
		locked[need.ingredientID] = lockedIngredient{ingredient: ing, stock: available}
	}

	// --- Order-level discount and totals ---
	orderDiscountType := pgtype.Text{}
	orderDiscountValue := pgtype.Numeric{}
	orderDiscountAmount := decimal.Zero
	if req.DiscountType != "" {
		dv, err := decimal.NewFromString(req.DiscountValue)
		if err != nil {
			return nil, ErrInvalidDiscountValue
		}
		orderDiscountType = pgtype.Text{String: req.DiscountType, Valid: true}
		orderDiscountValue = decimalToNumeric(dv)
		if req.DiscountType == enum.DiscountTypePercentage {
			orderDiscountAmount = orderSubtotal.Mul(dv).Div(decimal.NewFromInt(100))
		} else {
			orderDiscountAmount = dv
		}
	}
	total := orderSubtotal.Sub(orderDiscountAmount)

	paidAmount := decimal.Zero
	if req.PaidAmount != "" {
		paidAmount, err = decimal.NewFromString(req.PaidAmount)
		if err != nil {
			return nil, ErrInvalidAmount
		}
	}
	changeAmount := decimal.Zero
	if req.PaymentMethod == enum.PaymentMethodCash {
		changeAmount = paidAmount.Sub(total)
	}

	// --- Persist sale header and lines ---
	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		ShiftID:        req.ShiftID,
		CashierID:      req.CashierID,
		SaleNumber:     saleNumber,
		OrderType:      req.OrderType,
		TableNumber:    textOrNull(req.TableNumber),
		PaymentMethod:  req.PaymentMethod,
		Status:         enum.SaleStatusCompleted,
		Subtotal:       decimalToNumeric(orderSubtotal),
		DiscountType:   orderDiscountType,
		DiscountValue:  orderDiscountValue,
		DiscountAmount: decimalToNumeric(orderDiscountAmount),
		Total:          decimalToNumeric(total),
		PaidAmount:     decimalToNumeric(paidAmount),
		ChangeAmount:   decimalToNumeric(changeAmount),
		Note:           textOrNull(req.Note),
	})
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	var itemResults []database.SaleItem
	for _, pi := range items {
		pi.params.SaleID = sale.ID
		item, err := store.CreateSaleItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}
		itemResults = append(itemResults, item)
	}

	// --- Deduct stock and append movements ---
	var lowStock []LowStockAlert
	for _, need := range sortedNeeds {
		li := locked[need.ingredientID]
		after := li.stock.Sub(need.needed)
		if after.IsNegative() {
			// The sufficiency check above used the same locked values, so
			// this branch is unreachable unless serialization is broken.
			return nil, fmt.Errorf("ingredient %s: %w", li.ingredient.Name, ErrStockInvariant)
		}
		if err := store.UpdateIngredientStock(ctx, database.UpdateIngredientStockParams{
			ID:           need.ingredientID,
			CurrentStock: decimalToNumeric(after),
		}); err != nil {
			return nil, fmt.Errorf("deduct stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			IngredientID:  need.ingredientID,
			Type:          enum.MovementTypeOut,
			Quantity:      decimalToNumeric(need.needed),
			StockBefore:   decimalToNumeric(li.stock),
			StockAfter:    decimalToNumeric(after),
			ReferenceType: enum.MovementRefTransaction,
			ReferenceID:   pgtype.UUID{Bytes: sale.ID, Valid: true},
			CreatedBy:     req.CashierID,
		}); err != nil {
			return nil, fmt.Errorf("create stock movement: %w", err)
		}
		minStock := numericToDecimal(li.ingredient.MinStock)
		if after.LessThanOrEqual(minStock) {
			lowStock = append(lowStock, LowStockAlert{
				IngredientID: need.ingredientID,
				Name:         li.ingredient.Name,
				Unit:         li.ingredient.Unit,
				CurrentStock: after,
				MinStock:     minStock,
			})
		}
	}

	// --- Update shift running totals (atomic increments) ---
	totalNumeric := decimalToNumeric(total)
	if req.PaymentMethod == enum.PaymentMethodCash {
		err = store.AddCashSaleToShift(ctx, database.ShiftAmountParams{ID: req.ShiftID, Amount: totalNumeric})
	} else {
		err = store.AddNonCashSaleToShift(ctx, database.ShiftAmountParams{ID: req.ShiftID, Amount: totalNumeric})
	}
	if err != nil {
		return nil, fmt.Errorf("update shift totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateSaleResult{Sale: sale, Items: itemResults, LowStock: lowStock}, nil
}

// DeleteSale removes a sale and its lines. If the owning shift is still
// open, the sale's effect on the shift totals is reversed, clamped at zero.
// Deducted ingredient stock is intentionally NOT re-credited and the sale's
// stock movements are kept: the ingredients were physically consumed.
func (s *SaleService) DeleteSale(ctx context.Context, saleID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	sale, err := store.GetSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("get sale: %w", err)
	}

	shift, err := store.GetShift(ctx, sale.ShiftID)
	if err != nil {
		return fmt.Errorf("get shift: %w", err)
	}
	if shift.Status == enum.ShiftStatusOpen {
		amount := database.ShiftAmountParams{ID: sale.ShiftID, Amount: sale.Total}
		if sale.PaymentMethod == enum.PaymentMethodCash {
			err = store.ReverseCashSaleFromShift(ctx, amount)
		} else {
			err = store.ReverseNonCashSaleFromShift(ctx, amount)
		}
		if err != nil {
			return fmt.Errorf("reverse shift totals: %w", err)
		}
	}

	if err := store.DeleteSaleItemsBySale(ctx, saleID); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	if err := store.DeleteSale(ctx, saleID); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Helpers ---

func isValidOrderType(s string) bool {
	switch s {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway,
		enum.OrderTypeGoFood, enum.OrderTypeGrabFood, enum.OrderTypeShopeeFood:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodQRIS,
		enum.PaymentMethodDebit, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

func isValidDiscountType(s string) bool {
	switch s {
	case enum.DiscountTypePercentage, enum.DiscountTypeNominal:
		return true
	}
	return false
}
