package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors. Nothing is persisted when one of these is returned.
var (
	ErrShiftRequired         = errors.New("shift_id is required")
	ErrEmptyItems            = errors.New("items are required")
	ErrPaymentMethodRequired = errors.New("payment_method is required")
	ErrInvalidPaymentMethod  = errors.New("invalid payment_method")
	ErrInvalidOrderType      = errors.New("invalid order_type")
	ErrInvalidProductID      = errors.New("invalid product_id")
	ErrInvalidQuantity       = errors.New("quantity must be > 0")
	ErrInvalidDiscount       = errors.New("invalid discount_type")
	ErrInvalidDiscountValue  = errors.New("invalid discount_value")
	ErrInvalidAmount         = errors.New("amount must be a non-negative number")
	ErrInvalidDirection      = errors.New("direction must be IN or OUT")
	ErrLabelRequired         = errors.New("label is required")
	ErrInvalidMovementType   = errors.New("invalid movement type")
	ErrInvalidReferenceType  = errors.New("invalid reference type")
	ErrNoStockChange         = errors.New("stock is already at the given quantity")
)

// Not-found errors, including rows that resolve but are in a state that
// forbids the operation.
var (
	ErrShiftNotFound      = errors.New("shift not found")
	ErrShiftClosed        = errors.New("shift is already closed")
	ErrProductNotFound    = errors.New("product not found")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrSaleNotFound       = errors.New("sale not found")
	ErrCashFlowNotFound   = errors.New("cash flow not found")
	ErrHeldOrderNotFound  = errors.New("held order not found")
)

// Conflict errors.
var ErrShiftAlreadyOpen = errors.New("an open shift already exists for this cashier")

// ErrStockInvariant marks stock that would go negative past the sufficiency
// check. It indicates a serialization bug, not a user mistake, and must
// never be clamped away silently.
var ErrStockInvariant = errors.New("stock invariant violation: negative stock after deduction")

// InsufficientStockError reports the first ingredient for which a sale (or a
// manual out-movement) would overdraw stock.
type InsufficientStockError struct {
	ProductName    string
	IngredientName string
	Unit           string
	Needed         decimal.Decimal
	Available      decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	if e.ProductName == "" {
		return fmt.Sprintf("insufficient stock: %s needs %s %s, available %s %s",
			e.IngredientName, e.Needed, e.Unit, e.Available, e.Unit)
	}
	return fmt.Sprintf("insufficient stock for %s: %s needs %s %s, available %s %s",
		e.ProductName, e.IngredientName, e.Needed, e.Unit, e.Available, e.Unit)
}

var validationErrors = []error{
	ErrShiftRequired, ErrEmptyItems, ErrPaymentMethodRequired, ErrInvalidPaymentMethod,
	ErrInvalidOrderType, ErrInvalidProductID, ErrInvalidQuantity, ErrInvalidDiscount,
	ErrInvalidDiscountValue, ErrInvalidAmount, ErrInvalidDirection, ErrLabelRequired,
	ErrInvalidMovementType, ErrInvalidReferenceType, ErrNoStockChange,
}

var notFoundErrors = []error{
	ErrShiftNotFound, ErrShiftClosed, ErrProductNotFound, ErrIngredientNotFound,
	ErrSaleNotFound, ErrCashFlowNotFound, ErrHeldOrderNotFound,
}

// IsValidation reports whether err is a bad-input failure (HTTP 400).
func IsValidation(err error) bool {
	for _, e := range validationErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a missing or wrong-state entity (HTTP 404).
func IsNotFound(err error) bool {
	for _, e := range notFoundErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a state conflict (HTTP 409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrShiftAlreadyOpen)
}

// IsInsufficientStock reports whether err carries an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
