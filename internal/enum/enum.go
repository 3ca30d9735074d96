package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	ShiftStatusOpen   = "OPEN"
	ShiftStatusClosed = "CLOSED"
)

const (
	SaleStatusPending   = "PENDING"
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
)

const (
	MovementTypeIn         = "IN"
	MovementTypeOut        = "OUT"
	MovementTypeAdjustment = "ADJUSTMENT"
)

const (
	MovementRefTransaction = "TRANSACTION"
	MovementRefPurchase    = "PURCHASE"
	MovementRefAdjustment  = "ADJUSTMENT"
	MovementRefWaste       = "WASTE"
)

const (
	CashFlowIn  = "IN"
	CashFlowOut = "OUT"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
)

const (
	OrderTypeDineIn     = "DINE_IN"
	OrderTypeTakeaway   = "TAKEAWAY"
	OrderTypeGoFood     = "GOFOOD"
	OrderTypeGrabFood   = "GRABFOOD"
	OrderTypeShopeeFood = "SHOPEEFOOD"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodDebit    = "DEBIT"
	PaymentMethodTransfer = "TRANSFER"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeNominal    = "NOMINAL"
)
