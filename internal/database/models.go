package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Category struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type Product struct {
	ID         uuid.UUID
	CategoryID pgtype.UUID
	Name       string
	Price      pgtype.Numeric
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Ingredient struct {
	ID           uuid.UUID
	Name         string
	Unit         string
	CurrentStock pgtype.Numeric
	MinStock     pgtype.Numeric
	CostPerUnit  pgtype.Numeric
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Recipe struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	IngredientID uuid.UUID
	Quantity     pgtype.Numeric
}

type Shift struct {
	ID           uuid.UUID
	CashierID    uuid.UUID
	Status       string
	OpeningFloat pgtype.Numeric
	TotalCash    pgtype.Numeric
	TotalNonCash pgtype.Numeric
	CashIn       pgtype.Numeric
	CashOut      pgtype.Numeric
	ExpectedCash pgtype.Numeric
	ActualCash   pgtype.Numeric
	Difference   pgtype.Numeric
	StartedAt    time.Time
	EndedAt      pgtype.Timestamptz
}

type CashFlow struct {
	ID        uuid.UUID
	ShiftID   uuid.UUID
	Direction string
	Label     string
	Amount    pgtype.Numeric
	CreatedAt time.Time
}

type Sale struct {
	ID             uuid.UUID
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
	CreatedAt      time.Time
}

type SaleItem struct {
	ID             uuid.UUID
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

type StockMovement struct {
	ID            uuid.UUID
	IngredientID  uuid.UUID
	Type          string
	Quantity      pgtype.Numeric
	StockBefore   pgtype.Numeric
	StockAfter    pgtype.Numeric
	ReferenceType string
	ReferenceID   pgtype.UUID
	Note          pgtype.Text
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}

type HeldOrder struct {
	ID          uuid.UUID
	ShiftID     uuid.UUID
	CashierID   uuid.UUID
	OrderType   string
	TableNumber pgtype.Text
	Items       []byte
	Total       pgtype.Numeric
	Note        pgtype.Text
	CreatedAt   time.Time
}
