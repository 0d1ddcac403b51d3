package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the immutable order header. Only Status changes after creation,
// through the lifecycle transitions.
type Order struct {
	ID                int64
	Number            string
	UserID            *int64
	PharmacyID        int64
	Status            Status
	TotalAmount       decimal.Decimal
	SubtotalAmount    decimal.Decimal
	QuantityDiscount  decimal.Decimal
	IsExpress         bool
	DeliveryAddress   string
	CustomerPhone     string
	CustomerLat       *float64
	CustomerLng       *float64
	DistanceKM        decimal.Decimal
	DistanceSurcharge decimal.Decimal
	CreatedAt         time.Time
}

// Item is one order line. UnitPrice is the price as charged, after the
// quantity discount, and never changes once the order is written.
type Item struct {
	MedicineID int64
	Quantity   int
	UnitPrice  decimal.Decimal
}

// ItemDetail is a line joined with the medicine display name for read-back.
type ItemDetail struct {
	Item
	MedicineName string
}

// Detail is the read-back view of an order joined with its items and the
// owning pharmacy's display info.
type Detail struct {
	Order
	PharmacyName string
	PharmacyLat  float64
	PharmacyLng  float64
	Items        []ItemDetail
}

// InputItem is a requested order line.
type InputItem struct {
	MedicineID int64 `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gt=0"`
}

// Input is the order creation request.
type Input struct {
	PharmacyID      int64       `json:"pharmacy_id" validate:"required,gt=0"`
	Items           []InputItem `json:"items" validate:"required,min=1,dive"`
	IsExpress       bool        `json:"is_express"`
	DeliveryAddress string      `json:"delivery_address" validate:"required"`
	CustomerPhone   string      `json:"customer_phone" validate:"required"`
	CustomerLat     *float64    `json:"customer_lat"`
	CustomerLng     *float64    `json:"customer_lng"`
	UserID          *int64      `json:"user_id"`
}

// Confirmation is the computed breakdown returned after a successful create.
type Confirmation struct {
	OrderID           int64
	OrderNumber       string
	Status            Status
	TotalAmount       decimal.Decimal
	SubtotalAmount    decimal.Decimal
	QuantityDiscount  decimal.Decimal
	DistanceKM        decimal.Decimal
	DistanceSurcharge decimal.Decimal
	ExpressCharge     decimal.Decimal
	IsExpress         bool
}
