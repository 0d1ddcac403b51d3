// Package catalog holds the inventory side of the marketplace: medicines
// owned by a pharmacy together with their available stock. Stock moves only
// through reservation (atomic conditional decrement) inside an order
// transaction; restock tooling lives outside this service.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the medicine does not exist for the pharmacy.
	ErrNotFound = errors.New("medicine not found")
	// ErrInsufficientStock indicates the requested quantity exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Medicine is an inventory row as the order core sees it.
type Medicine struct {
	ID         int64
	PharmacyID int64
	Name       string
	Price      decimal.Decimal
	StockQty   int
}
