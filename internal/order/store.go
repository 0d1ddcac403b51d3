package order

import (
	"context"

	"github.com/noah-isme/backend-apotek/internal/catalog"
	"github.com/noah-isme/backend-apotek/internal/pharmacy"
)

// Store is the persistence boundary of the order core. Implementations must
// run the InTx callback inside a single transaction: every mutation made
// through the Tx either commits as a whole or leaves no trace.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetOrder(ctx context.Context, id int64) (*Detail, error)
}

// Tx is the set of operations available inside an order transaction.
type Tx interface {
	// PharmacyByID resolves a pharmacy or returns pharmacy.ErrNotFound.
	PharmacyByID(ctx context.Context, id int64) (pharmacy.Pharmacy, error)
	// MedicineForPharmacy resolves a medicine owned by the pharmacy or
	// returns catalog.ErrNotFound.
	MedicineForPharmacy(ctx context.Context, pharmacyID, medicineID int64) (catalog.Medicine, error)
	// ReserveStock atomically decrements stock, failing with
	// catalog.ErrInsufficientStock when fewer than quantity units remain.
	// The check and the decrement are one indivisible operation.
	ReserveStock(ctx context.Context, medicineID int64, quantity int) error
	// OrderNumberExists reports whether an order already uses the number.
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	// InsertOrder writes the order header and fills in the assigned id.
	// A concurrent duplicate of Number surfaces as ErrNumberTaken.
	InsertOrder(ctx context.Context, o *Order) error
	// InsertItems writes the order lines.
	InsertItems(ctx context.Context, orderID int64, items []Item) error
	// OrderStatusForUpdate reads the current status with an exclusive row
	// lock held for the remainder of the transaction.
	OrderStatusForUpdate(ctx context.Context, id int64) (Status, error)
	// SetOrderStatus updates the lifecycle status.
	SetOrderStatus(ctx context.Context, id int64, status Status) error
}
