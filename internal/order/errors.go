package order

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error classification surfaced to API clients.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindPersistence       Kind = "persistence"
)

// ErrNumberTaken is returned by the store when the generated order number
// collides with an existing order.
var ErrNumberTaken = errors.New("order number already taken")

// ErrInvalidTransition is returned for status changes the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// Error carries the failure kind for an order operation. For insufficient
// stock the offending medicine id is included so the client can fix the cart.
type Error struct {
	Kind       Kind
	Message    string
	MedicineID int64
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func insufficientStockError(medicineID int64) *Error {
	return &Error{
		Kind:       KindInsufficientStock,
		Message:    fmt.Sprintf("insufficient stock for medicine %d", medicineID),
		MedicineID: medicineID,
	}
}

func persistenceError(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "order could not be persisted", Err: err}
}
