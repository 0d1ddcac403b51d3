package order

import (
	"fmt"
	"strings"
)

// Status is the order lifecycle state. Orders are created as pending and only
// ever move forward; no transition skips backward.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPaid           Status = "paid"
	StatusCancelled      Status = "cancelled"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
)

var transitions = map[Status][]Status{
	StatusPending:        {StatusPaid, StatusCancelled, StatusOutForDelivery},
	StatusPaid:           {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	// delivered and cancelled are terminal
}

// ParseStatus validates a client supplied status label.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusOutForDelivery, StatusDelivered:
		return s, nil
	}
	return "", fmt.Errorf("unknown order status %q", value)
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
