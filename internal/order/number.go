package order

import (
	"strings"

	"github.com/google/uuid"
)

// NewNumber generates a human-readable order number: "ORD-" followed by the
// first 8 hex digits of a random UUID, upper-cased. Collisions are possible at
// this length, so the store checks the number before insert and keeps a unique
// constraint as the final arbiter.
func NewNumber() string {
	compact := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(compact[:8])
}
