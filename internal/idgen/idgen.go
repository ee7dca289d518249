// Package idgen generates the order, match, and hold identifiers used
// across the engine and settlement, grounded on the teacher's
// NewOrderMessage.Order() use of github.com/google/uuid.
package idgen

import "github.com/google/uuid"

// New returns a fresh random identifier string.
func New() string {
	return uuid.New().String()
}
