// Package common holds the small enumerations shared by every other
// package in freightex, grounded on the Side/OrderType discriminators in
// the teacher's internal/common/order.go and internal/net/messages.go.
package common

// Side is which side of a book an order rests on.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderType distinguishes the two instrument flavors a book can carry
// (spec §3, GLOSSARY). A single enum discriminator avoids a tagged-variant
// per type, per the design note in spec §9.
type OrderType int

const (
	ContractOwnership OrderType = iota
	LegFreight
)

func (t OrderType) String() string {
	if t == ContractOwnership {
		return "CONTRACT_OWNERSHIP"
	}
	return "LEG_FREIGHT"
}

// MatchType mirrors OrderType on the Match record (spec §3).
type MatchType = OrderType
