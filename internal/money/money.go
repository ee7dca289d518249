// Package money centralizes the decimal arithmetic used by the ledger and
// settlement so that the platform fee calculation has exactly one
// implementation.
package money

import "github.com/shopspring/decimal"

// PlatformFeeRate is the percentage of a settled amount credited to the
// platform account (spec §4.5 default 1%).
var PlatformFeeRate = decimal.NewFromFloat(0.01)

// Zero is the additive identity, exported so callers don't sprinkle
// decimal.Zero everywhere.
var Zero = decimal.Zero

// Split divides amount into the platform fee and the counterparty payout.
func Split(amount decimal.Decimal) (fee, payout decimal.Decimal) {
	fee = amount.Mul(PlatformFeeRate).Round(2)
	payout = amount.Sub(fee)
	return fee, payout
}
