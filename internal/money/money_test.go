package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitAppliesPlatformFeeRate(t *testing.T) {
	fee, payout := Split(decimal.NewFromInt(100))
	assert.True(t, fee.Equal(decimal.NewFromFloat(1)), "got fee %s", fee)
	assert.True(t, payout.Equal(decimal.NewFromFloat(99)), "got payout %s", payout)
}

func TestSplitFeePlusPayoutEqualsAmount(t *testing.T) {
	amount := decimal.NewFromFloat(1450)
	fee, payout := Split(amount)
	assert.True(t, fee.Add(payout).Equal(amount), "fee %s + payout %s != amount %s", fee, payout, amount)
}

func TestSplitRoundsFeeToCents(t *testing.T) {
	fee, _ := Split(decimal.NewFromFloat(33.333))
	assert.True(t, fee.Equal(fee.Round(2)), "fee %s should already be rounded to cents", fee)
}
