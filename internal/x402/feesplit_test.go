package x402

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name         string
		gross        string
		feePercent   int
		wantFee      string
		wantMerchant string
	}{
		{name: "five percent of one token", gross: "1000000", feePercent: 5, wantFee: "50000", wantMerchant: "950000"},
		{name: "zero fee", gross: "1000000", feePercent: 0, wantFee: "0", wantMerchant: "1000000"},
		{name: "full fee", gross: "1000000", feePercent: 100, wantFee: "1000000", wantMerchant: "0"},
		{name: "fee rounds down", gross: "99", feePercent: 5, wantFee: "4", wantMerchant: "95"},
		{name: "one unit", gross: "1", feePercent: 5, wantFee: "0", wantMerchant: "1"},
		{name: "zero gross", gross: "0", feePercent: 5, wantFee: "0", wantMerchant: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, merchant, err := Split(tt.gross, tt.feePercent)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantMerchant, merchant)
		})
	}
}

func TestSplitSumInvariant(t *testing.T) {
	// fee + merchant must reconstruct the gross amount exactly for any
	// percentage, including ones that do not divide evenly.
	grosses := []string{"1", "7", "99", "1000000", "123456789123456789"}
	for _, gross := range grosses {
		for percent := 0; percent <= 100; percent += 7 {
			fee, merchant, err := Split(gross, percent)
			require.NoError(t, err)

			feeInt, _ := new(big.Int).SetString(fee, 10)
			merchantInt, _ := new(big.Int).SetString(merchant, 10)
			sum := new(big.Int).Add(feeInt, merchantInt)
			assert.Equal(t, gross, sum.String(),
				fmt.Sprintf("gross %s at %d%%", gross, percent))
		}
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	_, _, err := Split("1000000", -1)
	assert.Error(t, err)

	_, _, err = Split("1000000", 101)
	assert.Error(t, err)

	_, _, err = Split("1.5", 5)
	assert.Error(t, err)

	_, _, err = Split("-100", 5)
	assert.Error(t, err)

	_, _, err = Split("", 5)
	assert.Error(t, err)
}

func TestNewFeeRecord(t *testing.T) {
	record, err := NewFeeRecord("1000000", 5)
	require.NoError(t, err)
	assert.Equal(t, "1000000", record.GrossAmount)
	assert.Equal(t, "50000", record.FeeAmount)
	assert.Equal(t, "950000", record.MerchantAmount)
	assert.False(t, record.Transferred)
}

func TestPriceDisplay(t *testing.T) {
	display, err := PriceDisplay("1000000", 6)
	require.NoError(t, err)
	assert.Equal(t, "1", display)

	display, err = PriceDisplay("1500000", 6)
	require.NoError(t, err)
	assert.Equal(t, "1.5", display)

	display, err = PriceDisplay("1", 6)
	require.NoError(t, err)
	assert.Equal(t, "0.000001", display)

	_, err = PriceDisplay("abc", 6)
	assert.Error(t, err)
}
