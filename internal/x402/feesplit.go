package x402

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FeeRecord is the economic split of one settled payment. Constructed only
// through NewFeeRecord so the sum invariant holds for every record.
type FeeRecord struct {
	GrossAmount    string `json:"grossAmount"`
	FeeAmount      string `json:"feeAmount"`
	MerchantAmount string `json:"merchantAmount"`
	Transferred    bool   `json:"transferred"`
}

var oneHundred = big.NewInt(100)

// Split divides a gross amount in token minor units into a platform fee and
// a merchant amount. All arithmetic is integer arithmetic on the minor-unit
// representation: fee = floor(gross * percent / 100), merchant = gross - fee.
// The fee + merchant == gross invariant therefore holds unconditionally.
func Split(gross string, feePercent int) (fee string, merchant string, err error) {
	if feePercent < 0 || feePercent > 100 {
		return "", "", fmt.Errorf("fee percentage must be between 0 and 100, got %d", feePercent)
	}
	if !IsIntegerString(gross) {
		return "", "", fmt.Errorf("gross amount %q is not a non-negative integer string", gross)
	}

	grossInt, ok := new(big.Int).SetString(gross, 10)
	if !ok {
		return "", "", fmt.Errorf("gross amount %q is not a valid base-10 integer", gross)
	}

	feeInt := new(big.Int).Mul(grossInt, big.NewInt(int64(feePercent)))
	feeInt.Quo(feeInt, oneHundred)
	merchantInt := new(big.Int).Sub(grossInt, feeInt)

	return feeInt.String(), merchantInt.String(), nil
}

// NewFeeRecord builds the fee record for a settled gross amount.
func NewFeeRecord(gross string, feePercent int) (*FeeRecord, error) {
	fee, merchant, err := Split(gross, feePercent)
	if err != nil {
		return nil, err
	}
	return &FeeRecord{
		GrossAmount:    gross,
		FeeAmount:      fee,
		MerchantAmount: merchant,
		Transferred:    false,
	}, nil
}

// PriceDisplay renders a minor-unit amount as a decimal string in whole
// token units, e.g. 1000000 with 6 decimals -> "1".
func PriceDisplay(minorUnits string, decimals int32) (string, error) {
	if !IsIntegerString(minorUnits) {
		return "", fmt.Errorf("amount %q is not a non-negative integer string", minorUnits)
	}
	amount, ok := new(big.Int).SetString(minorUnits, 10)
	if !ok {
		return "", fmt.Errorf("amount %q is not a valid base-10 integer", minorUnits)
	}
	return decimal.NewFromBigInt(amount, -decimals).String(), nil
}
