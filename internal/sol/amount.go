package sol

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the base-unit scale of the native token.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

var (
	errNegativeAmount   = errors.New("amount must not be negative")
	errFractionalAmount = errors.New("amount has sub-lamport precision")
	errAmountTooLarge   = errors.New("amount exceeds representable range")
)

// ToLamports converts a SOL-denominated decimal into lamports exactly.
// Amounts that are negative, carry sub-lamport precision, or overflow uint64
// are rejected rather than rounded.
func ToLamports(sol decimal.Decimal) (uint64, error) {
	scaled := sol.Mul(lamportsPerSOL)
	if scaled.IsNegative() {
		return 0, errNegativeAmount
	}
	if !scaled.IsInteger() {
		return 0, errFractionalAmount
	}
	if scaled.Cmp(decimal.NewFromUint64(math.MaxUint64)) > 0 {
		return 0, errAmountTooLarge
	}
	return scaled.BigInt().Uint64(), nil
}

// ToSOL converts lamports into a SOL-denominated decimal.
func ToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(lamportsPerSOL)
}
