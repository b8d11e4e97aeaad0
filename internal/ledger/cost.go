package ledger

import "math"

// Billing constants.
const (
	// TokensPerCredit is the fixed conversion between ledger tokens and the
	// display "credit" unit. Credits are always derived, never stored.
	TokensPerCredit int64 = 100
	// BaselineRate is the default cost rate (ledger tokens per million raw
	// tokens) substituted for unset or malformed model rates.
	BaselineRate float64 = 1
)

// NormalizeRate returns rate when it is a finite number greater than zero,
// otherwise the baseline rate. Input and output rates are normalized
// independently of each other.
func NormalizeRate(rate float64) float64 {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return BaselineRate
	}
	return rate
}

// ComputeDeduction maps raw token counts and per-model cost rates to the
// number of ledger tokens to deduct. The result is always a positive whole
// multiple of TokensPerCredit: usage consumes whole credits, never fractions,
// and any nonzero usage consumes at least one credit. A non-finite or
// non-positive weighted cost falls back to exactly one credit so that
// malformed rates can never produce free usage.
func ComputeDeduction(inputTokens, outputTokens int64, inputRate, outputRate float64) int64 {
	inRate := NormalizeRate(inputRate)
	outRate := NormalizeRate(outputRate)

	weighted := float64(inputTokens)*inRate/BaselineRate + float64(outputTokens)*outRate/BaselineRate
	if math.IsNaN(weighted) || math.IsInf(weighted, 0) || weighted <= 0 {
		return TokensPerCredit
	}

	credits := int64(math.Ceil(weighted / float64(TokensPerCredit)))
	if credits < 1 {
		credits = 1
	}
	return credits * TokensPerCredit
}

// CreditsFromTokens converts a token amount to whole display credits.
func CreditsFromTokens(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	return tokens / TokensPerCredit
}
