package ledger

import "errors"

// Ledger error taxonomy. Callers distinguish outcomes with errors.Is; HTTP
// layers map validation to 400, payment/insufficient to 402, not found to
// 404 and rate limiting to 429.
var (
	// ErrValidation marks rejected input. No database mutation occurred.
	ErrValidation = errors.New("validation failed")
	// ErrPaymentRequired marks a user with no spendable balance and no free allowance.
	ErrPaymentRequired = errors.New("payment required: credits")
	// ErrInsufficientCredits marks a usage event the remaining balance cannot
	// cover in full. The subscription row is drained and marked exhausted as
	// a committed side effect even though the operation fails.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNotFound marks a missing plan or subscription reference.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited marks the coarse per-role daily message cap, independent
	// of credit state.
	ErrRateLimited = errors.New("rate limit: chat")
)
