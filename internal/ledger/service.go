package ledger

import "gorm.io/gorm"

// Service is the transactional credit ledger core. It is the only writer of
// token usage entries and the only mutator of subscription balances.
type Service struct {
	db      *gorm.DB
	counter MessageCounter
}

// NewService constructs a ledger Service. The message counter backs the
// admission policy's daily limits; a nil counter disables counting (all
// counts read as zero).
func NewService(conn *gorm.DB, counter MessageCounter) *Service {
	return &Service{db: conn, counter: counter}
}
