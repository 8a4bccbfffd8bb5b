// Package store defines the persisted ledger row shape and the backend
// interface shared by the sheet and database stores.
package store

import (
	"context"
	"strconv"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
)

// Row is one ledger row in persisted column order: recorded flag, bank, auth
// datetime, card last4, amount, merchant, category, link, message id. The
// flow classification column that follows is managed outside the core and is
// only defaulted by the store backends on append.
type Row struct {
	Recorded  bool
	Bank      string
	AuthTime  time.Time
	Last4     string
	Amount    *float64
	Merchant  string
	Category  string
	Link      string
	MessageID string
}

// FromCandidate derives the output row for an accepted candidate. New rows
// always start unrecorded.
func FromCandidate(c *api.Candidate) Row {
	return Row{
		Bank:      c.Bank,
		AuthTime:  c.AuthTime,
		Last4:     c.Last4,
		Amount:    c.Amount,
		Merchant:  c.Merchant,
		Category:  c.Category,
		Link:      c.Link,
		MessageID: c.MessageID,
	}
}

// AmountString renders the amount as persisted: shortest decimal form, empty
// when absent. Matches api.Candidate.AmountString so keys stay comparable.
func (r Row) AmountString() string {
	if r.Amount == nil {
		return ""
	}
	return strconv.FormatFloat(*r.Amount, 'f', -1, 64)
}

// Store is a persisted ledger backend. Seed returns the identity columns of
// every existing row for index seeding; Append adds accepted rows. The core
// never updates existing rows.
type Store interface {
	Seed(ctx context.Context) ([]Row, error)
	Append(ctx context.Context, rows []Row) error
}
