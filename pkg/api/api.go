// Package api defines the core data structures and interfaces for cardfeed.
package api

import (
	"strconv"
	"time"
)

// Message is a single retrieved notification email. It is immutable and owned
// by the message source; parsers only read it.
type Message struct {
	// ID is the stable, unique message id assigned by the mail provider.
	ID string
	// Subject is the decoded subject line.
	Subject string
	// Sent is the provider's internal receive timestamp.
	Sent time.Time
	// HTML is the full markup body, empty if the message has none.
	HTML string
	// Plain is the plain-text body, empty if the message has none.
	Plain string
}

// Candidate is one extracted transaction. A parser constructs a candidate only
// when the notification carries a parseable date, so AuthTime is always set
// with an explicit zone. All other fields may be empty.
type Candidate struct {
	// Bank is the issuing bank label as it appears in the ledger.
	Bank string
	// AuthTime is the authorization instant in the configured timezone.
	AuthTime time.Time
	// DateYMD is the normalized "yyyy/mm/dd" authorization date, used for
	// window filtering by plain string comparison.
	DateYMD string
	// Last4 is the card's last four digits (or the destination account's
	// last 4-5 digits for transfers). Empty when not present.
	Last4 string
	// Amount is the transaction amount, nil when the notification carried
	// none. Never zero-as-absent: an unparsed amount stays nil.
	Amount *float64
	// Merchant and Category are free-text fields, editable after insertion
	// and deliberately excluded from dedup identity.
	Merchant string
	Category string
	// MessageID is the id of the message this candidate came from.
	MessageID string
	// Link is a permalink to the source message.
	Link string
}

// AmountString renders the amount the way it participates in dedup keys:
// shortest decimal form, or empty when absent.
func (c *Candidate) AmountString() string {
	if c.Amount == nil {
		return ""
	}
	return strconv.FormatFloat(*c.Amount, 'f', -1, 64)
}

// Parser extracts zero or more candidates from one message. Parsers never
// return errors: an unusable message simply yields no candidates.
type Parser interface {
	Parse(msg *Message) []*Candidate
}

// Source describes one configured notification channel: how to find its
// messages, how to parse them, and which dedup policies apply.
type Source struct {
	// Name identifies the source in logs.
	Name string
	// Query is the base mail search expression; the pipeline appends the
	// ingestion window bounds.
	Query string
	// Parser extracts candidates from this source's messages.
	Parser Parser
	// SkipSeenMessages short-circuits parsing when the message id is
	// already present in the seeded index.
	SkipSeenMessages bool
	// LooseCheck additionally rejects candidates whose loose key (identity
	// minus message id) is already known, guarding against the same
	// transaction arriving via differently-threaded messages.
	LooseCheck bool
	// MaxResults caps how many messages are fetched per run.
	MaxResults int64
}
