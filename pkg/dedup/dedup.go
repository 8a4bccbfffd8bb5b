// Package dedup derives transaction identity keys and maintains the per-run
// index of already-known transactions.
//
// Two key shapes exist. The strict key includes the source message id and
// identifies a physical record; the loose key omits it and identifies the
// real-world transaction regardless of which message reported it. Merchant
// and category are excluded from both on purpose: those columns stay editable
// after insertion without creating or breaking a match.
package dedup

import (
	"strings"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
)

// keyTimeLayout formats the instant component of a key at second precision.
const keyTimeLayout = "2006/01/02 15:04:05"

// Keyer builds dedup keys with instants rendered in a fixed timezone, so keys
// computed from fresh candidates and from stored rows are comparable.
type Keyer struct {
	loc *time.Location
}

// NewKeyer creates a Keyer rendering instants in loc.
func NewKeyer(loc *time.Location) *Keyer {
	return &Keyer{loc: loc}
}

// Strict returns the strict key for a candidate.
func (k *Keyer) Strict(c *api.Candidate) string {
	return k.strict(c.Bank, c.MessageID, c.AuthTime, c.Last4, c.AmountString())
}

// Loose returns the loose key for a candidate.
func (k *Keyer) Loose(c *api.Candidate) string {
	return k.loose(c.Bank, c.AuthTime, c.Last4, c.AmountString())
}

// StrictStored returns the strict key for an already-persisted row's identity
// columns.
func (k *Keyer) StrictStored(bank string, authTime time.Time, last4, amount, messageID string) string {
	return k.strict(bank, messageID, authTime, last4, amount)
}

// LooseStored returns the loose key for an already-persisted row's identity
// columns.
func (k *Keyer) LooseStored(bank string, authTime time.Time, last4, amount string) string {
	return k.loose(bank, authTime, last4, amount)
}

func (k *Keyer) strict(bank, messageID string, t time.Time, last4, amount string) string {
	return strings.Join([]string{bank, messageID, t.In(k.loc).Format(keyTimeLayout), last4, amount}, "|")
}

func (k *Keyer) loose(bank string, t time.Time, last4, amount string) string {
	return strings.Join([]string{bank, t.In(k.loc).Format(keyTimeLayout), last4, amount}, "|")
}

// Index is the running set of known strict keys, loose keys, and message ids
// for one pipeline run. It is seeded once from the persisted store and only
// ever grows; acceptance and recording happen together inside Admit so
// within-run duplicates are caught too.
type Index struct {
	strict     map[string]struct{}
	loose      map[string]struct{}
	messageIDs map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		strict:     make(map[string]struct{}),
		loose:      make(map[string]struct{}),
		messageIDs: make(map[string]struct{}),
	}
}

// Seed records one persisted row's keys and message id.
func (ix *Index) Seed(strictKey, looseKey, messageID string) {
	ix.strict[strictKey] = struct{}{}
	ix.loose[looseKey] = struct{}{}
	if messageID != "" {
		ix.messageIDs[messageID] = struct{}{}
	}
}

// HasMessageID reports whether a message id is already known, supporting the
// eager per-source short-circuit that skips parsing entirely.
func (ix *Index) HasMessageID(id string) bool {
	_, ok := ix.messageIDs[id]
	return ok
}

// Admit decides whether a candidate with the given keys is new. When it is,
// both keys are recorded before returning, keeping the check-and-record pair
// atomic with respect to later candidates in the same run. With
// checkLoose false only the strict key gates acceptance, but the loose key is
// still recorded so loose-checking sources see it.
func (ix *Index) Admit(strictKey, looseKey string, checkLoose bool) bool {
	if _, dup := ix.strict[strictKey]; dup {
		return false
	}
	if checkLoose {
		if _, dup := ix.loose[looseKey]; dup {
			return false
		}
	}
	ix.strict[strictKey] = struct{}{}
	ix.loose[looseKey] = struct{}{}
	return true
}
