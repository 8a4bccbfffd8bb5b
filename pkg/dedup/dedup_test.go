package dedup

import (
	"testing"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
)

var taipei = time.FixedZone("Asia/Taipei", 8*60*60)

func candidate(messageID string) *api.Candidate {
	amount := 1250.0
	return &api.Candidate{
		Bank:      "富邦",
		AuthTime:  time.Date(2024, 3, 5, 13, 22, 45, 0, taipei),
		Last4:     "5678",
		Amount:    &amount,
		Merchant:  "星巴克",
		Category:  "餐飲",
		MessageID: messageID,
	}
}

func TestKeyerStrict(t *testing.T) {
	k := NewKeyer(taipei)
	got := k.Strict(candidate("msg-1"))
	want := "富邦|msg-1|2024/03/05 13:22:45|5678|1250"
	if got != want {
		t.Errorf("strict key: got %q, want %q", got, want)
	}
}

func TestKeyerLoose(t *testing.T) {
	k := NewKeyer(taipei)
	got := k.Loose(candidate("msg-1"))
	want := "富邦|2024/03/05 13:22:45|5678|1250"
	if got != want {
		t.Errorf("loose key: got %q, want %q", got, want)
	}
}

func TestKeysDifferOnlyByMessageID(t *testing.T) {
	k := NewKeyer(taipei)
	a, b := candidate("msg-1"), candidate("msg-2")

	if k.Strict(a) == k.Strict(b) {
		t.Error("strict keys should differ for different message ids")
	}
	if k.Loose(a) != k.Loose(b) {
		t.Error("loose keys should match regardless of message id")
	}
}

func TestKeyerAbsentAmountAndLast4(t *testing.T) {
	k := NewKeyer(taipei)
	c := candidate("msg-1")
	c.Amount = nil
	c.Last4 = ""

	want := "富邦|msg-1|2024/03/05 13:22:45||"
	if got := k.Strict(c); got != want {
		t.Errorf("strict key with absent fields: got %q, want %q", got, want)
	}
}

func TestStoredKeysMatchCandidateKeys(t *testing.T) {
	k := NewKeyer(taipei)
	c := candidate("msg-1")

	// A row read back from the store in UTC must key identically.
	stored := c.AuthTime.UTC()
	if got := k.StrictStored(c.Bank, stored, c.Last4, c.AmountString(), c.MessageID); got != k.Strict(c) {
		t.Errorf("stored strict key mismatch: %q vs %q", got, k.Strict(c))
	}
	if got := k.LooseStored(c.Bank, stored, c.Last4, c.AmountString()); got != k.Loose(c) {
		t.Errorf("stored loose key mismatch: %q vs %q", got, k.Loose(c))
	}
}

func TestIndexAdmitStrictOnly(t *testing.T) {
	idx := NewIndex()

	if !idx.Admit("s1", "l1", false) {
		t.Fatal("first admit should succeed")
	}
	if idx.Admit("s1", "l1", false) {
		t.Error("same strict key must be rejected within a run")
	}
	// Different strict key, same loose key: accepted without loose check.
	if !idx.Admit("s2", "l1", false) {
		t.Error("strict-only source should ignore loose duplicates")
	}
}

func TestIndexAdmitLoose(t *testing.T) {
	idx := NewIndex()

	if !idx.Admit("s1", "l1", true) {
		t.Fatal("first admit should succeed")
	}
	if idx.Admit("s2", "l1", true) {
		t.Error("loose-checking source must reject a known loose key")
	}
}

func TestIndexLooseRecordedEvenWhenUnchecked(t *testing.T) {
	idx := NewIndex()

	// A strict-only acceptance still feeds the loose set, so a later
	// loose-checking source sees the transaction.
	if !idx.Admit("s1", "l1", false) {
		t.Fatal("first admit should succeed")
	}
	if idx.Admit("s2", "l1", true) {
		t.Error("loose key recorded by strict-only admit should block")
	}
}

func TestIndexSeedAndMessageIDs(t *testing.T) {
	idx := NewIndex()
	idx.Seed("s1", "l1", "msg-1")

	if !idx.HasMessageID("msg-1") {
		t.Error("seeded message id should be known")
	}
	if idx.HasMessageID("msg-2") {
		t.Error("unseen message id should be unknown")
	}
	if idx.Admit("s1", "l1", false) {
		t.Error("seeded strict key must be rejected")
	}
	if idx.Admit("s2", "l1", true) {
		t.Error("seeded loose key must be rejected for loose-checking source")
	}
}
