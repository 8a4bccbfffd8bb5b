package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/dedup"
	"github.com/lchiayu/cardfeed/pkg/normalize"
	"github.com/lchiayu/cardfeed/pkg/store"
)

var taipei = normalize.Location("Asia/Taipei")

// fakeFetcher returns the same canned messages for every query.
type fakeFetcher struct {
	msgs []*api.Message
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ int64) ([]*api.Message, error) {
	return f.msgs, nil
}

// fakeParser emits pre-built candidates stamped with the message id.
type fakeParser struct {
	perMessage map[string][]*api.Candidate
}

func (p *fakeParser) Parse(msg *api.Message) []*api.Candidate {
	return p.perMessage[msg.ID]
}

func makeCandidate(msgID, ymd string, amount float64) *api.Candidate {
	authTime, err := normalize.Instant(ymd, "13:22:00", taipei)
	if err != nil {
		panic(err)
	}
	return &api.Candidate{
		Bank:      "國泰",
		AuthTime:  authTime,
		DateYMD:   ymd,
		Last4:     "1234",
		Amount:    &amount,
		MessageID: msgID,
	}
}

func TestLastDays(t *testing.T) {
	now := time.Date(2024, 3, 15, 23, 30, 0, 0, taipei)
	w := LastDays(now, 15, taipei)
	if w.Start != "2024/03/01" || w.End != "2024/03/15" {
		t.Errorf("window: got %s..%s, want 2024/03/01..2024/03/15", w.Start, w.End)
	}
}

func TestWindowInclusiveBounds(t *testing.T) {
	w := Window{Start: "2024/03/01", End: "2024/03/15"}

	tests := []struct {
		ymd  string
		want bool
	}{
		{"2024/03/01", true},
		{"2024/03/15", true},
		{"2024/02/29", false},
		{"2024/03/16", false},
		{"2024/03/08", true},
	}
	for _, tc := range tests {
		if got := w.Contains(tc.ymd); got != tc.want {
			t.Errorf("Contains(%q): got %v, want %v", tc.ymd, got, tc.want)
		}
	}
}

func TestRunWindowFilter(t *testing.T) {
	fetcher := &fakeFetcher{msgs: []*api.Message{{ID: "m1"}}}
	parser := &fakeParser{perMessage: map[string][]*api.Candidate{
		"m1": {
			makeCandidate("m1", "2024/03/01", 100), // at start bound
			makeCandidate("m1", "2024/03/15", 200), // at end bound
			makeCandidate("m1", "2024/02/29", 300), // one day early
			makeCandidate("m1", "2024/03/16", 400), // one day late
		},
	}}

	p := New(fetcher, dedup.NewKeyer(taipei), nil)
	sources := []api.Source{{Name: "test", Parser: parser}}
	w := Window{Start: "2024/03/01", End: "2024/03/15"}

	rows, err := p.Run(context.Background(), sources, w, dedup.NewIndex())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows inside the window, got %d", len(rows))
	}
	if *rows[0].Amount != 100 || *rows[1].Amount != 200 {
		t.Errorf("unexpected rows: %v, %v", *rows[0].Amount, *rows[1].Amount)
	}
}

func TestRunIdempotence(t *testing.T) {
	fetcher := &fakeFetcher{msgs: []*api.Message{{ID: "m1"}, {ID: "m2"}}}
	parser := &fakeParser{perMessage: map[string][]*api.Candidate{
		"m1": {makeCandidate("m1", "2024/03/05", 100), makeCandidate("m1", "2024/03/05", 200)},
		"m2": {makeCandidate("m2", "2024/03/06", 300)},
	}}

	keyer := dedup.NewKeyer(taipei)
	p := New(fetcher, keyer, nil)
	sources := []api.Source{{Name: "test", Parser: parser}}
	w := Window{Start: "2024/03/01", End: "2024/03/15"}

	idx := dedup.NewIndex()
	first, err := p.Run(context.Background(), sources, w, idx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first run: expected 3 rows, got %d", len(first))
	}

	// Same snapshot, index seeded from the first run's full output.
	idx2, err := SeedIndex(context.Background(), &fakeStore{rows: first}, keyer)
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}
	second, err := p.Run(context.Background(), sources, w, idx2)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run must yield no rows, got %d", len(second))
	}

	// Rerunning against the mutated first-run index is also a no-op.
	again, err := p.Run(context.Background(), sources, w, idx)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("rerun against live index must yield no rows, got %d", len(again))
	}
}

func TestRunLoosePolicyPerSource(t *testing.T) {
	// Two messages reporting the same transaction via different ids.
	fetcher := &fakeFetcher{msgs: []*api.Message{{ID: "m1"}, {ID: "m2"}}}
	parser := &fakeParser{perMessage: map[string][]*api.Candidate{
		"m1": {makeCandidate("m1", "2024/03/05", 100)},
		"m2": {makeCandidate("m2", "2024/03/05", 100)},
	}}
	w := Window{Start: "2024/03/01", End: "2024/03/15"}

	strictOnly := []api.Source{{Name: "strict", Parser: parser}}
	p := New(fetcher, dedup.NewKeyer(taipei), nil)
	rows, err := p.Run(context.Background(), strictOnly, w, dedup.NewIndex())
	if err != nil {
		t.Fatalf("strict run: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("strict-only source keeps both reports, got %d", len(rows))
	}

	loose := []api.Source{{Name: "loose", Parser: parser, LooseCheck: true}}
	rows, err = p.Run(context.Background(), loose, w, dedup.NewIndex())
	if err != nil {
		t.Fatalf("loose run: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("loose-checking source keeps one report, got %d", len(rows))
	}
}

func TestRunSkipSeenMessages(t *testing.T) {
	fetcher := &fakeFetcher{msgs: []*api.Message{{ID: "m1"}}}
	parser := &countingParser{}
	w := Window{Start: "2024/03/01", End: "2024/03/15"}

	idx := dedup.NewIndex()
	idx.Seed("some-strict", "some-loose", "m1")

	p := New(fetcher, dedup.NewKeyer(taipei), nil)
	sources := []api.Source{{Name: "transfer", Parser: parser, SkipSeenMessages: true}}
	if _, err := p.Run(context.Background(), sources, w, idx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if parser.calls != 0 {
		t.Errorf("parser should not run for a seen message id, called %d times", parser.calls)
	}
}

// fakeStore serves canned rows for index seeding.
type fakeStore struct {
	rows []store.Row
}

func (s *fakeStore) Seed(context.Context) ([]store.Row, error) { return s.rows, nil }

func (s *fakeStore) Append(_ context.Context, rows []store.Row) error {
	s.rows = append(s.rows, rows...)
	return nil
}

type countingParser struct {
	calls int
}

func (p *countingParser) Parse(*api.Message) []*api.Candidate {
	p.calls++
	return nil
}
