// Package pipeline orchestrates one ingestion run: fetch each source's
// messages for the window, parse, filter, dedup, and collect the rows to
// append.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/dedup"
	"github.com/lchiayu/cardfeed/pkg/store"
)

// Fetcher retrieves the messages matching a mail search query, in the
// provider's result order.
type Fetcher interface {
	Fetch(ctx context.Context, query string, maxResults int64) ([]*api.Message, error)
}

// Window is an inclusive ingestion date range. Bounds are fixed-width
// zero-padded "yyyy/mm/dd" strings, so plain string comparison orders them
// chronologically.
type Window struct {
	Start string
	End   string
}

const ymdLayout = "2006/01/02"

// LastDays returns the window covering today and the previous days-1 civil
// days in loc, both bounds inclusive.
func LastDays(now time.Time, days int, loc *time.Location) Window {
	today := now.In(loc)
	start := today.AddDate(0, 0, -(days - 1))
	return Window{Start: start.Format(ymdLayout), End: today.Format(ymdLayout)}
}

// Contains reports whether a normalized date falls inside the window.
func (w Window) Contains(ymd string) bool {
	return ymd >= w.Start && ymd <= w.End
}

// queryRange renders the window as mail search terms. The before: bound is
// exclusive on the provider side, so it is pushed one day past the window end.
func (w Window) queryRange() (string, error) {
	end, err := time.Parse(ymdLayout, w.End)
	if err != nil {
		return "", fmt.Errorf("parsing window end %q: %w", w.End, err)
	}
	return fmt.Sprintf("after:%s before:%s", w.Start, end.AddDate(0, 0, 1).Format(ymdLayout)), nil
}

// Pipeline runs the extraction and dedup flow over configured sources. It is
// sequential and holds no state across runs; the caller owns the index and
// seeds it from the persisted store.
type Pipeline struct {
	fetcher Fetcher
	keyer   *dedup.Keyer
	logger  *slog.Logger
}

// New creates a pipeline.
func New(fetcher Fetcher, keyer *dedup.Keyer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{fetcher: fetcher, keyer: keyer, logger: logger}
}

// Run processes every source in order and returns the rows accepted against
// the index. The index is mutated additively; running again with the same
// snapshot and the resulting index yields nothing.
func (p *Pipeline) Run(ctx context.Context, sources []api.Source, w Window, idx *dedup.Index) ([]store.Row, error) {
	rangeTerms, err := w.queryRange()
	if err != nil {
		return nil, err
	}

	var accepted []store.Row
	for _, src := range sources {
		logger := p.logger.With("source", src.Name)

		msgs, err := p.fetcher.Fetch(ctx, src.Query+" "+rangeTerms, src.MaxResults)
		if err != nil {
			return accepted, fmt.Errorf("fetching %s messages: %w", src.Name, err)
		}
		logger.Info("found messages", "count", len(msgs))

		for _, msg := range msgs {
			if src.SkipSeenMessages && idx.HasMessageID(msg.ID) {
				logger.Debug("skipping already-recorded message", "message_id", msg.ID)
				continue
			}

			candidates := src.Parser.Parse(msg)
			logger.Debug("parsed message",
				"subject", msg.Subject,
				"message_id", msg.ID,
				"entries", len(candidates),
			)

			for _, c := range candidates {
				if !w.Contains(c.DateYMD) {
					continue
				}
				if !idx.Admit(p.keyer.Strict(c), p.keyer.Loose(c), src.LooseCheck) {
					continue
				}
				accepted = append(accepted, store.FromCandidate(c))
				logger.Info("created transaction",
					"bank", c.Bank,
					"card_last4", c.Last4,
					"auth_time", c.AuthTime.Format("2006/01/02 15:04:05"),
					"amount", c.AmountString(),
					"merchant", c.Merchant,
					"category", c.Category,
				)
			}
		}
	}
	return accepted, nil
}

// SeedIndex loads every persisted row's identity into a fresh index.
func SeedIndex(ctx context.Context, s store.Store, keyer *dedup.Keyer) (*dedup.Index, error) {
	rows, err := s.Seed(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding index: %w", err)
	}
	idx := dedup.NewIndex()
	for _, r := range rows {
		idx.Seed(
			keyer.StrictStored(r.Bank, r.AuthTime, r.Last4, r.AmountString(), r.MessageID),
			keyer.LooseStored(r.Bank, r.AuthTime, r.Last4, r.AmountString()),
			r.MessageID,
		)
	}
	return idx, nil
}
