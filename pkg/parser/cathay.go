package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/normalize"
)

var (
	cathayTopLast4Re = regexp.MustCompile(`卡號後4碼[:：]?\s*(\d{4})`)
	cathayCardRe     = regexp.MustCompile(`(正卡|附卡)\s*(\d{4})?\s*(\d{4}/\d{2}/\d{2})\s*(\d{2}:\d{2})\s*([A-Z]{2})`)
	cathayAmountRe   = regexp.MustCompile(`^NT\$([0-9,]+)\s+(.+)$`)
)

// cardContext carries the card/date/time attributes announced by the most
// recent card-info line. Each card-info line replaces the whole value
// (last-seen-wins, no merging), and emission copies the value, so later lines
// cannot retroactively change an already-emitted candidate.
type cardContext struct {
	cardType string
	last4    string
	date     string
	time     string
	region   string
}

// CathayConsumption parses the bank's digest notification, which lists many
// transactions in one plain-text message. It runs a line-based state machine:
// card-info lines update the context, amount lines emit one candidate each
// using the current context, everything else is ignored.
type CathayConsumption struct {
	loc *time.Location
}

// NewCathayConsumption creates a consumption digest parser emitting instants
// in the given location.
func NewCathayConsumption(loc *time.Location) *CathayConsumption {
	return &CathayConsumption{loc: loc}
}

// Parse implements api.Parser.
func (p *CathayConsumption) Parse(msg *api.Message) []*api.Candidate {
	body := strings.ReplaceAll(msg.Plain, "　", " ")

	// Some digests state the card number once near the top instead of on
	// every card-info line.
	var topLast4 string
	if m := cathayTopLast4Re.FindStringSubmatch(body); m != nil {
		topLast4 = m[1]
	}

	var (
		out []*api.Candidate
		ctx cardContext
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if next, ok := parseCardLine(line); ok {
			ctx = next
			continue
		}

		amount, merchant, category, ok := parseAmountLine(line)
		if !ok {
			continue
		}
		last4 := ctx.last4
		if last4 == "" {
			last4 = topLast4
		}
		authTime, err := normalize.Instant(ctx.date, normalize.Time(ctx.time), p.loc)
		if err != nil {
			continue
		}
		out = append(out, &api.Candidate{
			Bank:      BankCathay,
			AuthTime:  authTime,
			DateYMD:   ctx.date,
			Last4:     last4,
			Amount:    &amount,
			Merchant:  merchant,
			Category:  category,
			MessageID: msg.ID,
			Link:      permalink(msg.ID),
		})
	}
	return out
}

func parseCardLine(line string) (cardContext, bool) {
	m := cathayCardRe.FindStringSubmatch(line)
	if m == nil {
		return cardContext{}, false
	}
	return cardContext{
		cardType: m[1],
		last4:    m[2],
		date:     m[3],
		time:     m[4],
		region:   m[5],
	}, true
}

// parseAmountLine splits an "NT$1,250 merchant category" line. With more than
// one trailing token the last is the category; a single token is the merchant
// and category stays empty.
func parseAmountLine(line string) (amount float64, merchant, category string, ok bool) {
	m := cathayAmountRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", "", false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, "", "", false
	}
	rest := strings.TrimSpace(m[2])
	parts := strings.Fields(rest)
	if len(parts) > 1 {
		return amount, strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1], true
	}
	return amount, rest, "", true
}
