package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/normalize"
)

// transferLiteral is recorded as merchant (when the remark is blank) and
// always as category for transfer notifications.
const transferLiteral = "轉帳"

var (
	transferDateTimeRe = regexp.MustCompile(`您於(\d{4}/\d{2}/\d{2})\s+(\d{2}:\d{2}:\d{2})`)
	transferAmountRe   = regexp.MustCompile(`轉帳金額\s+([\d,]+)`)
	transferAccountRe  = regexp.MustCompile(`轉入帳號\s+.*(\d{4,5})`)
	transferRemarkRe   = regexp.MustCompile(`備註\s+(.*)`)
)

// CathayTransfer parses the bank's app transfer notification. The combined
// date+time span is mandatory: without it the message yields no candidate.
type CathayTransfer struct {
	loc *time.Location
}

// NewCathayTransfer creates a transfer notification parser emitting instants
// in the given location.
func NewCathayTransfer(loc *time.Location) *CathayTransfer {
	return &CathayTransfer{loc: loc}
}

// Parse implements api.Parser.
func (p *CathayTransfer) Parse(msg *api.Message) []*api.Candidate {
	plain := msg.Plain

	m := transferDateTimeRe.FindStringSubmatch(plain)
	if m == nil {
		return nil
	}
	ymd, hms := m[1], m[2]
	authTime, err := normalize.Instant(ymd, hms, p.loc)
	if err != nil {
		return nil
	}

	c := &api.Candidate{
		Bank:      BankCathay,
		AuthTime:  authTime,
		DateYMD:   ymd,
		Merchant:  transferLiteral,
		Category:  transferLiteral,
		MessageID: msg.ID,
		Link:      permalink(msg.ID),
	}
	if am := transferAmountRe.FindStringSubmatch(plain); am != nil {
		if amount, err := strconv.ParseFloat(strings.ReplaceAll(am[1], ",", ""), 64); err == nil {
			c.Amount = &amount
		}
	}
	if am := transferAccountRe.FindStringSubmatch(plain); am != nil {
		c.Last4 = am[1]
	}
	if rm := transferRemarkRe.FindStringSubmatch(plain); rm != nil {
		if remark := strings.TrimSpace(rm[1]); remark != "" {
			c.Merchant = remark
		}
	}
	return []*api.Candidate{c}
}
