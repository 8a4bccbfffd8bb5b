package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/extract"
	"github.com/lchiayu/cardfeed/pkg/normalize"
)

// Fubon field chains. The bank rewords its notifications now and then, so
// each field carries every label variant seen so far, in preference order.
var (
	fubonDate = extract.MustChain(
		`授權日期：\s*([0-9]{3})\s*年\s*([0-9]{1,2})\s*月\s*([0-9]{1,2})\s*日`,
		`消費日期：\s*([0-9]{3})\s*年\s*([0-9]{1,2})\s*月\s*([0-9]{1,2})\s*日`,
		`授權日期：\s*([0-9]{4})[/\-]([0-9]{1,2})[/\-]([0-9]{1,2})`,
		`消費日期：\s*([0-9]{4})[/\-]([0-9]{1,2})[/\-]([0-9]{1,2})`,
	)
	fubonTime = extract.MustChain(
		`授權時間：\s*([0-9]{1,2}:[0-9]{1,2}:[0-9]{1,2})`,
		`授權時間：\s*([0-9]{1,2}:[0-9]{1,2})`,
		`消費時間：\s*([0-9]{1,2}:[0-9]{1,2}:[0-9]{1,2})`,
		`消費時間：\s*([0-9]{1,2}:[0-9]{1,2})`,
	)
	fubonLast4 = extract.MustChain(
		`消費卡號末四碼：\s*([0-9]{4})`,
		`卡號末四碼：\s*([0-9]{4})`,
	)
	fubonAmount = extract.MustChain(
		`授權金額：\s*NT\$?\s*([\d,]+)`,
		`金額：\s*NT\$?\s*([\d,]+)`,
	)
	// Merchant/category labels vary and the value may have HTML tags
	// interleaved between label and text.
	fubonMerchant = extract.MustChain(
		"(?i)(交易內容|交易說明|商店名稱|特店名稱|特店|消費內容)[:：]?\\s*(?:</[^>]+>\\s*<[^>]+>)*\\s*([^<\n\r]+)",
	)
	fubonCategory = extract.MustChain(
		"(?i)(消費類別|交易類型|類別)[:：]?\\s*(?:</[^>]+>\\s*<[^>]+>)*\\s*([^<\n\r]+)",
	)
)

// Fubon parses the bank's per-transaction consumption notification. One
// message yields at most one candidate; a message without a parseable
// authorization date yields none.
type Fubon struct {
	loc *time.Location
}

// NewFubon creates a Fubon parser emitting instants in the given location.
func NewFubon(loc *time.Location) *Fubon {
	return &Fubon{loc: loc}
}

// Parse implements api.Parser.
func (p *Fubon) Parse(msg *api.Message) []*api.Candidate {
	v := extract.NewViews(msg.HTML, msg.Plain)

	// The whole matched span is handed to the date normalizer so it can
	// disambiguate era-year vs Gregorian forms itself.
	ymd := normalize.Date(v.PickSpan(fubonDate))
	if ymd == "" {
		return nil
	}
	hms := normalize.Time(v.Pick(fubonTime))

	authTime, err := normalize.Instant(ymd, hms, p.loc)
	if err != nil {
		return nil
	}

	c := &api.Candidate{
		Bank:      BankFubon,
		AuthTime:  authTime,
		DateYMD:   ymd,
		Last4:     v.Pick(fubonLast4),
		Merchant:  strings.TrimSpace(v.Pick(fubonMerchant)),
		Category:  strings.TrimSpace(v.Pick(fubonCategory)),
		MessageID: msg.ID,
		Link:      permalink(msg.ID),
	}
	if raw := v.Pick(fubonAmount); raw != "" {
		if amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64); err == nil {
			c.Amount = &amount
		}
	}
	return []*api.Candidate{c}
}
