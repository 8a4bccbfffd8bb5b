// Package parser implements the per-bank notification parsers. Each parser
// satisfies api.Parser and turns one message into zero or more transaction
// candidates; a candidate is only ever built around a parseable date.
package parser

// Ledger labels for the supported banks.
const (
	BankFubon  = "富邦"
	BankCathay = "國泰"
)

// permalink returns the web link to a mail message.
func permalink(messageID string) string {
	return "https://mail.google.com/mail/#all/" + messageID
}
