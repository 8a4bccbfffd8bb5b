// Package extract implements ordered-fallback field extraction over the
// different textual views of a notification message.
package extract

import (
	"regexp"
	"strings"
)

// Chain is an ordered list of patterns tried until the first success. Earlier
// patterns take priority, which keeps field-label fallbacks auditable as data
// rather than control flow.
type Chain []*regexp.Regexp

// MustChain compiles the given expressions into a Chain, panicking on an
// invalid pattern. Intended for package-level defaults.
func MustChain(exprs ...string) Chain {
	c := make(Chain, 0, len(exprs))
	for _, e := range exprs {
		c = append(c, regexp.MustCompile(e))
	}
	return c
}

// Views holds the three textual representations of a message that extraction
// runs against, in fixed priority order: the markup-stripped body, the raw
// markup body, and the whitespace-normalized plain body. Build once per
// message and reuse across fields.
type Views struct {
	views [3]string
}

// NewViews prepares the extraction views for a message body pair.
func NewViews(html, plain string) *Views {
	return &Views{views: [3]string{
		HTMLToText(html),
		html,
		strings.ReplaceAll(plain, "　", " "),
	}}
}

// Pick returns the first non-empty capture across the chain and views,
// trimmed. A pattern defining two capture groups yields the second group when
// it matched, else the first. Returns "" when nothing matches.
func (v *Views) Pick(chain Chain) string {
	for _, re := range chain {
		for _, text := range v.views {
			if text == "" {
				continue
			}
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if len(m) > 2 && m[2] != "" {
				return strings.TrimSpace(m[2])
			}
			if len(m) > 1 && m[1] != "" {
				return strings.TrimSpace(m[1])
			}
		}
	}
	return ""
}

// PickSpan returns the entire matched span of the first pattern that matches
// any view. Used when the caller hands the raw match to a further specialized
// parser, e.g. a date substring that still needs calendar disambiguation.
func (v *Views) PickSpan(chain Chain) string {
	for _, re := range chain {
		for _, text := range v.views {
			if text == "" {
				continue
			}
			if m := re.FindString(text); m != "" {
				return m
			}
		}
	}
	return ""
}

var (
	brRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	closePRe = regexp.MustCompile(`(?i)</p>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	nbspRe   = regexp.MustCompile(`(?i)&nbsp;`)
	ampRe    = regexp.MustCompile(`(?i)&amp;`)
)

// HTMLToText reduces markup to text good enough for regex matching: br and
// closing p become newlines, style/script blocks and remaining tags are
// stripped, common entities and full-width spaces are normalized.
func HTMLToText(html string) string {
	s := brRe.ReplaceAllString(html, "\n")
	s = closePRe.ReplaceAllString(s, "\n")
	s = styleRe.ReplaceAllString(s, "")
	s = scriptRe.ReplaceAllString(s, "")
	s = nbspRe.ReplaceAllString(s, " ")
	s = ampRe.ReplaceAllString(s, "&")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "　", " ")
	return strings.TrimSpace(s)
}
