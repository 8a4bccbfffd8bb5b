package extract

import "testing"

func TestPickPriority(t *testing.T) {
	// Pattern order wins over view order: the first pattern is tried
	// against every view before the second pattern is considered.
	chain := MustChain(
		`first:(\w+)`,
		`second:(\w+)`,
	)
	v := NewViews("", "second:plainhit\nfirst:alsohere")
	if got := v.Pick(chain); got != "alsohere" {
		t.Errorf("pattern priority: got %q, want %q", got, "alsohere")
	}
}

func TestPickViewOrder(t *testing.T) {
	chain := MustChain(`value:(\w+)`)
	// The markup-stripped view has priority over the plain view.
	v := NewViews("<p>value:fromhtml</p>", "value:fromplain")
	if got := v.Pick(chain); got != "fromhtml" {
		t.Errorf("view priority: got %q, want %q", got, "fromhtml")
	}
}

func TestPickSecondGroupPreferred(t *testing.T) {
	chain := MustChain(`(label)[:：]\s*(\w+)`)
	v := NewViews("", "label: coffee")
	if got := v.Pick(chain); got != "coffee" {
		t.Errorf("second group: got %q, want %q", got, "coffee")
	}
}

func TestPickRawMarkupFallback(t *testing.T) {
	// A pattern that only matches with tags present must still hit via
	// the raw markup view.
	chain := MustChain(`amount</td><td>(\d+)`)
	v := NewViews(`<table><tr><td>amount</td><td>120</td></tr></table>`, "")
	if got := v.Pick(chain); got != "120" {
		t.Errorf("raw markup fallback: got %q, want %q", got, "120")
	}
}

func TestPickNoMatch(t *testing.T) {
	chain := MustChain(`missing:(\w+)`)
	v := NewViews("<p>nothing here</p>", "nothing here either")
	if got := v.Pick(chain); got != "" {
		t.Errorf("no match: got %q, want empty", got)
	}
}

func TestPickSpan(t *testing.T) {
	chain := MustChain(`日期：\s*\d{3}\s*年\s*\d{1,2}\s*月\s*\d{1,2}\s*日`)
	v := NewViews("", "授權日期： 101 年 3 月 5 日 下午")
	want := "日期： 101 年 3 月 5 日"
	if got := v.PickSpan(chain); got != want {
		t.Errorf("span: got %q, want %q", got, want)
	}

	if got := v.PickSpan(MustChain(`absent`)); got != "" {
		t.Errorf("span no match: got %q, want empty", got)
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "br and p to newlines",
			in:   "<p>line one</p><div>line two<br/>line three</div>",
			want: "line one\nline two\nline three",
		},
		{
			name: "strips style and script",
			in:   "<style>body{color:red}</style><script>alert(1)</script>text",
			want: "text",
		},
		{
			name: "entities and fullwidth space",
			in:   "a&nbsp;b&amp;c　d",
			want: "a b&c d",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTMLToText(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
