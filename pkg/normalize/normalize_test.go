package normalize

import (
	"testing"
	"time"
)

func TestDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"roc era year", "授權日期： 101 年 3 月 5 日", "2012/03/05"},
		{"roc era year compact", "消費日期：113年10月7日", "2024/10/07"},
		{"gregorian slashes unpadded", "2024/3/5", "2024/03/05"},
		{"gregorian dashes padded", "2024-03-05", "2024/03/05"},
		{"gregorian with label", "授權日期：2024/3/5", "2024/03/05"},
		{"no date", "您好，感謝您的使用", ""},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Date(tc.in); got != tc.want {
				t.Errorf("Date(%q): got %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no seconds", "9:05", "9:05:00"},
		{"with seconds", "09:05:22", "09:05:22"},
		{"embedded", "授權時間：13:22", "13:22:00"},
		{"no match", "中午", ""},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Time(tc.in); got != tc.want {
				t.Errorf("Time(%q): got %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	loc := Location("Asia/Taipei")
	_, offset := time.Now().In(loc).Zone()
	if offset != 8*60*60 {
		t.Errorf("Asia/Taipei offset: got %d, want %d", offset, 8*60*60)
	}

	if got := Location("Europe/Berlin"); got != time.UTC {
		t.Errorf("unrecognized zone: got %v, want UTC", got)
	}
}

func TestInstant(t *testing.T) {
	loc := Location("Asia/Taipei")

	got, err := Instant("2024/03/05", "13:22:00", loc)
	if err != nil {
		t.Fatalf("Instant: %v", err)
	}
	want := time.Date(2024, 3, 5, 13, 22, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Unpadded hour as preserved by Time.
	got, err = Instant("2024/03/05", "9:05:00", loc)
	if err != nil {
		t.Fatalf("Instant unpadded: %v", err)
	}
	want = time.Date(2024, 3, 5, 9, 5, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("unpadded hour: got %v, want %v", got, want)
	}

	// Missing time defaults to midnight.
	got, err = Instant("2024/03/05", "", loc)
	if err != nil {
		t.Fatalf("Instant midnight: %v", err)
	}
	want = time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("midnight default: got %v, want %v", got, want)
	}

	if _, err := Instant("", "13:22:00", loc); err == nil {
		t.Error("expected error for empty date")
	}
}
