package transformer

import (
	"testing"
	"time"
)

/*
TestParseDate verifies the tolerant layouts all land on the same UTC
calendar date and that garbage yields ok=false instead of an error.
*/
func TestParseDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2019-03-07",
		" 2019-03-07 ",
		"2019-03-07 14:22:01",
		"2019-03-07T14:22:01",
		"2019-03-07T14:22:01Z",
		"03/07/2019",
		"3/7/2019",
		"20190307",
		"07-Mar-19",
		"07-Mar-2019",
	} {
		got, ok := ParseDate(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}

	for _, in := range []string{"", "   ", "not a date", "2021-02-30", "2019-13-01", "13/45/2019", "N/A"} {
		if got, ok := ParseDate(in); ok {
			t.Fatalf("ParseDate(%q) = %v, want failure", in, got)
		}
	}
}

func TestParseMoney(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1250", 1250, true},
		{"1250.50", 1250.5, true},
		{"$1,250.50", 1250.5, true},
		{" 0 ", 0, true},
		{"-5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseMoney(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseMoney(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseYear(t *testing.T) {
	t.Parallel()

	if y, ok := ParseYear("2019"); !ok || y != 2019 {
		t.Fatalf("ParseYear(2019) = %d, %v", y, ok)
	}
	if y, ok := ParseYear("2019.0"); !ok || y != 2019 {
		t.Fatalf("ParseYear(2019.0) = %d, %v", y, ok)
	}
	for _, in := range []string{"19", "1850", "2200", "20x9", ""} {
		if _, ok := ParseYear(in); ok {
			t.Fatalf("ParseYear(%q) ok", in)
		}
	}
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"1", "true", "Y", "x", "yes"} {
		if v, ok := ParseBool(in); !ok || !v {
			t.Fatalf("ParseBool(%q) = %v, %v", in, v, ok)
		}
	}
	for _, in := range []string{"0", "false", "N", "no"} {
		if v, ok := ParseBool(in); !ok || v {
			t.Fatalf("ParseBool(%q) = %v, %v", in, v, ok)
		}
	}
	if _, ok := ParseBool("maybe"); ok {
		t.Fatal("ParseBool(maybe) ok")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("héllo", 2); got != "hé" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Fatalf("truncate unbounded = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
}
