package helpers

import (
	"strings"
	"testing"
	"time"
)

func TestEscapeMarkdownV2(t *testing.T) {
	got := EscapeMarkdownV2("price is 3,020.50 (target)")
	want := "price is 3,020\\.50 \\(target\\)"
	if got != want {
		t.Fatalf("EscapeMarkdownV2 = %q, want %q", got, want)
	}
}

func TestFormatTarget(t *testing.T) {
	cases := map[float64]string{
		3020.5:   "3,020.50",
		70000:    "70,000.00",
		195.5:    "195.50",
		3020.004: "3,020.00",
	}
	for price, want := range cases {
		if got := FormatTarget(price); got != want {
			t.Fatalf("FormatTarget(%v) = %q, want %q", price, got, want)
		}
	}
}

func TestFormatPriceUSDecimals(t *testing.T) {
	if got := FormatPriceUS(70000, false); got != "70,000" {
		t.Fatalf("large prices drop decimals, got %q", got)
	}
	if got := FormatPriceUS(195.5, false); got != "195.50" {
		t.Fatalf("mid-range prices keep two decimals, got %q", got)
	}
}

func TestTimeAgo(t *testing.T) {
	layout := "2006-01-02 15:04:05"

	recent := time.Now().Add(-2 * time.Hour).Format(layout)
	if got := TimeAgo(recent, layout); !strings.Contains(got, "hour") {
		t.Fatalf("expected a relative time, got %q", got)
	}

	if got := TimeAgo("garbage", layout); got != "garbage" {
		t.Fatalf("unparseable input must pass through, got %q", got)
	}
}
