package helpers

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func EscapeMarkdownV2(text string) string {
	charactersToEscape := []string{".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// FormatPriceUS formats a price with US-style comma grouping, picking the
// decimal count from the price's magnitude.
func FormatPriceUS(price float64, escapeMarkdown bool) string {
	decimals := 6

	if price >= 1000 {
		decimals = 0
	} else if price > 1.2 {
		decimals = 2
	} else if price < 0.00001 {
		decimals = 8
	}

	p := message.NewPrinter(language.English)
	formatted := p.Sprintf("%.*f", decimals, price)

	if escapeMarkdown {
		return EscapeMarkdownV2(formatted)
	}
	return formatted
}

// FormatTarget formats an alert target with a fixed two decimals, the same
// precision the delete keyboard labels carry.
func FormatTarget(price float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f", price)
}

// TimeAgo renders a stored created_at timestamp relative to now, falling
// back to the raw string when it does not parse.
func TimeAgo(createdAt string, layout string) string {
	t, err := time.ParseInLocation(layout, createdAt, time.Local)
	if err != nil {
		return createdAt
	}
	return humanize.Time(t)
}
