package types

import "strings"

// Symbol is one of the tradable pairs the bot tracks.
type Symbol string

const (
	SymbolBTCUSD Symbol = "BTCUSD"
	SymbolXAUUSD Symbol = "XAUUSD"
	SymbolGBPJPY Symbol = "GBPJPY"
)

// AllSymbols lists every tracked symbol in display order.
func AllSymbols() []Symbol {
	return []Symbol{SymbolBTCUSD, SymbolXAUUSD, SymbolGBPJPY}
}

// ParseSymbol finds a known symbol inside free-form text.
func ParseSymbol(text string) (Symbol, bool) {
	upper := strings.ToUpper(text)
	for _, s := range AllSymbols() {
		if strings.Contains(upper, string(s)) {
			return s, true
		}
	}
	return "", false
}

// CurrencySign returns the sign used when formatting prices for the symbol.
func (s Symbol) CurrencySign() string {
	if s == SymbolGBPJPY {
		return "¥"
	}
	return "$"
}

// Alert is one pending "notify me when price crosses X" request.
// LastPrice stays nil until the first evaluation cycle samples the
// alert's symbol after creation.
type Alert struct {
	ID          string   `json:"id"`
	TargetPrice float64  `json:"target_price"`
	CreatedAt   string   `json:"created_at"`
	LastPrice   *float64 `json:"last_price"`
}

// TimeLayout is the created_at format stored in the alerts document.
const TimeLayout = "2006-01-02 15:04:05"
