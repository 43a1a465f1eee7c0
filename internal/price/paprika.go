package price

import (
	"net/http"
	"time"

	"fx-signal-bot/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
)

// coinIDs maps tracked symbols to CoinPaprika coin ids. Only BTCUSD has a
// live market-data source; the other symbols are simulated.
var coinIDs = map[types.Symbol]string{
	types.SymbolBTCUSD: "btc-bitcoin",
}

// PaprikaSource fetches live prices from the CoinPaprika tickers API.
type PaprikaSource struct {
	client *coinpaprika.Client
}

// NewPaprikaSource builds the live source. The request timeout keeps a
// hung network call from stalling an evaluation cycle.
func NewPaprikaSource(apiProKey string) *PaprikaSource {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	if apiProKey != "" {
		return &PaprikaSource{client: coinpaprika.NewClient(httpClient, coinpaprika.WithAPIKey(apiProKey))}
	}
	return &PaprikaSource{client: coinpaprika.NewClient(httpClient)}
}

func (p *PaprikaSource) Fetch(symbol types.Symbol) (float64, error) {
	coinID, ok := coinIDs[symbol]
	if !ok {
		return 0, errors.Errorf("no live source for %s", symbol)
	}

	ticker, err := p.client.Tickers.GetByID(coinID, &coinpaprika.TickersOptions{Quotes: "USD"})
	if err != nil {
		return 0, errors.Wrapf(err, "could not fetch ticker %s", coinID)
	}
	quote, ok := ticker.Quotes["USD"]
	if !ok || quote.Price == nil {
		return 0, errors.Errorf("ticker %s has no USD quote", coinID)
	}
	return *quote.Price, nil
}
