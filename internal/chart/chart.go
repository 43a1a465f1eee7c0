package chart

import (
	"bytes"

	"fx-signal-bot/internal/price"
	"fx-signal-bot/internal/types"

	"github.com/pkg/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	seriesColor     = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	seriesFillColor = drawing.Color{R: 0, G: 122, B: 255, A: 25}
)

// Render draws a PNG sparkline of the recent samples for a symbol. At
// least two points are needed to draw a line.
func Render(symbol types.Symbol, points []price.Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, errors.Errorf("not enough samples to chart %s: %d", symbol, len(points))
	}

	xValues := make([]float64, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = float64(p.Time.Unix())
		yValues[i] = p.Value
	}

	graph := gochart.Chart{
		Width:  800,
		Height: 360,
		Background: gochart.Style{
			FillColor: backgroundColor,
		},
		Canvas: gochart.Style{
			FillColor: backgroundColor,
		},
		XAxis: gochart.XAxis{
			Style: gochart.Style{Hidden: true},
		},
		YAxis: gochart.YAxis{
			Style: gochart.Style{
				FontColor:   textColor,
				StrokeColor: textColor,
			},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    string(symbol),
				XValues: xValues,
				YValues: yValues,
				Style: gochart.Style{
					StrokeColor: seriesColor,
					StrokeWidth: 2,
					FillColor:   seriesFillColor,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, errors.Wrapf(err, "could not render chart for %s", symbol)
	}
	return buf.Bytes(), nil
}
