package dukascopy

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/rustyeddy/dukasfetch/market"
)

func render(ticks []market.Tick, r resolved) (any, error) {
	if r.Timeframe.IsTick() {
		return renderTicks(ticks, r.Format, r.Volumes)
	}

	candles, err := market.Aggregate(ticks, r.Timeframe, r.PriceType, r.Location)
	if err != nil {
		return nil, err
	}
	return renderCandles(candles, r.Format, r.Volumes)
}

func renderTicks(ticks []market.Tick, format Format, volumes bool) (any, error) {
	switch format {
	case FormatArray:
		rows := make([][]float64, 0, len(ticks))
		for _, t := range ticks {
			rows = append(rows, t.Row(volumes))
		}
		return rows, nil
	case FormatJSON, FormatCSV:
		if volumes {
			return shape(ticks, format)
		}
		quotes := make([]market.Quote, 0, len(ticks))
		for _, t := range ticks {
			quotes = append(quotes, t.Quote())
		}
		return shape(quotes, format)
	}
	return nil, fmt.Errorf("%w: format %q", ErrUnsupported, format)
}

func renderCandles(candles []market.Candle, format Format, volumes bool) (any, error) {
	switch format {
	case FormatArray:
		rows := make([][]float64, 0, len(candles))
		for _, c := range candles {
			rows = append(rows, c.Row(volumes))
		}
		return rows, nil
	case FormatJSON, FormatCSV:
		if candles == nil {
			candles = []market.Candle{}
		}
		if volumes {
			return shape(candles, format)
		}
		bars := make([]market.Bar, 0, len(candles))
		for _, c := range candles {
			bars = append(bars, c.Bar())
		}
		return shape(bars, format)
	}
	return nil, fmt.Errorf("%w: format %q", ErrUnsupported, format)
}

// shape returns rows as-is for json, or as CSV text with a header row.
func shape[T any](rows []T, format Format) (any, error) {
	if format != FormatCSV {
		return rows, nil
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return out, nil
}
