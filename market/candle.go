package market

import (
	"fmt"
	"strings"
	"time"
)

// Candle represents OHLC (Open, High, Low, Close) candlestick data built
// from ticks. Timestamp is the bucket open in Unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Open      float64 `json:"open" csv:"open"`
	High      float64 `json:"high" csv:"high"`
	Low       float64 `json:"low" csv:"low"`
	Close     float64 `json:"close" csv:"close"`
	Volume    float64 `json:"volume" csv:"volume"`
}

// Bar is a Candle without volume.
type Bar struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Open      float64 `json:"open" csv:"open"`
	High      float64 `json:"high" csv:"high"`
	Low       float64 `json:"low" csv:"low"`
	Close     float64 `json:"close" csv:"close"`
}

func (c Candle) Bar() Bar {
	return Bar{Timestamp: c.Timestamp, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close}
}

// Row returns the candle in array form: timestamp, open, high, low, close, volume.
func (c Candle) Row(withVolume bool) []float64 {
	row := []float64{float64(c.Timestamp), c.Open, c.High, c.Low, c.Close}
	if withVolume {
		row = append(row, c.Volume)
	}
	return row
}

// Side selects which quote side candles are built from.
type Side string

const (
	BidSide Side = "bid"
	AskSide Side = "ask"
	MidSide Side = "mid"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case BidSide:
		return BidSide, nil
	case AskSide:
		return AskSide, nil
	case MidSide:
		return MidSide, nil
	default:
		return "", fmt.Errorf("unsupported price type: %s (use bid, ask or mid)", s)
	}
}

func (s Side) price(t Tick) float64 {
	switch s {
	case AskSide:
		return t.Ask
	case MidSide:
		return t.Mid()
	default:
		return t.Bid
	}
}

// Aggregate buckets time-ordered ticks into candles of width tf. Buckets
// are aligned to the wall clock of loc (UTC when nil), so d1 candles open
// at local midnight. Buckets without ticks produce no candle. Volume is the
// sum of ask and bid volume.
func Aggregate(ticks []Tick, tf Timeframe, side Side, loc *time.Location) ([]Candle, error) {
	width := tf.Duration()
	if width <= 0 {
		return nil, fmt.Errorf("cannot aggregate to timeframe %q", tf)
	}
	if loc == nil {
		loc = time.UTC
	}

	var (
		out []Candle
		cur *Candle
	)
	for _, t := range ticks {
		open := bucketStart(t.Time().In(loc), width).UnixMilli()
		px := side.price(t)

		if cur == nil || cur.Timestamp != open {
			if cur != nil && open < cur.Timestamp {
				return nil, fmt.Errorf("ticks out of order at %d", t.Timestamp)
			}
			out = append(out, Candle{
				Timestamp: open,
				Open:      px,
				High:      px,
				Low:       px,
				Close:     px,
			})
			cur = &out[len(out)-1]
		}

		if px > cur.High {
			cur.High = px
		}
		if px < cur.Low {
			cur.Low = px
		}
		cur.Close = px
		cur.Volume += t.AskVolume + t.BidVolume
	}
	return out, nil
}

// bucketStart floors t to a multiple of width counted from its local
// midnight. width divides a day for every Timeframe.
func bucketStart(t time.Time, width time.Duration) time.Time {
	y, m, d := t.Date()
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	step := int(width / time.Second)
	return time.Date(y, m, d, 0, 0, sec-sec%step, 0, t.Location())
}
