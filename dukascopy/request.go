package dukascopy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/dukasfetch/market"
)

var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrUnsupported       = errors.New("unsupported request option")
	ErrCorruptHour       = errors.New("corrupt hour file")
)

// Format selects the shape of the value returned by GetHistoricalRates.
type Format string

const (
	FormatJSON  Format = "json"  // slice of structs
	FormatArray Format = "array" // [][]float64
	FormatCSV   Format = "csv"   // string with header row
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatArray, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format %q", ErrUnsupported, s)
	}
}

// Request addresses one historical rates download. Ticks are returned for
// the half-open interval [From, To). Location aligns candle buckets and
// defaults to UTC.
type Request struct {
	Instrument string
	From       time.Time
	To         time.Time
	Timeframe  market.Timeframe
	Format     Format
	PriceType  market.Side
	Volumes    bool
	Location   *time.Location
}

// resolved is a validated Request with defaults applied.
type resolved struct {
	Request
	meta market.InstrumentMeta
}

func (r Request) resolve() (resolved, error) {
	meta, err := market.LookupInstrument(r.Instrument)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, r.Instrument)
	}
	if r.From.IsZero() || r.To.IsZero() {
		return resolved{}, fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	if !r.From.Before(r.To) {
		return resolved{}, fmt.Errorf("%w: from %s is not before to %s",
			ErrInvalidRange, r.From.UTC().Format(time.RFC3339), r.To.UTC().Format(time.RFC3339))
	}

	if r.Timeframe == "" {
		r.Timeframe = market.Ticks
	}
	tf, err := market.ParseTimeframe(string(r.Timeframe))
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	r.Timeframe = tf
	if r.Format == "" {
		r.Format = FormatJSON
	}
	if r.Format, err = ParseFormat(string(r.Format)); err != nil {
		return resolved{}, err
	}
	if r.PriceType == "" {
		r.PriceType = market.BidSide
	}
	if r.PriceType, err = market.ParseSide(string(r.PriceType)); err != nil {
		return resolved{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	if r.Location == nil {
		r.Location = time.UTC
	}

	r.Instrument = meta.Name
	r.From = r.From.UTC()
	r.To = r.To.UTC()
	return resolved{Request: r, meta: meta}, nil
}

// hours lists the UTC hour starts covering [From, To).
func (r resolved) hours() []time.Time {
	var out []time.Time
	for h := r.From.Truncate(time.Hour); h.Before(r.To); h = h.Add(time.Hour) {
		out = append(out, h)
	}
	return out
}

func (r resolved) contains(t market.Tick) bool {
	return t.Timestamp >= r.From.UnixMilli() && t.Timestamp < r.To.UnixMilli()
}
