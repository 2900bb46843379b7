package dukascopy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz/lzma"

	"github.com/rustyeddy/dukasfetch/market"
)

// recordSize is the length of one tick record in a decompressed hour file:
// ms offset, ask, bid (uint32) then ask volume, bid volume (float32), all
// big-endian.
const recordSize = 20

// HourURL returns the datafeed location of one hour of ticks.
func HourURL(base, symbol string, hour time.Time) string {
	hour = hour.UTC()
	// Dukascopy uses zero-based month in URL path: Jan=00 ... Dec=11
	month0 := int(hour.Month()) - 1
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%02dh_ticks.bi5",
		strings.TrimRight(base, "/"),
		symbol,
		hour.Year(), month0, hour.Day(), hour.Hour())
}

// decompressBI5 expands an LZMA hour file. An empty payload is a valid hour
// without ticks.
func decompressBI5(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, nil
	}
	r, err := lzma.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHour, err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHour, err)
	}
	return raw, nil
}

// decodeTicks parses decompressed hour records into ticks.
func decodeTicks(raw []byte, hour time.Time, meta market.InstrumentMeta) ([]market.Tick, error) {
	if len(raw)%recordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrCorruptHour, len(raw), recordSize)
	}

	base := hour.UTC().UnixMilli()
	ticks := make([]market.Tick, 0, len(raw)/recordSize)
	for off := 0; off < len(raw); off += recordSize {
		rec := raw[off : off+recordSize]
		ticks = append(ticks, market.Tick{
			Timestamp: base + int64(binary.BigEndian.Uint32(rec[0:4])),
			Ask:       meta.Price(binary.BigEndian.Uint32(rec[4:8])),
			Bid:       meta.Price(binary.BigEndian.Uint32(rec[8:12])),
			AskVolume: volume(binary.BigEndian.Uint32(rec[12:16])),
			BidVolume: volume(binary.BigEndian.Uint32(rec[16:20])),
		})
	}
	return ticks, nil
}

// volume widens a float32 without carrying its binary noise into the
// decimal output, so 1.12 stays 1.12 and not 1.1200000047683716.
func volume(bits uint32) float64 {
	f := math.Float32frombits(bits)
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}
