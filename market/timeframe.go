package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the granularity of returned rates. Ticks is the finest; the
// rest are candle sizes built from ticks.
type Timeframe string

const (
	Ticks Timeframe = "tick"
	M1    Timeframe = "m1"
	M5    Timeframe = "m5"
	M15   Timeframe = "m15"
	M30   Timeframe = "m30"
	H1    Timeframe = "h1"
	H4    Timeframe = "h4"
	D1    Timeframe = "d1"
)

var timeframeDurations = map[Timeframe]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if tf == Ticks {
		return tf, nil
	}
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe: %s", s)
	}
	return tf, nil
}

func (tf Timeframe) IsTick() bool {
	return tf == Ticks
}

// Duration returns the candle width. It is zero for Ticks and unknown values.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

func (tf Timeframe) String() string {
	return string(tf)
}
