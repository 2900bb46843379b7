package market

import "time"

// Tick is a single quote from the datafeed. Timestamp is Unix milliseconds
// in UTC. Volumes are in millions of units.
type Tick struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Ask       float64 `json:"askPrice" csv:"askPrice"`
	Bid       float64 `json:"bidPrice" csv:"bidPrice"`
	AskVolume float64 `json:"askVolume" csv:"askVolume"`
	BidVolume float64 `json:"bidVolume" csv:"bidVolume"`
}

// Quote is a Tick without volumes.
type Quote struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Ask       float64 `json:"askPrice" csv:"askPrice"`
	Bid       float64 `json:"bidPrice" csv:"bidPrice"`
}

func (t Tick) Quote() Quote {
	return Quote{Timestamp: t.Timestamp, Ask: t.Ask, Bid: t.Bid}
}

func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

func (t Tick) Mid() float64 {
	if t.Bid == 0 && t.Ask == 0 {
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

// Row returns the tick in array form: timestamp, ask, bid, askVolume, bidVolume.
// Volumes are left off when withVolumes is false.
func (t Tick) Row(withVolumes bool) []float64 {
	row := []float64{float64(t.Timestamp), t.Ask, t.Bid}
	if withVolumes {
		row = append(row, t.AskVolume, t.BidVolume)
	}
	return row
}
