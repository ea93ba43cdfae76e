package domain

import "time"

// Bar is one immutable OHLCV record. Timestamps are bar-open time in
// Unix ms; the bar covers [Ts, Ts+interval). Corresponds to the bars
// table, which this engine only reads.
type Bar struct {
	Symbol string
	Ts     int64 // bar-open timestamp, Unix ms
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Timeframe labels for the bias stack.
const (
	Timeframe1m  = "1m"
	Timeframe5m  = "5m"
	Timeframe15m = "15m"
	Timeframe1h  = "1h"
	Timeframe4h  = "4h"
	Timeframe1d  = "1d"
)

// BiasTimeframes lists the bias-stack timeframes in ascending order.
var BiasTimeframes = []string{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d,
}

// TimeframeDuration maps a timeframe label to its bar interval.
var TimeframeDuration = map[string]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// BiasRow is the directional bias for a symbol at one timeframe,
// derived from SIGNAL_CREATED events. Corresponds to the bias_rows
// table.
type BiasRow struct {
	Symbol    string
	Timeframe string
	Ts        int64 // bar-open timestamp the bias applies from, ms
	Bias      Direction
	TradeID   string // signal that produced this bias row
}

// FloorToInterval floors a Unix-ms timestamp to the interval boundary.
func FloorToInterval(ts int64, interval time.Duration) int64 {
	ms := interval.Milliseconds()
	if ms <= 0 {
		return ts
	}
	return ts - ts%ms
}
