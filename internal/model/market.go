package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MarketReading holds the signal ticker's inputs for one decision day.
// A zero PrevClose, MA200 or MonthHighClose marks the dependent derived
// value as unknown; the evaluator degrades instead of failing.
type MarketReading struct {
	Date           time.Time
	Close          float64
	PrevClose      float64
	MA200          float64
	MonthHighClose float64
}
