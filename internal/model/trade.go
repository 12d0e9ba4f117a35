package model

import "time"

// Side indicates the direction of an order line.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// Holding is one portfolio position. Shares may be fractional.
type Holding struct {
	Ticker string
	Shares float64
}

// OrderLine is one proposed order, produced fresh each run.
type OrderLine struct {
	Ticker      string
	Side        Side
	Shares      float64
	Price       float64
	EstFeeUSD   float64
	EstGrossUSD float64
	Note        string
}

// TradeLogRecord is one append-only trade-log row, written only on days a
// trade actually occurred. Ordering by date must be preserved: the
// evaluator's "last trade" lookup and the cash-pool fold depend on it.
type TradeLogRecord struct {
	Date               time.Time
	MonthKey           time.Time
	Signal             Signal
	BaseBuyCNY         float64
	BelowMA200         bool
	ReserveAddCNY      float64
	ReserveUseCNY      float64
	RecommendedBuyCNY  float64
	TotalFeeUSD        float64
	CashPoolEndCNY     float64
	SignalClose        float64
	MonthHighClose     float64
	MonthlyDrawdown    float64
	ThirdFriday        bool
	DaysSinceLastTrade int
	CooldownOk         bool
}

// MonthKeyOf returns the first day of d's month, the grouping key for
// per-month trade counting.
func MonthKeyOf(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}
