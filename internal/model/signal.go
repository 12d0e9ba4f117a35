package model

import "time"

// Signal classifies a decision day.
type Signal string

const (
	SignalNotTradingDay Signal = "NotTradingDay"
	SignalNone          Signal = "None"
	SignalFirst         Signal = "First"
	SignalSecond        Signal = "Second"
	SignalThird         Signal = "Third"
	SignalReserveOnly   Signal = "ReserveOnly"
)

// SignalResult is the full output of the signal evaluator. Every
// intermediate value is carried: the trade-log row and the daily report
// echo them verbatim.
//
// DailyReturn, MonthlyDrawdown and BelowMA200 each pair with a Valid flag;
// an invalid value means the underlying reading was unusable and the
// trigger logic treated the condition as false.
type SignalResult struct {
	Date         time.Time
	IsTradingDay bool
	ThirdFriday  bool

	Close          float64
	MonthHighClose float64

	DailyReturn          float64
	DailyReturnValid     bool
	MonthlyDrawdown      float64
	MonthlyDrawdownValid bool
	BelowMA200           bool
	BelowMA200Valid      bool

	MonthKey           time.Time
	TradesThisMonth    int
	HasFirst           bool
	HasSecond          bool
	HasThird           bool
	DaysSinceLastTrade int
	CooldownOk         bool
	MonthLimitOk       bool

	Signal               Signal
	BaseBuyCNY           float64
	ReserveAddCNY        float64
	ReserveUseCNY        float64
	RecommendedBuyCNY    float64
	ReserveBalanceBefore float64
}
