package strategy

import (
	"time"

	"EtfSentinel/internal/calendar"
	"EtfSentinel/internal/config"
	"EtfSentinel/internal/ledger"
	"EtfSentinel/internal/model"
)

// noTradeSentinel stands in for days-since-last-trade when there is no
// in-month trade to measure from, or when the day is not a session. Large
// enough to satisfy any sane cooldown.
const noTradeSentinel = 999

// monthSummary condenses the in-month slice of the trade log.
type monthSummary struct {
	trades    int
	hasFirst  bool
	hasSecond bool
	hasThird  bool
	lastTrade time.Time
	hasLast   bool
}

func summarizeMonth(history []model.TradeLogRecord, monthKey time.Time) monthSummary {
	var s monthSummary
	for _, rec := range history {
		if !rec.MonthKey.Equal(monthKey) {
			continue
		}
		s.trades++
		switch rec.Signal {
		case model.SignalFirst:
			s.hasFirst = true
		case model.SignalSecond:
			s.hasSecond = true
		case model.SignalThird:
			s.hasThird = true
		}
		if !s.hasLast || rec.Date.After(s.lastTrade) {
			s.lastTrade = rec.Date
			s.hasLast = true
		}
	}
	return s
}

// EvaluateSignal classifies one calendar day into a trading tier and
// computes the recommended CNY spend. Pure: identical inputs (including an
// unmodified history) produce identical results.
//
// Trigger priority is strict: Third, then Second, then First, then
// ReserveOnly. A derived value whose underlying reading is unusable (zero
// previous close, MA or month high) makes only its own condition false,
// never an error.
func EvaluateSignal(cfg *config.Config, cal calendar.Oracle, asof time.Time,
	md model.MarketReading, history []model.TradeLogRecord) *model.SignalResult {

	isTradingDay := cal.IsTradingDay(asof)
	thirdFriday := false
	if isTradingDay {
		thirdFriday = cal.IsThirdFriday(asof)
	}

	res := &model.SignalResult{
		Date:           asof,
		IsTradingDay:   isTradingDay,
		ThirdFriday:    thirdFriday,
		Close:          md.Close,
		MonthHighClose: md.MonthHighClose,
		MonthKey:       model.MonthKeyOf(asof),
	}

	if md.PrevClose != 0 {
		res.DailyReturn = md.Close/md.PrevClose - 1
		res.DailyReturnValid = true
	}
	if md.MonthHighClose != 0 {
		res.MonthlyDrawdown = md.Close/md.MonthHighClose - 1
		res.MonthlyDrawdownValid = true
	}
	if md.MA200 != 0 {
		res.BelowMA200 = md.Close < md.MA200
		res.BelowMA200Valid = true
	}

	sum := summarizeMonth(history, res.MonthKey)
	res.TradesThisMonth = sum.trades
	res.HasFirst = sum.hasFirst
	res.HasSecond = sum.hasSecond
	res.HasThird = sum.hasThird

	if sum.hasLast && isTradingDay {
		res.DaysSinceLastTrade = cal.TradingDayDistance(sum.lastTrade, asof)
	} else {
		res.DaysSinceLastTrade = noTradeSentinel
	}
	res.CooldownOk = res.DaysSinceLastTrade >= cfg.Params.CooldownTradingDays
	res.MonthLimitOk = res.TradesThisMonth < cfg.Params.MaxTradesPerMonth

	res.ReserveBalanceBefore = ledger.ReserveBalance(history)

	firstTrigger := isTradingDay &&
		res.TradesThisMonth == 0 &&
		res.CooldownOk &&
		((res.DailyReturnValid && res.DailyReturn <= cfg.Params.FirstDailyDropThreshold) || thirdFriday)

	secondTrigger := isTradingDay &&
		res.HasFirst && !res.HasSecond &&
		res.CooldownOk && res.MonthLimitOk &&
		res.MonthlyDrawdownValid && res.MonthlyDrawdown <= cfg.Params.SecondDrawdownThreshold

	thirdTrigger := isTradingDay &&
		res.HasSecond && !res.HasThird &&
		res.CooldownOk && res.MonthLimitOk &&
		res.MonthlyDrawdownValid && res.MonthlyDrawdown <= cfg.Params.ThirdDrawdownThreshold

	// An absent MA200 makes close >= ma200 trivially true; kept that way on
	// purpose so the reserve can still deploy when the average is unusable.
	useReserve := isTradingDay &&
		res.ReserveBalanceBefore > 0 &&
		res.CooldownOk &&
		(md.Close >= md.MA200 || secondTrigger || thirdTrigger)

	reserveOnly := isTradingDay && useReserve &&
		!(firstTrigger || secondTrigger || thirdTrigger)

	switch {
	case !isTradingDay:
		res.Signal = model.SignalNotTradingDay
	case thirdTrigger:
		res.Signal = model.SignalThird
	case secondTrigger:
		res.Signal = model.SignalSecond
	case firstTrigger:
		res.Signal = model.SignalFirst
	case reserveOnly:
		res.Signal = model.SignalReserveOnly
	default:
		res.Signal = model.SignalNone
	}

	invest := cfg.Params.InvestCnyPerTrade
	belowConfirmed := res.BelowMA200Valid && res.BelowMA200

	switch res.Signal {
	case model.SignalFirst:
		if belowConfirmed {
			res.BaseBuyCNY = invest * cfg.Params.FirstBuyRatioBelowMA200
		} else {
			res.BaseBuyCNY = invest
		}
	case model.SignalSecond, model.SignalThird:
		res.BaseBuyCNY = invest
	}

	// Below the long-term average the withheld portion of a first buy is
	// banked into the reserve for later deployment.
	if res.Signal == model.SignalFirst && belowConfirmed {
		res.ReserveAddCNY = invest * (1 - cfg.Params.FirstBuyRatioBelowMA200)
	}

	if useReserve {
		res.ReserveUseCNY = res.ReserveBalanceBefore
	}

	if res.Signal != model.SignalNotTradingDay && res.Signal != model.SignalNone {
		res.RecommendedBuyCNY = res.BaseBuyCNY + res.ReserveUseCNY
	}

	return res
}
