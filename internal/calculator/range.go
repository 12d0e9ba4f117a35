package calculator

import (
	"errors"
	"time"

	"EtfSentinel/internal/model"
)

// MonthHighClose returns the highest close among bars of asof's calendar
// month, up to and including asof itself.
func MonthHighClose(dailyBars []model.OHLCV, asof time.Time) (float64, error) {
	high := 0.0
	for _, b := range dailyBars {
		if b.Time.Year() != asof.Year() || b.Time.Month() != asof.Month() {
			continue
		}
		if b.Time.After(asof) && !sameDay(b.Time, asof) {
			continue
		}
		if b.Close > high {
			high = b.Close
		}
	}
	if high == 0 {
		return 0, errors.New("no bars in month")
	}
	return high, nil
}

// LastTwoCloses returns the close of the bar at or before asof and the
// close immediately preceding it. Bars must be in ascending time order.
func LastTwoCloses(dailyBars []model.OHLCV, asof time.Time) (close, prevClose float64, err error) {
	idx := -1
	for i, b := range dailyBars {
		if b.Time.After(asof) && !sameDay(b.Time, asof) {
			break
		}
		idx = i
	}
	if idx < 0 {
		return 0, 0, errors.New("no bar at or before date")
	}
	close = dailyBars[idx].Close
	if idx > 0 {
		prevClose = dailyBars[idx-1].Close
	}
	return close, prevClose, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
