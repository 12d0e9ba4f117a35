package collector

import "EtfSentinel/internal/model"

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchDailyBars(symbol string, days int) ([]model.OHLCV, error)
	FetchLatestClose(symbol string) (float64, error)
	Name() string
}
