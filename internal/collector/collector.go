package collector

import (
	"fmt"
	"log"
	"time"

	"EtfSentinel/internal/calculator"
	"EtfSentinel/internal/config"
	"EtfSentinel/internal/model"
)

// Snapshot bundles everything one decision day needs from the market: the
// signal ticker's reading, a close price per portfolio ticker, and the
// USD/CNY rate to use for this run.
type Snapshot struct {
	Reading  model.MarketReading
	Prices   map[string]float64
	FxUsdCny float64
}

// Collector orchestrates data fetching and derived-value computation.
type Collector struct {
	Fetcher Fetcher
	Cfg     *config.Config
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, cfg *config.Config) *Collector {
	return &Collector{Fetcher: fetcher, Cfg: cfg}
}

// Collect fetches market data for the given decision date. The signal
// close itself is required; MA200 and the month high degrade to zero
// (unknown) with a warning, matching how the evaluator treats them.
func (c *Collector) Collect(asof time.Time) (*Snapshot, error) {
	signal := c.Cfg.Symbols.Signal
	bars, err := c.Fetcher.FetchDailyBars(signal, 300)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", signal, err)
	}

	reading := model.MarketReading{Date: asof}
	reading.Close, reading.PrevClose, err = calculator.LastTwoCloses(bars, asof)
	if err != nil {
		return nil, fmt.Errorf("signal close for %s: %w", signal, err)
	}

	if ma, err := calculator.CalculateMA200(bars); err != nil {
		log.Printf("[WARN] MA200 calculation failed: %v, treating as unknown", err)
	} else {
		reading.MA200 = ma
	}

	if high, err := calculator.MonthHighClose(bars, asof); err != nil {
		log.Printf("[WARN] month high calculation failed: %v, treating as unknown", err)
	} else {
		reading.MonthHighClose = high
	}

	prices := make(map[string]float64, len(c.Cfg.Symbols.Portfolio))
	for _, t := range c.Cfg.Symbols.Portfolio {
		p, err := c.Fetcher.FetchLatestClose(t)
		if err != nil {
			return nil, fmt.Errorf("fetch price for %s: %w", t, err)
		}
		prices[t] = p
	}

	return &Snapshot{Reading: reading, Prices: prices, FxUsdCny: c.fxRate()}, nil
}

// fxRate resolves the USD/CNY rate per the configured mode. A failed auto
// fetch falls back to the fixed rate rather than aborting the run.
func (c *Collector) fxRate() float64 {
	if c.Cfg.Params.FxMode != "auto" {
		return c.Cfg.Params.FxUsdCny
	}
	rate, err := c.Fetcher.FetchLatestClose(c.Cfg.Params.FxSymbol)
	if err != nil || rate <= 0 {
		log.Printf("[WARN] fx fetch for %s failed (%v), using fallback %.4f",
			c.Cfg.Params.FxSymbol, err, c.Cfg.Params.FxFallbackUsdCny)
		return c.Cfg.Params.FxFallbackUsdCny
	}
	return rate
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData map[string][]model.OHLCV
	Closes    map[string]float64
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(symbol string, days int) ([]model.OHLCV, error) {
	if bars, ok := m.DailyData[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, days), nil
}

func (m *MockFetcher) FetchLatestClose(symbol string) (float64, error) {
	if c, ok := m.Closes[symbol]; ok {
		return c, nil
	}
	return m.Price, nil
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
