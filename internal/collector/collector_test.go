package collector

import (
	"errors"
	"testing"
	"time"

	"EtfSentinel/internal/config"
	"EtfSentinel/internal/model"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Symbols.Portfolio = []string{"IWY", "RSP"}
	cfg.Symbols.Signal = "RSP"
	cfg.Params.FxMode = "fixed"
	cfg.Params.FxUsdCny = 7.2
	cfg.Params.FxSymbol = "USDCNY=X"
	cfg.Params.FxFallbackUsdCny = 7.1
	return cfg
}

// barsEndingAt builds one bar per calendar day, the last one on end.
func barsEndingAt(end time.Time, closes []float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: end.AddDate(0, 0, -(len(closes) - 1 - i)), Close: c}
	}
	return bars
}

func TestCollect_BuildsReading(t *testing.T) {
	end := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 100
	}
	closes[247] = 103 // June 3 month high
	closes[248] = 102 // previous close
	closes[249] = 99  // decision-day close

	mock := &MockFetcher{
		Price:     50,
		DailyData: map[string][]model.OHLCV{"RSP": barsEndingAt(end, closes)},
		Closes:    map[string]float64{"IWY": 215.3, "RSP": 99},
	}
	col := NewCollector(mock, testConfig())

	snap, err := col.Collect(end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := snap.Reading
	if r.Close != 99 || r.PrevClose != 102 {
		t.Errorf("expected close 99 / prev 102, got %f / %f", r.Close, r.PrevClose)
	}
	if r.MonthHighClose != 103 {
		t.Errorf("expected month high 103, got %f", r.MonthHighClose)
	}
	if r.MA200 <= 99 || r.MA200 >= 101 {
		t.Errorf("MA200 outside plausible band: %f", r.MA200)
	}
	if snap.Prices["IWY"] != 215.3 || snap.Prices["RSP"] != 99 {
		t.Errorf("unexpected prices: %+v", snap.Prices)
	}
	if snap.FxUsdCny != 7.2 {
		t.Errorf("expected fixed fx 7.2, got %f", snap.FxUsdCny)
	}
}

func TestCollect_ShortHistoryDegradesMA200(t *testing.T) {
	end := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	closes := []float64{101, 102, 99}
	mock := &MockFetcher{
		Price:     50,
		DailyData: map[string][]model.OHLCV{"RSP": barsEndingAt(end, closes)},
	}
	col := NewCollector(mock, testConfig())

	snap, err := col.Collect(end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Reading.MA200 != 0 {
		t.Errorf("expected unknown MA200, got %f", snap.Reading.MA200)
	}
	if snap.Reading.Close != 99 {
		t.Errorf("expected close 99, got %f", snap.Reading.Close)
	}
}

func TestCollect_AutoFx(t *testing.T) {
	end := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.Params.FxMode = "auto"
	mock := &MockFetcher{
		Price:     50,
		DailyData: map[string][]model.OHLCV{"RSP": barsEndingAt(end, []float64{100, 99})},
		Closes:    map[string]float64{"USDCNY=X": 7.13},
	}
	col := NewCollector(mock, cfg)

	snap, err := col.Collect(end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.FxUsdCny != 7.13 {
		t.Errorf("expected fetched fx 7.13, got %f", snap.FxUsdCny)
	}
}

// failingFxFetcher errors on the fx symbol only.
type failingFxFetcher struct{ MockFetcher }

func (f *failingFxFetcher) FetchLatestClose(symbol string) (float64, error) {
	if symbol == "USDCNY=X" {
		return 0, errors.New("quote unavailable")
	}
	return f.MockFetcher.FetchLatestClose(symbol)
}

func TestCollect_AutoFxFallsBack(t *testing.T) {
	end := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.Params.FxMode = "auto"
	mock := &failingFxFetcher{MockFetcher{
		Price:     50,
		DailyData: map[string][]model.OHLCV{"RSP": barsEndingAt(end, []float64{100, 99})},
	}}
	col := NewCollector(mock, cfg)

	snap, err := col.Collect(end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.FxUsdCny != 7.1 {
		t.Errorf("expected fallback fx 7.1, got %f", snap.FxUsdCny)
	}
}
