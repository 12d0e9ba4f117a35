package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	App struct {
		Timezone     string `yaml:"timezone"`
		BaseCurrency string `yaml:"base_currency"`
	} `yaml:"app"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Symbols struct {
		Portfolio []string `yaml:"portfolio"`
		Signal    string   `yaml:"signal"`
	} `yaml:"symbols"`
	Params struct {
		FxUsdCny                float64 `yaml:"fx_usd_cny"`
		FxMode                  string  `yaml:"fx_mode"` // auto | fixed
		FxSymbol                string  `yaml:"fx_symbol"`
		FxFallbackUsdCny        float64 `yaml:"fx_fallback_usd_cny"`
		InvestCnyPerTrade       float64 `yaml:"invest_cny_per_trade"`
		FirstBuyRatioBelowMA200 float64 `yaml:"first_buy_ratio_below_ma200"`
		FirstDailyDropThreshold float64 `yaml:"first_daily_drop_threshold"`
		SecondDrawdownThreshold float64 `yaml:"second_drawdown_threshold"`
		ThirdDrawdownThreshold  float64 `yaml:"third_drawdown_threshold"`
		CooldownTradingDays     int     `yaml:"cooldown_trading_days"`
		MaxTradesPerMonth       int     `yaml:"max_trades_per_month"`
		TargetWeightEach        float64 `yaml:"target_weight_each"`
		// The floor guardrail belongs to the external rebalance process;
		// the daily engine only reads the ceiling. Validated here so both
		// consumers share one checked config file.
		WeightFloorGuardrail   float64 `yaml:"weight_floor_guardrail"`
		WeightCeilingGuardrail float64 `yaml:"weight_ceiling_guardrail"`
	} `yaml:"params"`
	Execution struct {
		AllowFractionalShares bool    `yaml:"allow_fractional_shares"`
		FractionalStep        float64 `yaml:"fractional_step"`
		SpreadCostPct         float64 `yaml:"spread_cost_pct"`
		OtherFixedFeeUSD      float64 `yaml:"other_fixed_fee_usd"`
	} `yaml:"execution"`
	CashPool struct {
		Enabled   bool    `yaml:"enabled"`
		Source    string  `yaml:"source"` // AUTO | MANUAL
		ManualCNY float64 `yaml:"manual_cny"`
	} `yaml:"cash_pool"`
	Fees struct {
		Buy struct {
			CommissionPerShare float64 `yaml:"commission_per_share"`
			CommissionMinUSD   float64 `yaml:"commission_min_usd"`
			PlatformPerShare   float64 `yaml:"platform_per_share"`
			PlatformMinUSD     float64 `yaml:"platform_min_usd"`
			ClearingPerShare   float64 `yaml:"clearing_per_share"`
		} `yaml:"buy"`
		SellExtra struct {
			ActivityPerShare float64 `yaml:"activity_per_share"`
			ActivityMinUSD   float64 `yaml:"activity_min_usd"`
			ActivityMaxUSD   float64 `yaml:"activity_max_usd"`
			CatPerShare      float64 `yaml:"cat_per_share"`
			SecFeeUSD        float64 `yaml:"sec_fee_usd"`
		} `yaml:"sell_extra"`
	} `yaml:"fees"`
	Bootstrap struct {
		InitialInvestCNY float64 `yaml:"initial_invest_cny"`
	} `yaml:"bootstrap"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	DataSource struct {
		Provider string `yaml:"provider"` // yahoo | mock
	} `yaml:"data_source"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}

	// Defaults
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "America/New_York"
	}
	if cfg.App.BaseCurrency == "" {
		cfg.App.BaseCurrency = "CNY"
	}
	if len(cfg.Symbols.Portfolio) == 0 {
		cfg.Symbols.Portfolio = []string{"IWY", "SPMO", "RSP", "PFF", "VNQ"}
	}
	if cfg.Symbols.Signal == "" {
		cfg.Symbols.Signal = "RSP"
	}
	if cfg.Params.FxMode == "" {
		cfg.Params.FxMode = "fixed"
	}
	if cfg.Params.FxSymbol == "" {
		cfg.Params.FxSymbol = "USDCNY=X"
	}
	if cfg.Params.FxFallbackUsdCny == 0 {
		cfg.Params.FxFallbackUsdCny = cfg.Params.FxUsdCny
	}
	if cfg.Execution.FractionalStep == 0 {
		cfg.Execution.FractionalStep = 0.0001
	}
	if cfg.Execution.SpreadCostPct == 0 {
		cfg.Execution.SpreadCostPct = 0.001
	}
	if cfg.CashPool.Source == "" {
		cfg.CashPool.Source = "AUTO"
	}
	cfg.CashPool.Source = strings.ToUpper(cfg.CashPool.Source)
	if cfg.Schedule.DailyCron == "" {
		// Beijing-morning run, after the previous US session close
		cfg.Schedule.DailyCron = "0 30 9 * * 2-6"
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/etf_sentinel.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and well-formed.
// A failure here is fatal: the engine never guesses missing parameters.
func (c *Config) Validate() error {
	if len(c.Symbols.Portfolio) == 0 {
		return fmt.Errorf("symbols.portfolio must not be empty")
	}
	seen := map[string]bool{}
	for _, t := range c.Symbols.Portfolio {
		if t == "" {
			return fmt.Errorf("symbols.portfolio contains an empty ticker")
		}
		if seen[t] {
			return fmt.Errorf("symbols.portfolio contains duplicate ticker %s", t)
		}
		seen[t] = true
	}
	if c.Symbols.Signal == "" {
		return fmt.Errorf("symbols.signal is required")
	}

	p := c.Params
	if p.FxMode != "auto" && p.FxMode != "fixed" {
		return fmt.Errorf("params.fx_mode must be auto or fixed, got %q", p.FxMode)
	}
	if p.FxMode == "fixed" && p.FxUsdCny <= 0 {
		return fmt.Errorf("params.fx_usd_cny must be positive in fixed fx mode")
	}
	if p.FxMode == "auto" && p.FxFallbackUsdCny <= 0 {
		return fmt.Errorf("params.fx_fallback_usd_cny must be positive in auto fx mode")
	}
	if p.InvestCnyPerTrade <= 0 {
		return fmt.Errorf("params.invest_cny_per_trade must be positive")
	}
	if p.FirstBuyRatioBelowMA200 <= 0 || p.FirstBuyRatioBelowMA200 > 1 {
		return fmt.Errorf("params.first_buy_ratio_below_ma200 must be in (0, 1]")
	}
	if p.FirstDailyDropThreshold >= 0 {
		return fmt.Errorf("params.first_daily_drop_threshold must be negative")
	}
	if p.SecondDrawdownThreshold >= 0 || p.ThirdDrawdownThreshold >= 0 {
		return fmt.Errorf("params drawdown thresholds must be negative")
	}
	if p.ThirdDrawdownThreshold > p.SecondDrawdownThreshold {
		return fmt.Errorf("params.third_drawdown_threshold must be at or below second_drawdown_threshold")
	}
	if p.CooldownTradingDays < 0 {
		return fmt.Errorf("params.cooldown_trading_days must not be negative")
	}
	if p.MaxTradesPerMonth <= 0 {
		return fmt.Errorf("params.max_trades_per_month must be positive")
	}
	if p.TargetWeightEach <= 0 || p.TargetWeightEach > 1 {
		return fmt.Errorf("params.target_weight_each must be in (0, 1]")
	}
	if p.WeightCeilingGuardrail <= 0 || p.WeightCeilingGuardrail > 1 {
		return fmt.Errorf("params.weight_ceiling_guardrail must be in (0, 1]")
	}
	if p.WeightFloorGuardrail < 0 || p.WeightFloorGuardrail > p.TargetWeightEach {
		return fmt.Errorf("params.weight_floor_guardrail must be in [0, target_weight_each]")
	}

	if c.Execution.AllowFractionalShares && c.Execution.FractionalStep <= 0 {
		return fmt.Errorf("execution.fractional_step must be positive when fractional shares are allowed")
	}
	if c.Execution.SpreadCostPct < 0 || c.Execution.SpreadCostPct >= 1 {
		return fmt.Errorf("execution.spread_cost_pct must be in [0, 1)")
	}
	if c.Execution.OtherFixedFeeUSD < 0 {
		return fmt.Errorf("execution.other_fixed_fee_usd must not be negative")
	}

	if c.CashPool.Source != "AUTO" && c.CashPool.Source != "MANUAL" {
		return fmt.Errorf("cash_pool.source must be AUTO or MANUAL, got %q", c.CashPool.Source)
	}

	fb := c.Fees.Buy
	if fb.CommissionPerShare < 0 || fb.CommissionMinUSD < 0 ||
		fb.PlatformPerShare < 0 || fb.PlatformMinUSD < 0 || fb.ClearingPerShare < 0 {
		return fmt.Errorf("fees.buy values must not be negative")
	}
	fs := c.Fees.SellExtra
	if fs.ActivityPerShare < 0 || fs.ActivityMinUSD < 0 || fs.ActivityMaxUSD < 0 ||
		fs.CatPerShare < 0 || fs.SecFeeUSD < 0 {
		return fmt.Errorf("fees.sell_extra values must not be negative")
	}
	if fs.ActivityMaxUSD < fs.ActivityMinUSD {
		return fmt.Errorf("fees.sell_extra.activity_max_usd must be at or above activity_min_usd")
	}

	if c.DataSource.Provider != "yahoo" && c.DataSource.Provider != "mock" {
		return fmt.Errorf("data_source.provider must be yahoo or mock, got %q", c.DataSource.Provider)
	}
	return nil
}
