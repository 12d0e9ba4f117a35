package allocator

import (
	"fmt"

	"EtfSentinel/internal/config"
	"EtfSentinel/internal/model"
)

// BuildEqualWeightPlan produces a one-shot equal-weight initial buy plan
// across the configured portfolio: the after-spread USD budget is split
// evenly, each slice is converted to a fee-feasible share quantity, and the
// remainder is pushed onto the least-spent ticker to keep the weights
// close. Returns the plan, the USD actually used, and the total fee.
func BuildEqualWeightPlan(cfg *config.Config, prices map[string]float64, investCNY float64) ([]model.OrderLine, float64, float64, error) {
	tickers := cfg.Symbols.Portfolio
	if len(tickers) == 0 || investCNY <= 0 {
		return nil, 0, 0, nil
	}
	for _, t := range tickers {
		if _, ok := prices[t]; !ok {
			return nil, 0, 0, fmt.Errorf("bootstrap: no price for ticker %s", t)
		}
	}

	fx := cfg.Params.FxUsdCny
	if fx <= 0 {
		fx = cfg.Params.FxFallbackUsdCny
	}
	availUSD := (investCNY / fx) * (1 - cfg.Execution.SpreadCostPct)
	perUSD := availUSD / float64(len(tickers))

	sched := buySchedule(cfg)
	allowFrac := cfg.Execution.AllowFractionalShares
	step := cfg.Execution.FractionalStep

	orders := make([]model.OrderLine, len(tickers))
	used := make([]float64, len(tickers))
	usedTotal, feeTotal := 0.0, 0.0

	for i, t := range tickers {
		price := prices[t]
		ol := model.OrderLine{Ticker: t, Side: model.SideHold, Price: price, Note: "init equal-weight"}
		if price <= 0 {
			ol.Note = "bad price"
			orders[i] = ol
			continue
		}
		shares, fee := affordableBuyShares(perUSD, price, allowFrac, step, sched)
		if shares > 0 {
			ol.Side = model.SideBuy
			ol.Shares = shares
			ol.EstFeeUSD = fee
			ol.EstGrossUSD = shares * price
			used[i] = ol.EstGrossUSD + fee
			usedTotal += used[i]
			feeTotal += fee
		}
		orders[i] = ol
	}

	// Second pass: top up the ticker that spent the least of its slice.
	remaining := availUSD - usedTotal
	if remaining > 0 && allowFrac {
		best := 0
		for i := range tickers {
			if used[i] < used[best] {
				best = i
			}
		}
		ol := &orders[best]
		if ol.Side == model.SideBuy && ol.Price > 0 {
			add, cost := additionalBuyShares(ol.Shares, remaining, ol.Price, allowFrac, step, sched)
			if add > 0 {
				oldFee := ol.EstFeeUSD
				ol.Shares = roundShares(ol.Shares + add)
				ol.EstFeeUSD = sched.Fee(ol.Shares)
				ol.EstGrossUSD = ol.Shares * ol.Price
				ol.Note = "init equal-weight + leftover"
				usedTotal += cost
				feeTotal += ol.EstFeeUSD - oldFee
			}
		}
	}

	return orders, usedTotal, feeTotal, nil
}
