package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"EtfSentinel/internal/model"
)

func signalLabel(s model.Signal) string {
	switch s {
	case model.SignalFirst:
		return "一档买入"
	case model.SignalSecond:
		return "二档加仓"
	case model.SignalThird:
		return "三档重仓"
	case model.SignalReserveOnly:
		return "储备金释放"
	case model.SignalNone:
		return "观望"
	case model.SignalNotTradingDay:
		return "休市"
	default:
		return string(s)
	}
}

func orderTable(orders []model.OrderLine) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.Header("代码", "操作", "股数", "价格", "费用$", "金额$")
	for _, ol := range orders {
		table.Append(ol.Ticker, string(ol.Side),
			fmt.Sprintf("%.4f", ol.Shares),
			fmt.Sprintf("%.2f", ol.Price),
			fmt.Sprintf("%.2f", ol.EstFeeUSD),
			fmt.Sprintf("%.2f", ol.EstGrossUSD))
	}
	table.Render()
	return buf.String()
}

// FormatDailyReport formats the daily signal and order plan into a Telegram message.
func FormatDailyReport(sig *model.SignalResult, orders []model.OrderLine, totalFeeUSD, cashPoolEndCNY, fxUsdCny float64) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>EtfSentinel 日报</b> | %s\n\n", sig.Date.Format("2006-01-02")))

	b.WriteString(fmt.Sprintf("信号: <b>%s</b>\n", signalLabel(sig.Signal)))
	b.WriteString(fmt.Sprintf("收盘: %.2f", sig.Close))
	if sig.DailyReturnValid {
		b.WriteString(fmt.Sprintf(" (日涨跌 %+.2f%%)", sig.DailyReturn*100))
	}
	b.WriteString("\n")
	if sig.MonthlyDrawdownValid {
		b.WriteString(fmt.Sprintf("月内回撤: %.2f%% (月高 %.2f)\n", sig.MonthlyDrawdown*100, sig.MonthHighClose))
	}
	if sig.BelowMA200Valid && sig.BelowMA200 {
		b.WriteString("⚠️ 跌破 MA200\n")
	}
	if sig.ThirdFriday {
		b.WriteString("📅 本月第三个周五\n")
	}
	b.WriteString(fmt.Sprintf("冷却: %v | 月度限额: %v\n\n", sig.CooldownOk, sig.MonthLimitOk))

	b.WriteString("💰 <b>资金安排:</b>\n")
	b.WriteString(fmt.Sprintf("  基础买入: ¥%.0f\n", sig.BaseBuyCNY))
	if sig.ReserveAddCNY > 0 {
		b.WriteString(fmt.Sprintf("  储备金存入: ¥%.0f\n", sig.ReserveAddCNY))
	}
	if sig.ReserveUseCNY > 0 {
		b.WriteString(fmt.Sprintf("  储备金动用: ¥%.0f\n", sig.ReserveUseCNY))
	}
	b.WriteString(fmt.Sprintf("  建议买入: ¥%.0f\n", sig.RecommendedBuyCNY))

	if len(orders) > 0 {
		b.WriteString(fmt.Sprintf("\n📋 <b>下单计划</b> (汇率 %.4f):\n", fxUsdCny))
		b.WriteString("<pre>")
		b.WriteString(orderTable(orders))
		b.WriteString("</pre>\n")
		b.WriteString(fmt.Sprintf("费用合计: $%.2f | 现金池结余: ¥%.2f\n", totalFeeUSD, cashPoolEndCNY))
	}

	return b.String()
}

// FormatBootstrapPlan formats the initial equal-weight buy plan.
func FormatBootstrapPlan(orders []model.OrderLine, usedUSD, feeUSD, fxUsdCny float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏗 <b>建仓计划</b> | %s\n\n", time.Now().Format("2006-01-02")))
	b.WriteString("<pre>")
	b.WriteString(orderTable(orders))
	b.WriteString("</pre>\n")
	b.WriteString(fmt.Sprintf("动用: $%.2f (≈¥%.0f) | 费用: $%.2f\n", usedUSD, usedUSD*fxUsdCny, feeUSD))
	return b.String()
}

// FormatStatus formats the current ledger state for the /status command.
func FormatStatus(reserveCNY, cashPoolCNY float64, holdings []model.Holding, last *model.TradeLogRecord) string {
	var b strings.Builder
	b.WriteString("📦 <b>当前状态</b>\n\n")
	b.WriteString(fmt.Sprintf("储备金余额: ¥%.2f\n", reserveCNY))
	b.WriteString(fmt.Sprintf("现金池余额: ¥%.2f\n", cashPoolCNY))
	b.WriteString("\n持仓:\n")
	for _, h := range holdings {
		b.WriteString(fmt.Sprintf("  %s: %.4f 股\n", h.Ticker, h.Shares))
	}
	if last != nil {
		b.WriteString(fmt.Sprintf("\n最近一笔: %s %s ¥%.0f\n",
			last.Date.Format("2006-01-02"), signalLabel(last.Signal), last.RecommendedBuyCNY))
	}
	return b.String()
}

// FormatTradeLogTail formats the last n trade log rows for the /log command.
func FormatTradeLogTail(history []model.TradeLogRecord, n int) string {
	if len(history) == 0 {
		return "暂无交易记录"
	}
	if n > len(history) {
		n = len(history)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📜 <b>最近 %d 条记录</b>\n<pre>", n))
	table := tablewriter.NewWriter(&b)
	table.Header("日期", "信号", "买入¥", "储备¥")
	for _, rec := range history[len(history)-n:] {
		table.Append(rec.Date.Format("01-02"), string(rec.Signal),
			fmt.Sprintf("%.0f", rec.RecommendedBuyCNY),
			fmt.Sprintf("%+.0f", rec.ReserveAddCNY-rec.ReserveUseCNY))
	}
	table.Render()
	b.WriteString("</pre>")
	return b.String()
}
