package app

import (
	"fmt"
	"strings"

	"gridbot/internal/config"
)

type StartupSummary struct {
	Grid     GridSummary
	Risk     RiskSummary
	Exchange ExchangeSummary
	HTTPAddr string
}

type GridSummary struct {
	Symbol      string
	Timeframe   string
	Lookback    int
	Range       string
	Mode        string
	Investment  string
	SpacingRule string
}

type RiskSummary struct {
	PollInterval   string
	MaxPositionUSD float64
	MaxDrawdownPct float64
}

type ExchangeSummary struct {
	Name     string
	DryRun   bool
	Telegram bool
}

func newStartupSummary(cfg *config.Config) *StartupSummary {
	g := cfg.Grid
	return &StartupSummary{
		Grid: GridSummary{
			Symbol:      g.Symbol,
			Timeframe:   g.Timeframe,
			Lookback:    g.Lookback,
			Range:       fmt.Sprintf("%.8g - %.8g", g.Support, g.Resistance),
			Mode:        g.Mode,
			Investment:  fmt.Sprintf("%.2f x%.0f = %.2f", g.InitialCash, g.Leverage, g.TotalInvestment()),
			SpacingRule: fmt.Sprintf("ATR(%d)/close x %.2f, floor %.4f%%", g.ATRPeriod, g.VolatilityK, (g.MinReturn+2*g.MakerFee)*100),
		},
		Risk: RiskSummary{
			PollInterval:   cfg.Risk.PollInterval().String(),
			MaxPositionUSD: cfg.Risk.MaxPositionUSD,
			MaxDrawdownPct: cfg.Risk.MaxDrawdownPct,
		},
		Exchange: ExchangeSummary{
			Name:     cfg.Exchange.Name,
			DryRun:   cfg.Exchange.DryRun,
			Telegram: cfg.Notify.Telegram.Enabled,
		},
		HTTPAddr: cfg.App.HTTPAddr,
	}
}

// Render 生成启动摘要文本。
func (s *StartupSummary) Render() string {
	var b strings.Builder
	title := "启动配置摘要 (STARTUP SUMMARY)"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[网格 (GRID)]\n")
	fmt.Fprintf(&b, "  交易对: %s @ %s (lookback %d)\n", s.Grid.Symbol, s.Grid.Timeframe, s.Grid.Lookback)
	fmt.Fprintf(&b, "  区间: %s (%s)\n", s.Grid.Range, s.Grid.Mode)
	fmt.Fprintf(&b, "  资金: %s\n", s.Grid.Investment)
	fmt.Fprintf(&b, "  间距: %s\n\n", s.Grid.SpacingRule)

	b.WriteString("[风控 (RISK)]\n")
	fmt.Fprintf(&b, "  轮询间隔: %s\n", s.Risk.PollInterval)
	fmt.Fprintf(&b, "  最大持仓: %.2f USD\n", s.Risk.MaxPositionUSD)
	fmt.Fprintf(&b, "  最大回撤: %.2f%%\n\n", s.Risk.MaxDrawdownPct*100)

	b.WriteString("[交易所 (EXCHANGE)]\n")
	mode := "实盘 (live)"
	if s.Exchange.DryRun {
		mode = "模拟 (dry-run)"
	}
	fmt.Fprintf(&b, "  %s: %s\n", s.Exchange.Name, mode)
	fmt.Fprintf(&b, "  Telegram: %v\n", s.Exchange.Telegram)
	if s.HTTPAddr != "" {
		fmt.Fprintf(&b, "  状态接口: %s\n", s.HTTPAddr)
	}
	b.WriteString(strings.Repeat("=", 80))
	return b.String()
}

func (s *StartupSummary) Print() {
	fmt.Println(s.Render())
}
