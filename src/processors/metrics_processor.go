// backend/src/processors/metrics_processor.go
package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

type metricsProcessorImpl struct{}

func NewMetricsProcessor() MetricsProcessor {
	return &metricsProcessorImpl{}
}

// Calculate derives the dashboard figures. Win/loss statistics only consider CLOSED
// positions; the equity curve and monthly figures use every exit.
func (p *metricsProcessorImpl) Calculate(positions []models.Position) models.DashboardMetrics {
	m := models.DashboardMetrics{
		TotalPositions:     len(positions),
		TotalRealizedPnL:   decimal.Zero,
		WinRatio:           decimal.Zero,
		AverageWin:         decimal.Zero,
		AverageLoss:        decimal.Zero,
		LargestWin:         decimal.Zero,
		LargestLoss:        decimal.Zero,
		ConsistencyScore:   decimal.Zero,
		MaxDrawdown:        decimal.Zero,
		MaxDrawdownPercent: decimal.Zero,
		EquityCurve:        []models.EquityPoint{},
		MonthlyPnL:         []models.MonthlyPnL{},
	}

	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	dailyPnL := make(map[string]decimal.Decimal)
	monthly := make(map[string]*models.MonthlyPnL)

	for _, pos := range positions {
		switch pos.Status {
		case models.StatusOpen:
			m.OpenPositions++
		case models.StatusPartiallyClosed:
			m.PartiallyClosedPositions++
		case models.StatusClosed:
			m.ClosedPositions++
		}
		m.TotalRealizedPnL = m.TotalRealizedPnL.Add(pos.RealizedPnL)

		for _, exit := range pos.Exits {
			dailyPnL[exit.Date] = dailyPnL[exit.Date].Add(exit.PnL)
			month := utils.MonthOf(exit.Date)
			entry, ok := monthly[month]
			if !ok {
				entry = &models.MonthlyPnL{Month: month, PnL: decimal.Zero}
				monthly[month] = entry
			}
			entry.PnL = entry.PnL.Add(exit.PnL)
			entry.Exits++
		}

		if pos.Status != models.StatusClosed {
			continue
		}
		switch pos.RealizedPnL.Sign() {
		case 1:
			m.WinningTrades++
			grossProfit = grossProfit.Add(pos.RealizedPnL)
			if pos.RealizedPnL.GreaterThan(m.LargestWin) {
				m.LargestWin = pos.RealizedPnL
			}
		case -1:
			m.LosingTrades++
			grossLoss = grossLoss.Add(pos.RealizedPnL)
			if pos.RealizedPnL.LessThan(m.LargestLoss) {
				m.LargestLoss = pos.RealizedPnL
			}
		}
	}

	if m.ClosedPositions > 0 {
		m.WinRatio = utils.PercentOf(decimal.NewFromInt(int64(m.WinningTrades)), decimal.NewFromInt(int64(m.ClosedPositions)), 2)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit.DivRound(decimal.NewFromInt(int64(m.WinningTrades)), 2)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLoss.DivRound(decimal.NewFromInt(int64(m.LosingTrades)), 2)
		m.ProfitFactor = decimal.NewNullDecimal(grossProfit.DivRound(grossLoss.Abs(), 2))
	}

	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	sort.Strings(months)
	positiveMonths := 0
	for _, month := range months {
		entry := monthly[month]
		if entry.PnL.Sign() > 0 {
			positiveMonths++
		}
		m.MonthlyPnL = append(m.MonthlyPnL, *entry)
	}
	if len(months) > 0 {
		m.ConsistencyScore = utils.PercentOf(decimal.NewFromInt(int64(positiveMonths)), decimal.NewFromInt(int64(len(months))), 2)
	}

	m.EquityCurve = buildEquityCurve(dailyPnL)
	m.MaxDrawdown, m.MaxDrawdownPercent = maxDrawdown(m.EquityCurve)
	return m
}

func buildEquityCurve(dailyPnL map[string]decimal.Decimal) []models.EquityPoint {
	dates := make([]string, 0, len(dailyPnL))
	for date := range dailyPnL {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	curve := make([]models.EquityPoint, 0, len(dates))
	cumulative := decimal.Zero
	for _, date := range dates {
		cumulative = cumulative.Add(dailyPnL[date])
		curve = append(curve, models.EquityPoint{Date: date, PnL: dailyPnL[date], Cumulative: cumulative})
	}
	return curve
}

// maxDrawdown measures the deepest fall of the cumulative curve below its running peak.
// The curve starts from zero; the percentage is relative to the peak it fell from.
func maxDrawdown(curve []models.EquityPoint) (decimal.Decimal, decimal.Decimal) {
	peak := decimal.Zero
	worst, worstPct := decimal.Zero, decimal.Zero
	for _, point := range curve {
		if point.Cumulative.GreaterThan(peak) {
			peak = point.Cumulative
		}
		drawdown := peak.Sub(point.Cumulative)
		if drawdown.GreaterThan(worst) {
			worst = drawdown
			worstPct = utils.PercentOf(drawdown, peak, 2)
		}
	}
	return worst, worstPct
}
