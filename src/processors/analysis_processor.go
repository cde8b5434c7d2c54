// backend/src/processors/analysis_processor.go
package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

type analysisProcessorImpl struct{}

func NewAnalysisProcessor() AnalysisProcessor {
	return &analysisProcessorImpl{}
}

// Analyze expects daily closes; the input order does not matter.
func (p *analysisProcessorImpl) Analyze(ticker string, prices []models.PricePoint) models.StockAnalysis {
	analysis := models.StockAnalysis{
		Ticker:              ticker,
		LastClose:           decimal.Zero,
		High52Week:          decimal.Zero,
		Low52Week:           decimal.Zero,
		DistanceFromHighPct: decimal.Zero,
		DataPoints:          len(prices),
	}
	if len(prices) == 0 {
		return analysis
	}

	sorted := make([]models.PricePoint, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	last := sorted[len(sorted)-1]
	analysis.LastClose = last.Close
	analysis.LastDate = last.Date

	lastDate, ok := utils.ParseISODate(last.Date)
	if !ok {
		return analysis
	}
	yearAgo := lastDate.AddDate(-1, 0, 0).Format(utils.ISODate)

	analysis.High52Week, analysis.Low52Week = last.Close, last.Close
	for _, point := range sorted {
		if point.Date < yearAgo {
			continue
		}
		if point.Close.GreaterThan(analysis.High52Week) {
			analysis.High52Week = point.Close
		}
		if point.Close.LessThan(analysis.Low52Week) {
			analysis.Low52Week = point.Close
		}
	}

	analysis.SMA50 = simpleMovingAverage(sorted, 50)
	analysis.SMA200 = simpleMovingAverage(sorted, 200)

	if base, ok := closeOnOrBefore(sorted, lastDate.AddDate(-1, 0, 0)); ok && !base.IsZero() {
		analysis.ChangeOneYearPct = decimal.NewNullDecimal(utils.PercentOf(last.Close.Sub(base), base, 2))
	}
	analysis.DistanceFromHighPct = utils.PercentOf(last.Close.Sub(analysis.High52Week), analysis.High52Week, 2)
	return analysis
}

func simpleMovingAverage(sorted []models.PricePoint, window int) decimal.NullDecimal {
	if len(sorted) < window {
		return decimal.NullDecimal{}
	}
	sum := decimal.Zero
	for _, point := range sorted[len(sorted)-window:] {
		sum = sum.Add(point.Close)
	}
	return decimal.NewNullDecimal(sum.DivRound(decimal.NewFromInt(int64(window)), 4))
}

// closeOnOrBefore returns the last close dated on or before target.
func closeOnOrBefore(sorted []models.PricePoint, target time.Time) (decimal.Decimal, bool) {
	cutoff := target.Format(utils.ISODate)
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].Date > cutoff })
	if idx == 0 {
		return decimal.Zero, false
	}
	return sorted[idx-1].Close, true
}
