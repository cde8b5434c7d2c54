// backend/src/processors/fee_processor.go
package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

type feeProcessorImpl struct{}

func NewFeeProcessor() FeeProcessor {
	return &feeProcessorImpl{}
}

// Process emits one detail per opening and per exit that was charged anything.
func (p *feeProcessorImpl) Process(positions []models.Position) ([]models.FeeDetail, models.FeeSummary) {
	feeDetails := []models.FeeDetail{}
	summary := models.FeeSummary{
		TotalCommission: decimal.Zero,
		TotalFees:       decimal.Zero,
		Total:           decimal.Zero,
		ByYear:          make(map[string]decimal.Decimal),
	}

	add := func(detail models.FeeDetail) {
		detail.Total = detail.Commission.Add(detail.Fees)
		if detail.Total.IsZero() {
			return
		}
		feeDetails = append(feeDetails, detail)
		summary.TotalCommission = summary.TotalCommission.Add(detail.Commission)
		summary.TotalFees = summary.TotalFees.Add(detail.Fees)
		summary.Total = summary.Total.Add(detail.Total)
		year := utils.YearOf(detail.Date)
		summary.ByYear[year] = summary.ByYear[year].Add(detail.Total)
	}

	for _, pos := range positions {
		symbol := pos.Instrument.String()
		add(models.FeeDetail{
			PositionID: pos.ID,
			Date:       pos.OpenDate,
			Symbol:     symbol,
			Category:   "Open",
			Commission: pos.Commission,
			Fees:       pos.Fees,
		})
		for _, exit := range pos.Exits {
			add(models.FeeDetail{
				PositionID: pos.ID,
				Date:       exit.Date,
				Symbol:     symbol,
				Category:   "Exit",
				Commission: exit.Commission,
				Fees:       exit.Fees,
			})
		}
	}

	sort.SliceStable(feeDetails, func(i, j int) bool {
		return feeDetails[i].Date < feeDetails[j].Date
	})
	return feeDetails, summary
}
