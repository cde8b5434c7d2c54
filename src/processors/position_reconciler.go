// backend/src/processors/position_reconciler.go
package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
)

type positionReconcilerImpl struct{}

func NewPositionReconciler() PositionReconciler {
	return &positionReconcilerImpl{}
}

// lineage is the mutable state of one position while rows are applied to it.
type lineage struct {
	position models.Position
	seeded   bool
	touched  bool
}

// Reconcile applies rows in date order to the positions they open or close.
// seed holds positions that are still open from earlier imports; they are only
// returned when a row in this batch adds an exit to them.
func (r *positionReconcilerImpl) Reconcile(rows []models.TransactionRow, seed []models.Position) ReconcileResult {
	ordered := make([]models.TransactionRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date < ordered[j].Date
	})

	open := make(map[string]*lineage)
	var seen []*lineage
	var issues []models.ImportIssue

	for i, p := range seed {
		if p.RemainingQuantity.Sign() <= 0 {
			continue
		}
		key := p.Instrument.Key()
		if _, exists := open[key]; exists {
			continue
		}
		l := &lineage{position: clonePosition(p), seeded: true}
		l.position.Sequence = i - len(seed)
		open[key] = l
		seen = append(seen, l)
	}

	for i, row := range ordered {
		key := row.Key.Key()
		current := open[key]

		if row.Opening {
			if current != nil {
				issues = append(issues, models.NewImportIssue(&models.ReopenWhileOpenError{
					Line: row.Line, Key: row.Key, ExistingOpenDate: current.position.OpenDate,
				}))
				continue
			}
			l := &lineage{position: openPosition(row, i), touched: true}
			open[key] = l
			seen = append(seen, l)
			continue
		}

		if current == nil {
			issues = append(issues, models.NewImportIssue(&models.OrphanedExitError{Line: row.Line, Key: row.Key, Date: row.Date}))
			continue
		}

		quantity := row.Quantity.Abs()
		p := &current.position
		if quantity.GreaterThan(p.RemainingQuantity) {
			issues = append(issues, models.NewImportIssue(&models.ExitExceedsRemainingError{
				Line: row.Line, Key: row.Key, Requested: quantity, Remaining: p.RemainingQuantity,
			}))
			continue
		}

		pnl, pct := CalculateExitPnL(p.OpenPrice, row.Price, quantity, p.Direction)
		p.Exits = append(p.Exits, models.Exit{
			Date:       row.Date,
			Price:      row.Price,
			Quantity:   quantity,
			Commission: row.Commission.Abs(),
			Fees:       row.Fees.Abs(),
			PnL:        pnl,
			PnLPercent: pct,
			SourceLine: row.Line,
		})
		p.RemainingQuantity = p.RemainingQuantity.Sub(quantity)
		p.RealizedPnL = p.RealizedPnL.Add(pnl)
		p.Status = models.DeriveStatus(p.OpenQuantity, p.RemainingQuantity)
		current.touched = true

		if p.Status == models.StatusClosed {
			delete(open, key)
		}
	}

	positions := make([]models.Position, 0, len(seen))
	for _, l := range seen {
		if l.seeded && !l.touched {
			continue
		}
		positions = append(positions, l.position)
	}
	sort.SliceStable(positions, func(i, j int) bool {
		if positions[i].OpenDate != positions[j].OpenDate {
			return positions[i].OpenDate < positions[j].OpenDate
		}
		return positions[i].Sequence < positions[j].Sequence
	})
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Line < issues[j].Line
	})

	return ReconcileResult{Positions: positions, Issues: issues}
}

// CalculateExitPnL returns the realized P&L of closing quantity at exitPrice and its
// percentage of the opening cost of that quantity, rounded to two places.
func CalculateExitPnL(openPrice, exitPrice, quantity decimal.Decimal, direction models.Direction) (decimal.Decimal, decimal.Decimal) {
	pnl := exitPrice.Sub(openPrice).Mul(quantity).Mul(direction.Decimal())
	basis := openPrice.Mul(quantity)
	if basis.IsZero() {
		return pnl, decimal.Zero
	}
	return pnl, pnl.Mul(decimal.NewFromInt(100)).DivRound(basis, 2)
}

func openPosition(row models.TransactionRow, sequence int) models.Position {
	quantity := row.Quantity.Abs()
	return models.Position{
		Instrument:        row.Key,
		Direction:         row.Direction,
		OpenDate:          row.Date,
		OpenAction:        row.Action,
		OpenQuantity:      quantity,
		OpenPrice:         row.Price,
		RemainingQuantity: quantity,
		Commission:        row.Commission.Abs(),
		Fees:              row.Fees.Abs(),
		AccountType:       row.AccountType,
		Description:       row.Description,
		Exits:             []models.Exit{},
		Status:            models.DeriveStatus(quantity, quantity),
		RealizedPnL:       decimal.Zero,
		Tags:              []string{},
		SourceLine:        row.Line,
		Sequence:          sequence,
	}
}

func clonePosition(p models.Position) models.Position {
	p.Exits = append([]models.Exit{}, p.Exits...)
	p.Tags = append([]string{}, p.Tags...)
	return p
}
