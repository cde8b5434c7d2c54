package processors

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradejournal/backend/src/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func stock(symbol string) models.InstrumentKey {
	return models.InstrumentKey{Symbol: symbol, Type: models.InstrumentStock}
}

func row(line int, date string, key models.InstrumentKey, opening bool, dir models.Direction, qty, price string) models.TransactionRow {
	action := "YOU SOLD CLOSING TRANSACTION"
	switch {
	case opening && dir == models.Long:
		action = "YOU BOUGHT OPENING TRANSACTION"
	case opening:
		action = "YOU SOLD OPENING TRANSACTION"
	case dir == models.Long:
		action = "YOU BOUGHT CLOSING TRANSACTION"
	}
	return models.TransactionRow{
		Line: line, Date: date, Action: action, Symbol: key.Symbol, Key: key,
		Opening: opening, Direction: dir, Quantity: dec(qty), Price: dec(price),
		Commission: decimal.Zero, Fees: decimal.Zero,
	}
}

func assertRemainingInvariant(t *testing.T, positions []models.Position) {
	t.Helper()
	for _, p := range positions {
		assert.True(t, p.RemainingQuantity.Equal(p.OpenQuantity.Sub(p.ExitedQuantity())), "remaining of %s", p.Instrument)
		assert.True(t, p.RemainingQuantity.Sign() >= 0)
		assert.Equal(t, models.DeriveStatus(p.OpenQuantity, p.RemainingQuantity), p.Status)
	}
}

func TestReconcileFullClose(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-01-02", stock("AAPL"), true, models.Long, "10", "150"),
		row(3, "2024-01-10", stock("AAPL"), false, models.Short, "-10", "160"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	require.Len(t, result.Positions, 1)
	assert.Empty(t, result.Issues)
	p := result.Positions[0]
	assert.Equal(t, models.StatusClosed, p.Status)
	assert.True(t, p.RemainingQuantity.IsZero())
	require.Len(t, p.Exits, 1)
	assert.Equal(t, "100", p.Exits[0].PnL.String())
	assert.Equal(t, "6.67", p.Exits[0].PnLPercent.StringFixed(2))
	assert.True(t, p.RealizedPnL.Equal(dec("100")))
	assertRemainingInvariant(t, result.Positions)
}

func TestReconcilePartialClose(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-02-01", stock("MSFT"), true, models.Long, "20", "400"),
		row(3, "2024-02-05", stock("MSFT"), false, models.Short, "-8", "410"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	require.Len(t, result.Positions, 1)
	p := result.Positions[0]
	assert.Equal(t, models.StatusPartiallyClosed, p.Status)
	assert.Equal(t, "12", p.RemainingQuantity.String())
	assert.Equal(t, "80", p.Exits[0].PnL.String())
	assertRemainingInvariant(t, result.Positions)
}

func TestReconcileOrphanedExit(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-03-01", stock("NVDA"), false, models.Short, "-5", "900"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	assert.Empty(t, result.Positions)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, models.IssueOrphanedExit, result.Issues[0].Kind)
	assert.Equal(t, 2, result.Issues[0].Line)
}

func TestReconcileExitExceedsRemaining(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-03-01", stock("TSLA"), true, models.Long, "5", "200"),
		row(3, "2024-03-02", stock("TSLA"), false, models.Short, "-8", "210"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	require.Len(t, result.Positions, 1)
	p := result.Positions[0]
	assert.Equal(t, "5", p.RemainingQuantity.String())
	assert.Equal(t, models.StatusOpen, p.Status)
	assert.Empty(t, p.Exits)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, models.IssueExitExceedsRemaining, result.Issues[0].Kind)
}

func TestReconcileReopenWhileOpen(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-04-01", stock("AMD"), true, models.Long, "10", "100"),
		row(3, "2024-04-02", stock("AMD"), true, models.Long, "5", "110"),
		row(4, "2024-04-03", stock("AMD"), false, models.Short, "-10", "120"),
		row(5, "2024-04-04", stock("AMD"), true, models.Long, "3", "115"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	require.Len(t, result.Issues, 1)
	assert.Equal(t, models.IssueReopenWhileOpen, result.Issues[0].Kind)
	assert.Equal(t, 3, result.Issues[0].Line)

	require.Len(t, result.Positions, 2)
	assert.Equal(t, models.StatusClosed, result.Positions[0].Status)
	assert.Equal(t, "10", result.Positions[0].OpenQuantity.String())
	assert.Equal(t, models.StatusOpen, result.Positions[1].Status)
	assert.Equal(t, "2024-04-04", result.Positions[1].OpenDate)
}

func TestReconcileShortOption(t *testing.T) {
	put := models.InstrumentKey{Symbol: "SPY", Type: models.InstrumentOption, Right: models.RightPut, Strike: dec("575"), Expiration: "2024-11-15"}
	rows := []models.TransactionRow{
		row(2, "2024-11-01", put, true, models.Short, "-2", "3.25"),
		row(3, "2024-11-08", put, false, models.Long, "1", "1.00"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	require.Len(t, result.Positions, 1)
	p := result.Positions[0]
	assert.Equal(t, models.Short, p.Direction)
	assert.Equal(t, models.StatusPartiallyClosed, p.Status)
	assert.Equal(t, "2.25", p.Exits[0].PnL.String())
	assert.Equal(t, "69.23", p.Exits[0].PnLPercent.StringFixed(2))
}

func TestReconcileSortsByDateKeepingFileOrder(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-05-03", stock("AAPL"), false, models.Short, "-1", "190"),
		row(3, "2024-05-01", stock("MSFT"), true, models.Long, "1", "400"),
		row(4, "2024-05-01", stock("AAPL"), true, models.Long, "1", "180"),
	}

	result := NewPositionReconciler().Reconcile(rows, nil)

	assert.Empty(t, result.Issues, "closing row dated after its opening must match even when listed first")
	require.Len(t, result.Positions, 2)
	assert.Equal(t, "MSFT", result.Positions[0].Instrument.Symbol)
	assert.Equal(t, "AAPL", result.Positions[1].Instrument.Symbol)
	assert.Equal(t, models.StatusClosed, result.Positions[1].Status)
}

func TestReconcileIsIdempotent(t *testing.T) {
	rows := []models.TransactionRow{
		row(2, "2024-01-02", stock("AAPL"), true, models.Long, "10", "150"),
		row(3, "2024-01-05", stock("AAPL"), false, models.Short, "-4", "155"),
		row(4, "2024-01-06", stock("IBM"), false, models.Short, "-4", "155"),
	}
	reconciler := NewPositionReconciler()

	first := reconciler.Reconcile(rows, nil)
	second := reconciler.Reconcile(rows, nil)

	assert.Equal(t, first, second)
}

func TestReconcileSeededPositions(t *testing.T) {
	seed := []models.Position{
		{
			ID: 7, Instrument: stock("AAPL"), Direction: models.Long, OpenDate: "2023-12-01",
			OpenQuantity: dec("10"), OpenPrice: dec("150"), RemainingQuantity: dec("10"),
			Status: models.StatusOpen, RealizedPnL: decimal.Zero, Exits: []models.Exit{},
		},
		{
			ID: 8, Instrument: stock("KO"), Direction: models.Long, OpenDate: "2023-12-02",
			OpenQuantity: dec("10"), OpenPrice: dec("60"), RemainingQuantity: dec("10"),
			Status: models.StatusOpen, RealizedPnL: decimal.Zero, Exits: []models.Exit{},
		},
	}
	rows := []models.TransactionRow{
		row(2, "2024-01-10", stock("AAPL"), false, models.Short, "-10", "160"),
	}

	result := NewPositionReconciler().Reconcile(rows, seed)

	require.Len(t, result.Positions, 1, "untouched seeded positions are not returned")
	p := result.Positions[0]
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, models.StatusClosed, p.Status)
	assert.Empty(t, seed[0].Exits, "seed must not be mutated")
	assert.Equal(t, "10", seed[0].RemainingQuantity.String())
}

func TestCalculateExitPnLZeroBasis(t *testing.T) {
	pnl, pct := CalculateExitPnL(decimal.Zero, dec("1.5"), dec("2"), models.Long)
	assert.Equal(t, "3", pnl.String())
	assert.True(t, pct.IsZero())
}
