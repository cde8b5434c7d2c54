package fidelity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
)

var (
	optionDescriptionRe = regexp.MustCompile(`\b(PUT|CALL)\b`)
	// Optional sign, underlying, YYMMDD, right, strike. Example: -SPY241115P575
	optionSymbolRe = regexp.MustCompile(`^[-+]?([A-Z][A-Z.]*)(\d{2})(\d{2})(\d{2})([CP])(\d+(?:\.\d+)?)$`)
)

// ClassifySymbol derives the instrument key of a row from its symbol and description.
// Rows whose description mentions PUT or CALL must carry an option code symbol.
func ClassifySymbol(symbol, description string) (models.InstrumentKey, error) {
	symbol = strings.TrimSpace(symbol)
	if !optionDescriptionRe.MatchString(strings.ToUpper(description)) {
		if symbol == "" {
			return models.InstrumentKey{}, &models.SymbolClassificationError{Symbol: symbol, Description: description, Reason: "empty symbol"}
		}
		return models.InstrumentKey{Symbol: symbol, Type: models.InstrumentStock}, nil
	}

	m := optionSymbolRe.FindStringSubmatch(strings.ToUpper(symbol))
	if m == nil {
		return models.InstrumentKey{}, &models.SymbolClassificationError{Symbol: symbol, Description: description}
	}

	expiration := fmt.Sprintf("20%s-%s-%s", m[2], m[3], m[4])
	if _, err := time.Parse("2006-01-02", expiration); err != nil {
		return models.InstrumentKey{}, &models.SymbolClassificationError{Symbol: symbol, Description: description, Reason: "invalid expiration date " + expiration}
	}

	strike, err := decimal.NewFromString(m[6])
	if err != nil {
		return models.InstrumentKey{}, &models.SymbolClassificationError{Symbol: symbol, Description: description, Reason: "invalid strike"}
	}

	right := models.RightCall
	if m[5] == "P" {
		right = models.RightPut
	}

	return models.InstrumentKey{
		Symbol:     m[1],
		Type:       models.InstrumentOption,
		Right:      right,
		Strike:     strike,
		Expiration: expiration,
	}, nil
}
