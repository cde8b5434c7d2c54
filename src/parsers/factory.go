// backend/src/parsers/factory.go
package parsers

import (
	"fmt"
	"strings"

	"github.com/username/tradejournal/backend/src/parsers/fidelity"
)

const DefaultSource = "fidelity"

func GetParser(source string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", DefaultSource:
		return fidelity.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
