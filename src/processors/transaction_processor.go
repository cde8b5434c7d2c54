// backend/src/processors/transaction_processor.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/username/tradejournal/backend/src/models"
)

// TransactionProcessor enriches parsed rows with data that is not source-specific.
type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process assigns each row its duplicate-detection hash.
// Identical lines inside one file get distinct hashes through their occurrence index.
func (p *TransactionProcessor) Process(rows []models.TransactionRow) []models.TransactionRow {
	processed := make([]models.TransactionRow, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		occurrence := seen[row.Raw]
		seen[row.Raw] = occurrence + 1
		row.Hash = generateHash(row.Raw, occurrence)
		processed[i] = row
	}
	return processed
}

// generateHash creates a unique hash for the row based on its raw text.
func generateHash(rawLine string, occurrence int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", rawLine, occurrence)))
	return hex.EncodeToString(hash[:])
}
