package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/models"
)

// hashLookupChunk bounds the IN list of a single duplicate lookup.
const hashLookupChunk = 500

// PositionFilter narrows ListPositions. Empty fields match everything; From and To bound the open date.
type PositionFilter struct {
	Status         string
	Symbol         string
	InstrumentType string
	From           string
	To             string
	OpenOnly       bool
}

type positionRow struct {
	ID                int64           `db:"id"`
	UserID            int64           `db:"user_id"`
	Symbol            string          `db:"symbol"`
	InstrumentType    string          `db:"instrument_type"`
	OptionRight       string          `db:"option_right"`
	Strike            string          `db:"strike"`
	Expiration        string          `db:"expiration"`
	Direction         int             `db:"direction"`
	OpenDate          string          `db:"open_date"`
	OpenAction        string          `db:"open_action"`
	OpenQuantity      decimal.Decimal `db:"open_quantity"`
	OpenPrice         decimal.Decimal `db:"open_price"`
	RemainingQuantity decimal.Decimal `db:"remaining_quantity"`
	Commission        decimal.Decimal `db:"commission"`
	Fees              decimal.Decimal `db:"fees"`
	AccountType       string          `db:"account_type"`
	Description       string          `db:"description"`
	Status            string          `db:"status"`
	RealizedPnL       decimal.Decimal `db:"realized_pnl"`
	Notes             string          `db:"notes"`
	Tags              string          `db:"tags"`
	SourceLine        int             `db:"source_line"`
}

type exitRow struct {
	ID         int64           `db:"id"`
	PositionID int64           `db:"position_id"`
	ExitDate   string          `db:"exit_date"`
	Price      decimal.Decimal `db:"price"`
	Quantity   decimal.Decimal `db:"quantity"`
	Commission decimal.Decimal `db:"commission"`
	Fees       decimal.Decimal `db:"fees"`
	PnL        decimal.Decimal `db:"pnl"`
	PnLPercent decimal.Decimal `db:"pnl_percent"`
	SourceLine int             `db:"source_line"`
}

// ImportRecord is one row of the import history.
type ImportRecord struct {
	ID               int64           `db:"id" json:"id"`
	UserID           int64           `db:"user_id" json:"-"`
	Source           string          `db:"source" json:"source"`
	Filename         string          `db:"filename" json:"filename"`
	FileSize         int64           `db:"file_size" json:"file_size"`
	RowCount         int             `db:"row_count" json:"row_count"`
	DuplicateRows    int             `db:"duplicate_rows" json:"duplicate_rows"`
	SkippedRows      int             `db:"skipped_rows" json:"skipped_rows"`
	NewPositions     int             `db:"new_positions" json:"new_positions"`
	UpdatedPositions int             `db:"updated_positions" json:"updated_positions"`
	IssueCount       int             `db:"issue_count" json:"issue_count"`
	Issues           json.RawMessage `db:"issues_json" json:"issues"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

const positionColumns = `id, user_id, symbol, instrument_type, option_right, strike, expiration, direction,
	open_date, open_action, open_quantity, open_price, remaining_quantity, commission, fees,
	account_type, description, status, realized_pnl, notes, tags, source_line`

func (r positionRow) toPosition() models.Position {
	key := models.InstrumentKey{
		Symbol:     r.Symbol,
		Type:       models.InstrumentType(r.InstrumentType),
		Right:      models.OptionRight(r.OptionRight),
		Expiration: r.Expiration,
	}
	if r.Strike != "" {
		key.Strike, _ = decimal.NewFromString(r.Strike)
	}
	return models.Position{
		ID:                r.ID,
		UserID:            r.UserID,
		Instrument:        key,
		Direction:         models.Direction(r.Direction),
		OpenDate:          r.OpenDate,
		OpenAction:        r.OpenAction,
		OpenQuantity:      r.OpenQuantity,
		OpenPrice:         r.OpenPrice,
		RemainingQuantity: r.RemainingQuantity,
		Commission:        r.Commission,
		Fees:              r.Fees,
		AccountType:       r.AccountType,
		Description:       r.Description,
		Exits:             []models.Exit{},
		Status:            models.PositionStatus(r.Status),
		RealizedPnL:       r.RealizedPnL,
		Notes:             r.Notes,
		Tags:              decodeTags(r.Tags),
		SourceLine:        r.SourceLine,
	}
}

func (r exitRow) toExit() models.Exit {
	return models.Exit{
		ID:         r.ID,
		Date:       r.ExitDate,
		Price:      r.Price,
		Quantity:   r.Quantity,
		Commission: r.Commission,
		Fees:       r.Fees,
		PnL:        r.PnL,
		PnLPercent: r.PnLPercent,
		SourceLine: r.SourceLine,
	}
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(s string) []string {
	tags := []string{}
	if s == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return []string{}
	}
	return tags
}

func strikeText(k models.InstrumentKey) string {
	if k.Type != models.InstrumentOption {
		return ""
	}
	return k.Strike.String()
}

// ListPositions returns the user's positions with their exits, ordered by open date.
func ListPositions(db *sql.DB, userID int64, filter PositionFilter) ([]models.Position, error) {
	dbx := sqlx.NewDb(db, "sqlite")

	conditions := []string{"user_id = ?"}
	args := []interface{}{userID}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.OpenOnly {
		conditions = append(conditions, "status != ?")
		args = append(args, string(models.StatusClosed))
	}
	if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if filter.InstrumentType != "" {
		conditions = append(conditions, "instrument_type = ?")
		args = append(args, filter.InstrumentType)
	}
	if filter.From != "" {
		conditions = append(conditions, "open_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, "open_date <= ?")
		args = append(args, filter.To)
	}

	var rows []positionRow
	query := `SELECT ` + positionColumns + ` FROM positions WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY open_date ASC, id ASC`
	if err := dbx.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing positions for user %d: %w", userID, err)
	}

	positions := make([]models.Position, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, r := range rows {
		index[r.ID] = len(positions)
		positions = append(positions, r.toPosition())
	}
	if len(positions) == 0 {
		return positions, nil
	}

	var exits []exitRow
	err := dbx.Select(&exits, `
		SELECT e.id, e.position_id, e.exit_date, e.price, e.quantity, e.commission, e.fees, e.pnl, e.pnl_percent, e.source_line
		FROM position_exits e JOIN positions p ON p.id = e.position_id
		WHERE p.user_id = ?
		ORDER BY e.position_id, e.exit_date, e.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing exits for user %d: %w", userID, err)
	}
	for _, e := range exits {
		if i, ok := index[e.PositionID]; ok {
			positions[i].Exits = append(positions[i].Exits, e.toExit())
		}
	}
	return positions, nil
}

// GetOpenPositions returns the OPEN and PARTIALLY_CLOSED positions of a user.
func GetOpenPositions(db *sql.DB, userID int64) ([]models.Position, error) {
	return ListPositions(db, userID, PositionFilter{OpenOnly: true})
}

// GetPosition loads one position with its exits. It returns sql.ErrNoRows when the
// position does not exist or belongs to another user.
func GetPosition(db *sql.DB, userID, positionID int64) (*models.Position, error) {
	dbx := sqlx.NewDb(db, "sqlite")

	var row positionRow
	if err := dbx.Get(&row, `SELECT `+positionColumns+` FROM positions WHERE id = ? AND user_id = ?`, positionID, userID); err != nil {
		return nil, err
	}
	position := row.toPosition()

	var exits []exitRow
	err := dbx.Select(&exits, `
		SELECT id, position_id, exit_date, price, quantity, commission, fees, pnl, pnl_percent, source_line
		FROM position_exits WHERE position_id = ? ORDER BY exit_date, id`, positionID)
	if err != nil {
		return nil, err
	}
	for _, e := range exits {
		position.Exits = append(position.Exits, e.toExit())
	}
	return &position, nil
}

// SavePositions persists reconciled positions inside tx. Positions without an ID are
// inserted; existing ones get their quantities and status refreshed. Exits without an
// ID are inserted. Assigned IDs are written back into positions.
func SavePositions(tx *sql.Tx, userID int64, positions []models.Position) (created, updated int, err error) {
	insertPosition, err := tx.Prepare(`
		INSERT INTO positions (user_id, symbol, instrument_key, instrument_type, option_right, strike, expiration, direction,
			open_date, open_action, open_quantity, open_price, remaining_quantity, commission, fees,
			account_type, description, status, realized_pnl, notes, tags, source_line, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, err
	}
	defer insertPosition.Close()

	updatePosition, err := tx.Prepare(`
		UPDATE positions SET remaining_quantity = ?, status = ?, realized_pnl = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	if err != nil {
		return 0, 0, err
	}
	defer updatePosition.Close()

	insertExit, err := tx.Prepare(`
		INSERT INTO position_exits (position_id, exit_date, price, quantity, commission, fees, pnl, pnl_percent, source_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, err
	}
	defer insertExit.Close()

	now := time.Now()
	for i := range positions {
		p := &positions[i]
		if p.ID == 0 {
			res, err := insertPosition.Exec(
				userID, p.Instrument.Symbol, p.Instrument.Key(), string(p.Instrument.Type), string(p.Instrument.Right),
				strikeText(p.Instrument), p.Instrument.Expiration, int(p.Direction),
				p.OpenDate, p.OpenAction, p.OpenQuantity, p.OpenPrice, p.RemainingQuantity, p.Commission, p.Fees,
				p.AccountType, p.Description, string(p.Status), p.RealizedPnL, p.Notes, encodeTags(p.Tags), p.SourceLine,
				now, now,
			)
			if err != nil {
				return created, updated, fmt.Errorf("inserting position %s: %w", p.Instrument, err)
			}
			if p.ID, err = res.LastInsertId(); err != nil {
				return created, updated, err
			}
			created++
		} else {
			res, err := updatePosition.Exec(p.RemainingQuantity, string(p.Status), p.RealizedPnL, now, p.ID, userID)
			if err != nil {
				return created, updated, fmt.Errorf("updating position %d: %w", p.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return created, updated, fmt.Errorf("updating position %d: %w", p.ID, sql.ErrNoRows)
			}
			updated++
		}
		p.UserID = userID

		for j := range p.Exits {
			e := &p.Exits[j]
			if e.ID != 0 {
				continue
			}
			res, err := insertExit.Exec(p.ID, e.Date, e.Price, e.Quantity, e.Commission, e.Fees, e.PnL, e.PnLPercent, e.SourceLine)
			if err != nil {
				return created, updated, fmt.Errorf("inserting exit for position %d: %w", p.ID, err)
			}
			if e.ID, err = res.LastInsertId(); err != nil {
				return created, updated, err
			}
		}
	}
	return created, updated, nil
}

// ExistingRowHashes reports which of hashes were already imported by the user.
func ExistingRowHashes(db *sql.DB, userID int64, hashes []string) (map[string]bool, error) {
	dbx := sqlx.NewDb(db, "sqlite")
	existing := make(map[string]bool)

	for start := 0; start < len(hashes); start += hashLookupChunk {
		end := min(start+hashLookupChunk, len(hashes))
		query, args, err := sqlx.In(`SELECT hash FROM imported_rows WHERE user_id = ? AND hash IN (?)`, userID, hashes[start:end])
		if err != nil {
			return nil, err
		}
		var found []string
		if err := dbx.Select(&found, dbx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("looking up imported rows: %w", err)
		}
		for _, h := range found {
			existing[h] = true
		}
	}
	return existing, nil
}

// InsertRowHashes records the hashes of rows consumed by an import.
func InsertRowHashes(tx *sql.Tx, userID, importID int64, hashes []string) error {
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO imported_rows (user_id, hash, import_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, h := range hashes {
		if _, err := stmt.Exec(userID, h, importID); err != nil {
			return err
		}
	}
	return nil
}

func CreateImportRecord(tx *sql.Tx, record *ImportRecord) error {
	if len(record.Issues) == 0 {
		record.Issues = json.RawMessage("[]")
	}
	record.CreatedAt = time.Now()
	res, err := tx.Exec(`
		INSERT INTO imports (user_id, source, filename, file_size, row_count, duplicate_rows, skipped_rows,
			new_positions, updated_positions, issue_count, issues_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID, record.Source, record.Filename, record.FileSize, record.RowCount, record.DuplicateRows,
		record.SkippedRows, record.NewPositions, record.UpdatedPositions, record.IssueCount, string(record.Issues),
		record.CreatedAt,
	)
	if err != nil {
		return err
	}
	record.ID, err = res.LastInsertId()
	return err
}

// ListImports returns the import history of a user, newest first.
func ListImports(db *sql.DB, userID int64) ([]ImportRecord, error) {
	records := []ImportRecord{}
	err := sqlx.NewDb(db, "sqlite").Select(&records, `
		SELECT id, user_id, source, filename, file_size, row_count, duplicate_rows, skipped_rows,
			new_positions, updated_positions, issue_count, issues_json, created_at
		FROM imports WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	return records, err
}

func IncrementImportCount(tx *sql.Tx, userID int64) error {
	_, err := tx.Exec(`UPDATE users SET import_count = import_count + 1, updated_at = ? WHERE id = ?`, time.Now(), userID)
	return err
}

// UpdatePositionJournal replaces the notes and tags of a position.
func UpdatePositionJournal(db *sql.DB, userID, positionID int64, notes string, tags []string) error {
	res, err := db.Exec(`UPDATE positions SET notes = ?, tags = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		notes, encodeTags(tags), time.Now(), positionID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeletePosition removes a single position; its exits cascade.
func DeletePosition(db *sql.DB, userID, positionID int64) error {
	res, err := db.Exec(`DELETE FROM positions WHERE id = ? AND user_id = ?`, positionID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAllPositions wipes the user's journal together with the import history and
// duplicate hashes, so the same files can be imported again.
func DeleteAllPositions(db *sql.DB, userID int64) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM positions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	if _, err := tx.Exec(`DELETE FROM imported_rows WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM imports WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

func UserHasPositions(db *sql.DB, userID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM positions WHERE user_id = ?)`, userID).Scan(&exists)
	return exists, err
}
