package fundamentals

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// historySchema is created on open; history.db holds only synced
// fundamentals so it can be deleted and rebuilt from the provider.
const historySchema = `
CREATE TABLE IF NOT EXISTS fcf_history (
	symbol         TEXT NOT NULL,
	year           INTEGER NOT NULL,
	period         TEXT NOT NULL,
	free_cash_flow REAL,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (symbol, year, period)
);
CREATE INDEX IF NOT EXISTS idx_fcf_history_symbol ON fcf_history(symbol, period);
`

// OpenHistoryDB opens (and initializes) the fundamentals history database.
func OpenHistoryDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitSchema creates the history tables if they do not exist.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(historySchema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// HistoryDB provides access to persisted free cash flow history
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// UpsertRecords stores a batch of FCF records for a symbol, replacing
// any existing rows for the same (symbol, year, period).
func (h *HistoryDB) UpsertRecords(records []FCFRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO fcf_history (symbol, year, period, free_cash_flow, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, year, period) DO UPDATE SET
			free_cash_flow = excluded.free_cash_flow,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range records {
		var fcf interface{}
		if r.FreeCashFlow != nil {
			fcf = *r.FreeCashFlow
		}
		if _, err := stmt.Exec(r.Symbol, r.Year, r.Period, fcf, now); err != nil {
			return fmt.Errorf("failed to upsert record %s/%d: %w", r.Symbol, r.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	return nil
}

// GetRecords fetches stored FCF history for a symbol and period,
// newest year first.
func (h *HistoryDB) GetRecords(symbol, period string) ([]FCFRecord, error) {
	query := `
		SELECT symbol, year, period, free_cash_flow, updated_at
		FROM fcf_history
		WHERE symbol = ? AND period = ?
		ORDER BY year DESC
	`

	rows, err := h.db.Query(query, symbol, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query fcf history: %w", err)
	}
	defer rows.Close()

	var records []FCFRecord
	for rows.Next() {
		var r FCFRecord
		var fcf sql.NullFloat64

		if err := rows.Scan(&r.Symbol, &r.Year, &r.Period, &fcf, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fcf record: %w", err)
		}
		if fcf.Valid {
			r.FreeCashFlow = &fcf.Float64
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fcf history: %w", err)
	}

	return records, nil
}

// Symbols returns the distinct symbols with stored history, sorted.
func (h *HistoryDB) Symbols() ([]string, error) {
	rows, err := h.db.Query(`SELECT DISTINCT symbol FROM fcf_history ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// DeleteSymbol removes all stored history for a symbol.
func (h *HistoryDB) DeleteSymbol(symbol string) error {
	if _, err := h.db.Exec(`DELETE FROM fcf_history WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to delete history for %s: %w", symbol, err)
	}
	return nil
}
