package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE fmp_fcf_history (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE fmp_quote (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE advisor_scenarios (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
`

type testPayload struct {
	Symbol string  `msgpack:"symbol"`
	Price  float64 `msgpack:"price"`
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestStoreAndGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	stored := testPayload{Symbol: "AAPL", Price: 123.45}
	err := repo.Store(TableFMPQuote, "AAPL", stored, time.Hour)
	require.NoError(t, err)

	var got testPayload
	found, err := repo.GetIfFresh(TableFMPQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, stored, got)
}

func TestStoreOverwritesExisting(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableFMPQuote, "AAPL", testPayload{Symbol: "AAPL", Price: 100}, time.Hour))
	require.NoError(t, repo.Store(TableFMPQuote, "AAPL", testPayload{Symbol: "AAPL", Price: 200}, time.Hour))

	var got testPayload
	found, err := repo.GetIfFresh(TableFMPQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 200.0, got.Price)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fmp_quote").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetIfFreshSkipsExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	// Negative TTL makes the entry already expired
	require.NoError(t, repo.Store(TableFMPQuote, "AAPL", testPayload{Symbol: "AAPL", Price: 100}, -time.Hour))

	var got testPayload
	found, err := repo.GetIfFresh(TableFMPQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetReturnsStaleData(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableFMPQuote, "AAPL", testPayload{Symbol: "AAPL", Price: 100}, -time.Hour))

	// Fresh lookup misses, stale fallback still has the data
	var got testPayload
	found, err := repo.GetIfFresh(TableFMPQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.Get(TableFMPQuote, "AAPL", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 100.0, got.Price)
}

func TestGetMissingKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	var got testPayload
	found, err := repo.Get(TableFMPQuote, "NONEXISTENT", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.GetIfFresh(TableFMPQuote, "NONEXISTENT", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableAdvisorScenarios, "AAPL", testPayload{Symbol: "AAPL"}, time.Hour))
	require.NoError(t, repo.Delete(TableAdvisorScenarios, "AAPL"))

	var got testPayload
	found, err := repo.Get(TableAdvisorScenarios, "AAPL", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableFMPFCFHistory, "AAPL:annual", testPayload{Symbol: "AAPL"}, -time.Hour))
	require.NoError(t, repo.Store(TableFMPFCFHistory, "MSFT:annual", testPayload{Symbol: "MSFT"}, -time.Hour))
	require.NoError(t, repo.Store(TableFMPFCFHistory, "GOOG:annual", testPayload{Symbol: "GOOG"}, time.Hour))

	deleted, err := repo.DeleteExpired(TableFMPFCFHistory)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fmp_fcf_history").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDeleteExpiredEmptyTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	deleted, err := repo.DeleteExpired(TableFMPFCFHistory)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableFMPQuote, "AAPL", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store(TableFMPFCFHistory, "AAPL:annual", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store(TableFMPFCFHistory, "AAPL:quarterly", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store(TableAdvisorScenarios, "AAPL", testPayload{}, time.Hour))

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(1), results[TableFMPQuote])
	assert.Equal(t, int64(2), results[TableFMPFCFHistory])
	assert.Equal(t, int64(0), results[TableAdvisorScenarios])
}

func TestInvalidTableName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	err := repo.Store("quotes; DROP TABLE fmp_quote", "AAPL", testPayload{}, time.Hour)
	assert.Error(t, err)

	var got testPayload
	_, err = repo.Get("unknown_table", "AAPL", &got)
	assert.Error(t, err)

	_, err = repo.GetIfFresh("unknown_table", "AAPL", &got)
	assert.Error(t, err)

	err = repo.Delete("unknown_table", "AAPL")
	assert.Error(t, err)

	_, err = repo.DeleteExpired("unknown_table")
	assert.Error(t, err)
}

func TestValidateTable(t *testing.T) {
	// All tables in AllTables should be valid
	for _, table := range AllTables {
		t.Run(table, func(t *testing.T) {
			err := validateTable(table)
			assert.NoError(t, err)
		})
	}
}
