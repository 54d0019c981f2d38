package scenarios

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkaratzas/intrinsic/internal/clients/advisor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles CRUD operations for scenario recommendations.
// Database: research.db (scenario_recommendations table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new scenario recommendation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "scenarios").Logger(),
	}
}

// Save stores a recommendation and returns its UUID.
// Earlier recommendations for the same symbol are kept for history;
// Latest always returns the newest.
func (r *Repository) Save(rec Recommendation) (string, error) {
	if rec.UUID == "" {
		rec.UUID = uuid.New().String()
	}

	conservative, err := json.Marshal(rec.Conservative)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conservative rates: %w", err)
	}
	base, err := json.Marshal(rec.Base)
	if err != nil {
		return "", fmt.Errorf("failed to marshal base rates: %w", err)
	}
	optimistic, err := json.Marshal(rec.Optimistic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal optimistic rates: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO scenario_recommendations
		(uuid, symbol, reasoning, conservative_json, base_json, optimistic_json, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.UUID,
		rec.Symbol,
		rec.Reasoning,
		string(conservative),
		string(base),
		string(optimistic),
		rec.CreatedAt.Unix(),
		rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert recommendation: %w", err)
	}

	return rec.UUID, nil
}

// Latest returns the newest recommendation for a symbol, or nil if none exists.
func (r *Repository) Latest(symbol string) (*Recommendation, error) {
	row := r.db.QueryRow(`
		SELECT uuid, symbol, reasoning, conservative_json, base_json, optimistic_json, created_at, expires_at
		FROM scenario_recommendations
		WHERE symbol = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, symbol)

	rec, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation: %w", err)
	}
	return rec, nil
}

// GetByUUID returns a recommendation by its UUID, or nil if not found.
func (r *Repository) GetByUUID(id string) (*Recommendation, error) {
	row := r.db.QueryRow(`
		SELECT uuid, symbol, reasoning, conservative_json, base_json, optimistic_json, created_at, expires_at
		FROM scenario_recommendations
		WHERE uuid = ?
	`, id)

	rec, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation: %w", err)
	}
	return rec, nil
}

// DeleteExpired removes recommendations past their expiry.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM scenario_recommendations WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired recommendations: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecommendation(row rowScanner) (*Recommendation, error) {
	var rec Recommendation
	var conservative, base, optimistic string
	var createdAt, expiresAt int64

	err := row.Scan(&rec.UUID, &rec.Symbol, &rec.Reasoning, &conservative, &base, &optimistic, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conservative), &rec.Conservative); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conservative rates: %w", err)
	}
	if err := json.Unmarshal([]byte(base), &rec.Base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base rates: %w", err)
	}
	if err := json.Unmarshal([]byte(optimistic), &rec.Optimistic); err != nil {
		return nil, fmt.Errorf("failed to unmarshal optimistic rates: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	return &rec, nil
}

// fromScenarioSet builds a Recommendation from an advisor response.
func fromScenarioSet(set *advisor.ScenarioSet, now time.Time, ttl time.Duration) Recommendation {
	return Recommendation{
		Symbol:       set.Symbol,
		Reasoning:    set.Reasoning,
		Conservative: set.Conservative,
		Base:         set.Base,
		Optimistic:   set.Optimistic,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}
