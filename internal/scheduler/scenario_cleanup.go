package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// ExpiredDeleter removes expired rows. Implemented by the scenarios
// repository.
type ExpiredDeleter interface {
	DeleteExpired(now time.Time) (int64, error)
}

// ScenarioCleanupJob prunes expired scenario recommendations from
// research.db.
type ScenarioCleanupJob struct {
	repo ExpiredDeleter
	log  zerolog.Logger
}

// NewScenarioCleanupJob creates a new scenario cleanup job
func NewScenarioCleanupJob(repo ExpiredDeleter, log zerolog.Logger) *ScenarioCleanupJob {
	return &ScenarioCleanupJob{
		repo: repo,
		log:  log.With().Str("job", "scenario_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *ScenarioCleanupJob) Name() string {
	return "scenario_cleanup"
}

// Run deletes expired recommendations.
func (j *ScenarioCleanupJob) Run() error {
	deleted, err := j.repo.DeleteExpired(time.Now().UTC())
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Expired recommendations removed")
	}

	return nil
}
