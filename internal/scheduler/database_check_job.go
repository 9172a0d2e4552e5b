package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
)

// walWarnFrames is the WAL size (in frames) above which a warning is logged.
const walWarnFrames = 1000

// DatabaseCheckJob verifies integrity of the SQLite databases and reports WAL growth.
type DatabaseCheckJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewDatabaseCheckJob creates a new DatabaseCheckJob. Nil databases are skipped.
func NewDatabaseCheckJob(log zerolog.Logger, dbs ...*database.DB) *DatabaseCheckJob {
	databases := make(map[string]*database.DB, len(dbs))
	for _, db := range dbs {
		if db != nil {
			databases[db.Name()] = db
		}
	}

	return &DatabaseCheckJob{
		databases: databases,
		log:       log.With().Str("job", "database_check").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseCheckJob) Name() string {
	return "database_check"
}

// Run checks every database in name order. Corruption is fatal for the run;
// a failed WAL checkpoint is only logged.
func (j *DatabaseCheckJob) Run(ctx context.Context) error {
	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db := j.databases[name]

		if err := checkIntegrity(ctx, db); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, walFrames, checkpointed int
		err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &walFrames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if walFrames > walWarnFrames {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", walFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", walFrames).
				Msg("Database OK")
		}
	}

	j.log.Info().Int("checked", len(names)).Msg("Database check completed")
	return nil
}

func checkIntegrity(ctx context.Context, db *database.DB) error {
	var result string
	if err := db.Conn().QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}
	return nil
}
