// Package postgres persists analysis runs. Persistence is optional; the
// pipeline itself never touches a database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"timecourse/domain/core"
	"timecourse/domain/interval"
	"timecourse/domain/timeseries"
	apperrors "timecourse/internal/errors"
	"timecourse/ports"
)

// ResultRepositoryImpl implements ports.ResultRepository for PostgreSQL
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) *ResultRepositoryImpl {
	return &ResultRepositoryImpl{db: db}
}

var _ ports.ResultRepository = (*ResultRepositoryImpl)(nil)

// Connect opens a connection pool and verifies it.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, apperrors.Wrap(err, "opening database connection")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "pinging database")
	}
	return db, nil
}

// EnsureSchema creates the result tables when they do not exist.
func (r *ResultRepositoryImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			feature TEXT NOT NULL,
			permutations INT NOT NULL,
			fit JSONB NOT NULL,
			null_areas JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS analysis_intervals (
			run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			ordinal INT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time DOUBLE PRECISION NOT NULL,
			area DOUBLE PRECISION,
			p_value DOUBLE PRECISION,
			null_summary JSONB,
			PRIMARY KEY (run_id, ordinal)
		);
	`)
	if err != nil {
		return apperrors.Wrap(err, "ensuring result schema")
	}
	return nil
}

// SaveResult stores the run metadata and one row per candidate interval.
func (r *ResultRepositoryImpl) SaveResult(ctx context.Context, feature core.FeatureKey, result *interval.Result) error {
	fitJSON, err := json.Marshal(result.Fit)
	if err != nil {
		return apperrors.Wrap(err, "encoding fit curve")
	}
	var nullJSON []byte
	if result.NullAreas != nil {
		if nullJSON, err = json.Marshal(result.NullAreas); err != nil {
			return apperrors.Wrap(err, "encoding null areas")
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, feature, permutations, fit, null_areas)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			feature = EXCLUDED.feature,
			permutations = EXCLUDED.permutations,
			fit = EXCLUDED.fit,
			null_areas = EXCLUDED.null_areas`,
		result.RunID.String(), feature.String(), result.Permutations, fitJSON, nullJSON)
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM analysis_intervals WHERE run_id = $1`, result.RunID.String())
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}

	for i, c := range result.Intervals {
		var summaryJSON []byte
		if i < len(result.NullSummaries) {
			if summaryJSON, err = json.Marshal(result.NullSummaries[i]); err != nil {
				return apperrors.Wrap(err, "encoding null summary")
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analysis_intervals (run_id, ordinal, start_time, end_time, area, p_value, null_summary)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			result.RunID.String(), i, c.Start, c.End, c.Area, c.PValue, summaryJSON)
		if err != nil {
			return apperrors.WithCode(apperrors.CodeDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, "committing result")
	}
	return nil
}

// LoadResult retrieves a previously stored run by id.
func (r *ResultRepositoryImpl) LoadResult(ctx context.Context, runID core.RunID) (*interval.Result, error) {
	var run struct {
		ID           string `db:"id"`
		Feature      string `db:"feature"`
		Permutations int    `db:"permutations"`
		Fit          []byte `db:"fit"`
		NullAreas    []byte `db:"null_areas"`
	}
	err := r.db.GetContext(ctx, &run, `
		SELECT id, feature, permutations, fit, null_areas
		FROM analysis_runs WHERE id = $1`, runID.String())
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("analysis run")
	}
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}

	result := &interval.Result{
		RunID:        core.RunID(run.ID),
		Permutations: run.Permutations,
	}
	var fit timeseries.FitCurve
	if err := json.Unmarshal(run.Fit, &fit); err != nil {
		return nil, apperrors.Wrap(err, "decoding fit curve")
	}
	result.Fit = &fit
	if len(run.NullAreas) > 0 {
		var matrix interval.NullMatrix
		if err := json.Unmarshal(run.NullAreas, &matrix); err != nil {
			return nil, apperrors.Wrap(err, "decoding null areas")
		}
		result.NullAreas = &matrix
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT start_time, end_time, area, p_value, null_summary
		FROM analysis_intervals WHERE run_id = $1 ORDER BY ordinal`, runID.String())
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row struct {
			Start       float64 `db:"start_time"`
			End         float64 `db:"end_time"`
			Area        float64 `db:"area"`
			PValue      float64 `db:"p_value"`
			NullSummary []byte  `db:"null_summary"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
		}
		result.Intervals = append(result.Intervals, interval.Candidate{
			Start: row.Start, End: row.End, Area: row.Area, PValue: row.PValue,
		})
		var summary interval.NullSummary
		if len(row.NullSummary) > 0 {
			if err := json.Unmarshal(row.NullSummary, &summary); err != nil {
				return nil, apperrors.Wrap(err, "decoding null summary")
			}
		}
		result.NullSummaries = append(result.NullSummaries, summary)
	}
	return result, rows.Err()
}
