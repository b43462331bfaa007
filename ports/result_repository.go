package ports

import (
	"context"

	"timecourse/domain/core"
	"timecourse/domain/interval"
)

// ResultRepository persists analysis runs and their interval tables.
type ResultRepository interface {
	// SaveResult stores the run metadata and one row per candidate interval.
	SaveResult(ctx context.Context, feature core.FeatureKey, result *interval.Result) error

	// LoadResult retrieves a previously stored run by id.
	LoadResult(ctx context.Context, runID core.RunID) (*interval.Result, error)
}
