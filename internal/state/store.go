// Package state records validation builds in a SQLite database so that
// their diagnostics and built specifications can be inspected later.
package state

import (
	"context"
	"time"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/validation"
)

// Build summarizes one recorded validation pass.
type Build struct {
	ID               string
	Root             string
	StartedAt        time.Time
	Elapsed          time.Duration
	Collections      int
	Materializations int
	Errors           int
	Warnings         int
}

// BuildError is a recorded diagnostic of a build.
type BuildError struct {
	Seq      int
	Scope    catalog.Scope
	Kind     validation.Kind
	Severity validation.Severity
	Message  string
}

// Store persists builds.
type Store interface {
	SaveBuild(ctx context.Context, root string, startedAt time.Time, elapsed time.Duration, res *validation.Result) (*Build, error)
	GetBuild(ctx context.Context, id string) (*Build, error)
	LatestBuild(ctx context.Context) (*Build, error)
	ListBuilds(ctx context.Context, limit int) ([]*Build, error)
	ListErrors(ctx context.Context, buildID string) ([]*BuildError, error)
	GetBuiltCollection(ctx context.Context, buildID, name string) (*catalog.BuiltCollection, error)
	ListBuiltMaterializations(ctx context.Context, buildID string) ([]catalog.BuiltMaterialization, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
