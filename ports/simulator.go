package ports

import (
	"context"

	"epicalib/domain/epidemic"
)

// Simulator runs one simulation for the given configuration and returns the
// parsed artifacts. Implementations persist params before invoking the
// simulator and never retry.
type Simulator interface {
	Execute(ctx context.Context, params ParameterSet) (*epidemic.Artifacts, error)
}
