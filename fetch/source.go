package fetch

import (
	"context"

	"rapture/season"
)

// Record is one player's row of upstream data.
type Record struct {
	Name   string
	Fields map[string]any
}

// Request carries everything a Source needs to build its upstream query.
// Date formatting is left to the Source.
type Request struct {
	Item     Item
	Window   season.Window
	PlayerID string
}

// Source performs one upstream call. A well-formed empty response is a nil
// slice and a nil error. Errors marked with Permanent are not retried.
type Source interface {
	Tag() string
	Fetch(ctx context.Context, req Request) ([]Record, error)
}

// Resolver maps a player name onto the identifier a Source expects.
type Resolver interface {
	Lookup(name string) (string, error)
}

// Governor bounds how many network calls are in flight.
type Governor interface {
	Acquire(ctx context.Context) error
	Release()
}
