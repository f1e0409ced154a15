package scrape

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Governor is a counting semaphore around network calls. It also tracks how
// many holders there are now and at most.
type Governor struct {
	sem      *semaphore.Weighted
	limit    int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewGovernor(n int) *Governor {
	if n < 1 {
		n = 1
	}
	return &Governor{sem: semaphore.NewWeighted(int64(n)), limit: n}
}

func (g *Governor) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	cur := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if cur <= p || g.peak.CompareAndSwap(p, cur) {
			return nil
		}
	}
}

func (g *Governor) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

func (g *Governor) Limit() int      { return g.limit }
func (g *Governor) InFlight() int64 { return g.inFlight.Load() }
func (g *Governor) Peak() int64     { return g.peak.Load() }
