package scrape

import (
	"sort"
	"sync/atomic"
	"time"

	"rapture/fetch"

	"go.uber.org/zap"
)

// Counters is a point-in-time copy of a run's progress.
type Counters struct {
	UnitsSeen      int64 `json:"units_seen"`
	UnitsSkipped   int64 `json:"units_skipped"`
	UnitsCompleted int64 `json:"units_completed"`
	Items          int64 `json:"items"`
	Succeeded      int64 `json:"succeeded"`
	AlreadyDone    int64 `json:"already_done"`
	Failed         int64 `json:"failed"`
	Aborted        int64 `json:"aborted"`
	Documents      int64 `json:"documents"`
}

// Progress holds live counters shared by every worker of a run.
type Progress struct {
	unitsSeen      atomic.Int64
	unitsSkipped   atomic.Int64
	unitsCompleted atomic.Int64
	items          atomic.Int64
	succeeded      atomic.Int64
	alreadyDone    atomic.Int64
	failed         atomic.Int64
	aborted        atomic.Int64
	documents      atomic.Int64
}

func (p *Progress) outcome(k fetch.Kind) {
	switch k {
	case fetch.Success:
		p.succeeded.Add(1)
	case fetch.AlreadyDone:
		p.alreadyDone.Add(1)
	case fetch.PermanentFailure:
		p.failed.Add(1)
	case fetch.Aborted:
		p.aborted.Add(1)
	}
}

func (p *Progress) Counters() Counters {
	return Counters{
		UnitsSeen:      p.unitsSeen.Load(),
		UnitsSkipped:   p.unitsSkipped.Load(),
		UnitsCompleted: p.unitsCompleted.Load(),
		Items:          p.items.Load(),
		Succeeded:      p.succeeded.Load(),
		AlreadyDone:    p.alreadyDone.Load(),
		Failed:         p.failed.Load(),
		Aborted:        p.aborted.Load(),
		Documents:      p.documents.Load(),
	}
}

// Summary is printed at the end of every run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Counters   Counters  `json:"counters"`
	FailedKeys []string  `json:"failed_keys"`
}

func (s Summary) Log(logger *zap.Logger) {
	c := s.Counters
	logger.Info("run summary",
		zap.String("run_id", s.RunID),
		zap.String("source", s.Source),
		zap.Duration("elapsed", s.Finished.Sub(s.Started)),
		zap.Int64("units_seen", c.UnitsSeen),
		zap.Int64("units_skipped", c.UnitsSkipped),
		zap.Int64("units_completed", c.UnitsCompleted),
		zap.Int64("items", c.Items),
		zap.Int64("succeeded", c.Succeeded),
		zap.Int64("already_done", c.AlreadyDone),
		zap.Int64("failed", c.Failed),
		zap.Int64("aborted", c.Aborted),
		zap.Int64("documents", c.Documents),
	)
	for _, k := range s.FailedKeys {
		logger.Warn("permanently failed", zap.String("key", k))
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
