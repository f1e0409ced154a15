// Package scrape drives an ingest run: it expands snapshot files into Work
// Items, fans them out over a worker pool behind a concurrency governor, and
// persists what comes back.
package scrape

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rapture/db"
	"rapture/fetch"
	"rapture/progress"
	"rapture/utils"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Sink is the document store write path.
type Sink interface {
	Exists(ctx context.Context, key db.RecordKey) (bool, error)
	Insert(ctx context.Context, doc db.Document) (bool, error)
}

// FailureRecorder keeps permanently failed items for manual replay.
type FailureRecorder interface {
	Record(o fetch.Outcome) (progress.Failure, error)
}

// Expander turns a unit into its Work Items.
type Expander func(u Unit) ([]fetch.Item, error)

type Deps struct {
	Client   *fetch.Client
	Tracker  *progress.Tracker
	Sink     Sink
	Failures FailureRecorder
	Workers  int
	// Policy governs persistence retries; fetch retries use the client's.
	Policy fetch.Policy
	Sleep  fetch.SleepFunc
	Logger *zap.Logger
	RunID  string
}

type Pipeline struct {
	Deps
	progress *Progress

	mu         sync.Mutex
	failedKeys map[string]struct{}
}

func NewPipeline(d Deps) *Pipeline {
	if d.Workers < 1 {
		d.Workers = 1
	}
	if d.Sleep == nil {
		d.Sleep = fetch.Sleep
	}
	return &Pipeline{Deps: d, progress: &Progress{}, failedKeys: map[string]struct{}{}}
}

func (p *Pipeline) Progress() *Progress { return p.progress }

type unitState struct {
	marker     string
	remaining  atomic.Int64
	incomplete atomic.Bool
}

// Run processes every unit and always returns a summary. Item failures never
// stop sibling items; the returned error only reports a pool that could not
// be started.
func (p *Pipeline) Run(ctx context.Context, units []Unit, expand Expander) (Summary, error) {
	source := p.Client.Source().Tag()
	summary := Summary{RunID: p.RunID, Source: source, Started: time.Now()}

	pool, err := ants.NewPool(p.Workers, ants.WithPanicHandler(func(v any) {
		p.Logger.Error("worker panic", zap.Any("panic", v))
	}))
	if err != nil {
		return summary, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		p.progress.unitsSeen.Add(1)
		state := &unitState{marker: u.Marker(source)}

		done, err := p.Tracker.UnitDone(ctx, state.marker)
		if err != nil {
			p.Logger.Warn("checking unit marker", zap.String("unit", state.marker), zap.Error(err))
		}
		if done {
			p.progress.unitsSkipped.Add(1)
			p.Logger.Debug("unit already processed", zap.String("unit", state.marker))
			continue
		}

		items, err := expand(u)
		if err != nil {
			p.Logger.Error("expanding unit", zap.String("unit", state.marker), zap.Error(err))
			p.mu.Lock()
			p.failedKeys[state.marker] = struct{}{}
			p.mu.Unlock()
			continue
		}
		if len(items) == 0 {
			p.finishUnit(ctx, state)
			continue
		}
		p.progress.items.Add(int64(len(items)))
		state.remaining.Store(int64(len(items)))

		for _, it := range items {
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()
				o := p.runItem(ctx, it)
				p.progress.outcome(o.Kind)
				if !o.Terminal() {
					state.incomplete.Store(true)
				}
				if state.remaining.Add(-1) == 0 {
					p.finishUnit(ctx, state)
				}
			}); err != nil {
				workers.Done()
				p.Logger.Error("submitting item", append(it.Fields(), zap.Error(err))...)
				state.incomplete.Store(true)
				if state.remaining.Add(-1) == 0 {
					p.finishUnit(ctx, state)
				}
			}
		}
	}
	workers.Wait()

	summary.Finished = time.Now()
	summary.Counters = p.progress.Counters()
	p.mu.Lock()
	summary.FailedKeys = sortedKeys(p.failedKeys)
	p.mu.Unlock()
	return summary, nil
}

// finishUnit appends the unit marker once every item is terminal.
func (p *Pipeline) finishUnit(ctx context.Context, state *unitState) {
	if state.incomplete.Load() || ctx.Err() != nil {
		p.Logger.Info("leaving unit open", zap.String("unit", state.marker))
		return
	}
	if err := p.Tracker.MarkUnitDone(ctx, state.marker); err != nil {
		p.Logger.Error("marking unit done", zap.String("unit", state.marker), zap.Error(err))
		return
	}
	p.progress.unitsCompleted.Add(1)
}

// runItem processes one item, turning a panic anywhere below it into a
// permanent failure of that item alone.
func (p *Pipeline) runItem(ctx context.Context, it fetch.Item) (o fetch.Outcome) {
	defer func() {
		if v := recover(); v != nil {
			o = fetch.Outcome{
				Item: it,
				Kind: fetch.PermanentFailure,
				Err:  errors.Mark(errors.Newf("panic: %v", v), fetch.ErrPermanent),
			}
			p.fail(o)
		}
	}()
	return p.process(ctx, it)
}

func (p *Pipeline) process(ctx context.Context, it fetch.Item) fetch.Outcome {
	if err := ctx.Err(); err != nil {
		return fetch.Outcome{Item: it, Kind: fetch.Aborted, Err: err}
	}
	done, err := p.Tracker.AlreadyDone(ctx, it)
	if err != nil {
		p.Logger.Warn("dedup check failed, fetching anyway", append(it.Fields(), zap.Error(err))...)
	} else if done {
		return fetch.Outcome{Item: it, Kind: fetch.AlreadyDone}
	}

	o := p.Client.Fetch(ctx, it)
	switch o.Kind {
	case fetch.Aborted:
		return o
	case fetch.PermanentFailure:
		p.fail(o)
		return o
	}

	written, err := p.persist(ctx, it, o.Records)
	p.progress.documents.Add(written)
	if err != nil {
		o.Err = err
		if ctx.Err() != nil {
			o.Kind = fetch.Aborted
			return o
		}
		o.Kind = fetch.PermanentFailure
		p.fail(o)
		return o
	}

	// persistence is confirmed, so the marker goes in even if the run is
	// being cancelled
	if err := p.Tracker.MarkDone(context.WithoutCancel(ctx), it); err != nil {
		return o
	}
	p.Logger.Debug("item done", append(it.Fields(),
		zap.Int("records", len(o.Records)),
		zap.Int64("written", written),
		zap.Int("attempts", o.Attempts))...)
	return o
}

// persist writes one document per record, skipping keys already stored.
// Store errors are retried under the pipeline policy; records written by an
// earlier attempt are not revisited.
func (p *Pipeline) persist(ctx context.Context, it fetch.Item, records []fetch.Record) (int64, error) {
	var written int64
	next := 0
	_, err := p.Policy.Retry(ctx, p.Sleep, func(ctx context.Context, _ int) error {
		for ; next < len(records); next++ {
			rec := records[next]
			name := it.Entity
			if it.LeagueWide() {
				name = utils.NormalizeName(rec.Name)
			}
			if name == "" {
				continue
			}
			key := progress.KeyOf(it, name)
			exists, err := p.Sink.Exists(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			doc, err := db.NewDocument(key, it.Window.Season, rec.Fields)
			if err != nil {
				return fetch.Permanent(err)
			}
			ok, err := p.Sink.Insert(ctx, doc)
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		p.Logger.Warn("retrying persistence", append(it.Fields(),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))...)
	})
	return written, err
}

func (p *Pipeline) fail(o fetch.Outcome) {
	p.Logger.Error("item failed permanently", append(o.Item.Fields(),
		zap.Int("attempts", o.Attempts),
		zap.Error(o.Err))...)
	p.mu.Lock()
	p.failedKeys[o.Item.Key()] = struct{}{}
	p.mu.Unlock()
	if p.Failures == nil {
		return
	}
	if _, err := p.Failures.Record(o); err != nil {
		p.Logger.Error("writing failure log", append(o.Item.Fields(), zap.Error(err))...)
	}
}
