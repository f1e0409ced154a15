package scrape

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rapture/db"
	"rapture/fetch"
	"rapture/identity"
	"rapture/progress"
	"rapture/season"
	"rapture/wayback"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeSource answers every request with one record per entity (or two
// players for league-wide items) after an optional delay.
type fakeSource struct {
	tag      string
	delay    time.Duration
	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64

	mu   sync.Mutex
	seen []fetch.Request
}

func (s *fakeSource) Tag() string { return s.tag }

func (s *fakeSource) Fetch(ctx context.Context, req fetch.Request) ([]fetch.Record, error) {
	s.calls.Add(1)
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if cur <= p || s.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	s.mu.Lock()
	s.seen = append(s.seen, req)
	s.mu.Unlock()

	if s.delay > 0 {
		if err := fetch.Sleep(ctx, s.delay); err != nil {
			return nil, err
		}
	}
	fields := map[string]any{"axis": req.Item.Axis, "player_id": req.PlayerID}
	if req.Item.LeagueWide() {
		return []fetch.Record{{Name: "Nikola Jokic", Fields: fields}, {Name: "Luka Doncic", Fields: fields}}, nil
	}
	return []fetch.Record{{Name: req.Item.Entity, Fields: fields}}, nil
}

type harness struct {
	dir      string
	store    *db.Store
	logPath  string
	failPath string
	resolver *identity.Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := db.Open(context.Background(), db.DriverSQLite, filepath.Join(dir, "rapture.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	resolver, err := identity.NewResolver(map[string]string{
		"Luka Dončić":  "1629029",
		"Nikola Jokić": "203999",
		"Kevin Durant": "201142",
	}, 80)
	require.NoError(t, err)
	return &harness{
		dir:      dir,
		store:    store,
		logPath:  filepath.Join(dir, "state", "completed.log"),
		failPath: filepath.Join(dir, "state", "failures.jsonl"),
		resolver: resolver,
	}
}

func (h *harness) dataDir() string { return filepath.Join(h.dir, "data") }

func (h *harness) writeSnapshot(t *testing.T, gt season.GameType, ts string, names ...string) {
	t.Helper()
	rows := make([]wayback.Row, 0, len(names))
	for _, n := range names {
		rows = append(rows, wayback.Row{"name": n, "team": "DAL"})
	}
	_, err := wayback.WriteFile(filepath.Join(h.dataDir(), gt.Dir(), ts+".csv"), rows)
	require.NoError(t, err)
}

// run builds a fresh pipeline, as a new process would, and runs it once.
func (h *harness) run(t *testing.T, ctx context.Context, src fetch.Source, n int, axes []string, perPlayer bool) (Summary, *Governor) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	markers, err := progress.OpenLog(h.logPath)
	require.NoError(t, err)
	defer markers.Close()
	failures, err := progress.OpenFailureLog(h.failPath, "run")
	require.NoError(t, err)
	defer failures.Close()

	gov := NewGovernor(n)
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	client := fetch.NewClient(src, h.resolver, gov, fetch.DefaultPolicy, logger, fetch.WithSleep(noSleep))
	p := NewPipeline(Deps{
		Client:   client,
		Tracker:  progress.NewTracker(markers, h.store, logger),
		Sink:     h.store,
		Failures: failures,
		Workers:  64,
		Policy:   fetch.DefaultPolicy,
		Sleep:    noSleep,
		Logger:   logger,
		RunID:    "run",
	})
	units, err := Discover(h.dataDir(), season.GameTypes, logger)
	require.NoError(t, err)

	enum := NewEnumerator(season.NBA, src.Tag(), axes, logger)
	expand := enum.LeagueWide
	if perPlayer {
		expand = enum.PerPlayer
	}
	summary, err := p.Run(ctx, units, expand)
	require.NoError(t, err)
	return summary, gov
}
