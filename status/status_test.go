package status

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"rapture/fetch"
	"rapture/progress"
	"rapture/scrape"
	"rapture/season"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, s *Server, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestHealthzAndProgress(t *testing.T) {
	gov := scrape.NewGovernor(3)
	require.NoError(t, gov.Acquire(t.Context()))
	s := New(Run{
		ID:       "run-1",
		Source:   "wowy",
		Started:  time.Now().Add(-time.Minute),
		Progress: &scrape.Progress{},
		Governor: gov,
	}, zaptest.NewLogger(t))

	var health map[string]string
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz", &health))
	assert.Equal(t, "run-1", health["run_id"])

	var body progressBody
	assert.Equal(t, http.StatusOK, get(t, s, "/progress", &body))
	assert.Equal(t, "wowy", body.Source)
	assert.EqualValues(t, 1, body.InFlight)
	assert.EqualValues(t, 1, body.Peak)
	assert.Equal(t, 3, body.Limit)
	assert.Equal(t, "1m0s", body.Elapsed)
}

func TestFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.jsonl")
	it := fetch.NewItem(season.NBA, "wowy", "Kevin Durant", "BKN", season.Playoffs, "20211101000000", "on", "")
	for _, runID := range []string{"old", "run-2"} {
		l, err := progress.OpenFailureLog(path, runID)
		require.NoError(t, err)
		_, err = l.Record(fetch.Outcome{Item: it, Kind: fetch.PermanentFailure, Err: errors.New("boom"), Attempts: 1})
		require.NoError(t, err)
		require.NoError(t, l.Close())
	}
	s := New(Run{ID: "run-2", FailurePath: path}, zaptest.NewLogger(t))

	var body failuresBody
	require.Equal(t, http.StatusOK, get(t, s, "/failures", &body))
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "run-2", body.Failures[0].RunID)
	assert.Equal(t, it.Key(), body.Failures[0].Key)

	require.Equal(t, http.StatusOK, get(t, s, "/failures?run=all", &body))
	assert.Len(t, body.Failures, 2)

	require.Equal(t, http.StatusOK, get(t, s, "/failures?run=nope", &body))
	assert.Empty(t, body.Failures)
}

func TestUnknownRoute(t *testing.T) {
	s := New(Run{ID: "x"}, zaptest.NewLogger(t))
	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics", nil))
}
