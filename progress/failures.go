package progress

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"rapture/fetch"
	"rapture/utils"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

// Failure is one permanently failed item, kept for manual replay.
type Failure struct {
	RunID     string    `json:"run_id"`
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	Entity    string    `json:"entity,omitempty"`
	Timestamp string    `json:"timestamp"`
	GameType  string    `json:"game_type"`
	Axis      string    `json:"axis,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason"`
	Time      time.Time `json:"time"`
}

// FailureOf builds the log entry for a failed outcome.
func FailureOf(runID string, o fetch.Outcome, at time.Time) Failure {
	reason := ""
	if o.Err != nil {
		reason = o.Err.Error()
	}
	return Failure{
		RunID:     runID,
		Key:       o.Item.Key(),
		Source:    o.Item.Source,
		Entity:    o.Item.Entity,
		Timestamp: string(o.Item.Timestamp),
		GameType:  string(o.Item.GameType),
		Axis:      o.Item.Axis,
		Unit:      o.Item.Unit,
		Attempts:  o.Attempts,
		Reason:    reason,
		Time:      at.UTC(),
	}
}

// FailureLog appends JSON lines, one per failure, under a single lock.
type FailureLog struct {
	mu    sync.Mutex
	path  string
	runID string
	f     *os.File
	now   func() time.Time
}

func OpenFailureLog(path, runID string) (*FailureLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return &FailureLog{path: path, runID: runID, f: f, now: time.Now}, nil
}

func (l *FailureLog) Path() string  { return l.path }
func (l *FailureLog) RunID() string { return l.runID }

// Record appends o and returns the entry written.
func (l *FailureLog) Record(o fetch.Outcome) (Failure, error) {
	entry := FailureOf(l.runID, o, l.now())
	line, err := sonic.Marshal(entry)
	if err != nil {
		return entry, utils.ErrorWithTrace(err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return entry, errors.New("failure log is closed")
	}
	if _, err := l.f.Write(line); err != nil {
		return entry, utils.ErrorWithTrace(err)
	}
	return entry, utils.ErrorWithTrace(l.f.Sync())
}

func (l *FailureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// ReadFailures loads every entry from a failure log. A missing file is an
// empty log. Lines that do not decode, such as one torn by a crash, are
// counted and skipped.
func ReadFailures(path string) ([]Failure, int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, utils.ErrorWithTrace(err)
	}
	defer f.Close()

	var out []Failure
	bad := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Failure
		if err := sonic.Unmarshal(line, &entry); err != nil {
			bad++
			continue
		}
		out = append(out, entry)
	}
	if err := sc.Err(); err != nil {
		return out, bad, errors.Wrapf(err, "reading %s", path)
	}
	return out, bad, nil
}

// LastRun is the run id of the most recent entry; later lines win ties.
func LastRun(entries []Failure) string {
	var last Failure
	for _, e := range entries {
		if !e.Time.Before(last.Time) || last.RunID == "" {
			last = e
		}
	}
	return last.RunID
}

// FailedKeys returns the distinct item keys that failed in runID, sorted.
// An empty runID selects every run.
func FailedKeys(entries []Failure, runID string) []string {
	seen := map[string]struct{}{}
	for _, e := range entries {
		if runID != "" && e.RunID != runID {
			continue
		}
		seen[e.Key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
