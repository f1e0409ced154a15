// Package progress records which work has been completed or has failed, so
// an interrupted ingest can resume without repeating itself.
package progress

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rapture/utils"

	"github.com/cockroachdb/errors"
)

// MarkerSet is a durable set of completed-unit identifiers. Implementations
// are safe for concurrent use and never remove members.
type MarkerSet interface {
	Has(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, id string) error
	Close() error
}

// Log is a MarkerSet backed by an append-only newline-delimited file. The
// whole file is read into memory on open; every Add is written and synced
// under a single lock before it becomes visible.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
	done map[string]struct{}
}

var _ MarkerSet = (*Log)(nil)

func OpenLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	done := map[string]struct{}{}
	if existing, err := os.Open(path); err == nil {
		sc := bufio.NewScanner(existing)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				done[line] = struct{}{}
			}
		}
		err := sc.Err()
		existing.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, utils.ErrorWithTrace(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return &Log{path: path, f: f, done: done}, nil
}

func (l *Log) Path() string { return l.path }

func (l *Log) Has(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[id]
	return ok, nil
}

func (l *Log) Add(_ context.Context, id string) error {
	if id == "" || strings.ContainsAny(id, "\r\n") {
		return errors.Newf("invalid marker %q", id)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[id]; ok {
		return nil
	}
	if l.f == nil {
		return errors.New("completed log is closed")
	}
	if _, err := l.f.WriteString(id + "\n"); err != nil {
		return utils.ErrorWithTrace(err)
	}
	if err := l.f.Sync(); err != nil {
		return utils.ErrorWithTrace(err)
	}
	l.done[id] = struct{}{}
	return nil
}

// Len is the number of distinct markers.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
