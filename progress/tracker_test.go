package progress

import (
	"context"
	"path/filepath"
	"testing"

	"rapture/db"
	"rapture/fetch"
	"rapture/season"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Exists(ctx context.Context, key db.RecordKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func newTracker(t *testing.T, store Existence) (*Tracker, *Log) {
	l, err := OpenLog(filepath.Join(t.TempDir(), "completed.log"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return NewTracker(l, store, zaptest.NewLogger(t)), l
}

func TestTrackerChecksMarkersBeforeStore(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	tr, _ := newTracker(t, store)
	it := fetch.NewItem(season.NBA, "wowy", "Luka Doncic", "DAL", season.Regular, "20220101000000", "on", "u1")

	store.On("Exists", ctx, KeyOf(it, "Luka Doncic")).Return(false, nil).Once()
	done, err := tr.AlreadyDone(ctx, it)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tr.MarkDone(ctx, it))
	done, err = tr.AlreadyDone(ctx, it)
	require.NoError(t, err)
	assert.True(t, done)

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "Exists", 1)
}

func TestTrackerFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	tr, _ := newTracker(t, store)
	it := fetch.NewItem(season.NBA, "wowy", "Luka Doncic", "DAL", season.Regular, "20220101000000", "off", "u1")

	store.On("Exists", ctx, mock.MatchedBy(func(k db.RecordKey) bool {
		return k.Axis == "off" && k.Source == "wowy" && k.GameType == "regular"
	})).Return(true, nil)
	done, err := tr.AlreadyDone(ctx, it)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestTrackerLeagueWideItemsUseMarkersOnly(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	tr, _ := newTracker(t, store)
	it := fetch.NewItem(season.NBA, "pbp", "", "", season.Full, "20220101000000", "per100", "u1")

	done, err := tr.AlreadyDone(ctx, it)
	require.NoError(t, err)
	assert.False(t, done)
	store.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestTrackerUnits(t *testing.T) {
	ctx := context.Background()
	tr, l := newTracker(t, nil)
	done, err := tr.UnitDone(ctx, "Playoffs/20220501000000.csv")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tr.MarkUnitDone(ctx, "Playoffs/20220501000000.csv"))
	done, err = tr.UnitDone(ctx, "Playoffs/20220501000000.csv")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, l.Len())
}
