package scrape

import (
	"context"
	"testing"

	"rapture/progress"
	"rapture/season"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestImporterSkipsWhatIsStored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writeSnapshot(t, season.Regular, "20211101000000", "Luka Doncic", "Nikola Jokic", "")
	h.writeSnapshot(t, season.Playoffs, "20220501000000", "Luka Doncic")
	logger := zaptest.NewLogger(t)

	runOnce := func() Summary {
		markers, err := progress.OpenLog(h.logPath)
		require.NoError(t, err)
		defer markers.Close()
		units, err := Discover(h.dataDir(), season.GameTypes, logger)
		require.NoError(t, err)
		im := NewImporter(progress.NewTracker(markers, h.store, logger), h.store, season.NBA, "run", logger)
		return im.Run(ctx, units)
	}

	first := runOnce()
	assert.EqualValues(t, 2, first.Counters.UnitsCompleted)
	assert.EqualValues(t, 3, first.Counters.Documents)
	assert.Empty(t, first.FailedKeys)

	second := runOnce()
	assert.EqualValues(t, 2, second.Counters.UnitsSkipped)
	assert.Zero(t, second.Counters.Documents)

	docs, err := h.store.Documents(ctx, Tag538)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "2021-22", docs[0].Season)
	fields, err := docs[0].Fields()
	require.NoError(t, err)
	assert.Equal(t, "DAL", fields["team"])
}

func TestImporterCancelledMidUnitIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t)
	h.writeSnapshot(t, season.Regular, "20211101000000", "Luka Doncic", "Nikola Jokic")
	logger := zaptest.NewLogger(t)

	sink := &mockSink{}
	sink.On("Exists", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(false, context.Canceled)

	markers, err := progress.OpenLog(h.logPath)
	require.NoError(t, err)
	defer markers.Close()
	units, err := Discover(h.dataDir(), season.GameTypes, logger)
	require.NoError(t, err)

	im := NewImporter(progress.NewTracker(markers, sink, logger), sink, season.NBA, "run", logger)
	summary := im.Run(ctx, units)

	assert.Empty(t, summary.FailedKeys)
	assert.EqualValues(t, 1, summary.Counters.Aborted)
	assert.Zero(t, summary.Counters.UnitsCompleted)
	assert.Zero(t, markers.Len())
	sink.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
