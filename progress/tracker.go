package progress

import (
	"context"

	"rapture/db"
	"rapture/fetch"

	"go.uber.org/zap"
)

// Existence answers whether a document is already persisted.
type Existence interface {
	Exists(ctx context.Context, key db.RecordKey) (bool, error)
}

// Tracker combines the completed-marker set with per-record store checks.
// Markers are consulted first since they are cheap and can short-circuit a
// whole file; the store check catches records written by a run that died
// before its markers were appended.
type Tracker struct {
	markers MarkerSet
	store   Existence
	logger  *zap.Logger
}

func NewTracker(markers MarkerSet, store Existence, logger *zap.Logger) *Tracker {
	return &Tracker{markers: markers, store: store, logger: logger}
}

// UnitDone reports whether every item of a unit (a snapshot file) was
// finished by an earlier run.
func (t *Tracker) UnitDone(ctx context.Context, unit string) (bool, error) {
	return t.markers.Has(ctx, unit)
}

// MarkUnitDone must only be called once all of the unit's items are terminal.
func (t *Tracker) MarkUnitDone(ctx context.Context, unit string) error {
	return t.markers.Add(ctx, unit)
}

// AlreadyDone reports whether the item can be skipped without a network call.
func (t *Tracker) AlreadyDone(ctx context.Context, it fetch.Item) (bool, error) {
	done, err := t.markers.Has(ctx, it.Key())
	if err != nil || done {
		return done, err
	}
	if it.LeagueWide() || t.store == nil {
		return false, nil
	}
	return t.store.Exists(ctx, KeyOf(it, it.Entity))
}

// MarkDone records a finished item. Callers invoke it only after every
// record the item produced is confirmed persisted.
func (t *Tracker) MarkDone(ctx context.Context, it fetch.Item) error {
	if err := t.markers.Add(ctx, it.Key()); err != nil {
		t.logger.Error("marking item done", append(it.Fields(), zap.Error(err))...)
		return err
	}
	return nil
}

// KeyOf is the store key of the document an item produces for one player.
func KeyOf(it fetch.Item, name string) db.RecordKey {
	return db.RecordKey{
		Name:      name,
		Timestamp: string(it.Timestamp),
		Source:    it.Source,
		GameType:  string(it.GameType),
		Axis:      it.Axis,
	}
}
