package scrape

import (
	"context"
	"time"

	"rapture/db"
	"rapture/progress"
	"rapture/season"
	"rapture/utils"
	"rapture/wayback"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const Tag538 = "538"

// Importer loads archived 538 snapshot rows straight into the store. No
// network is involved, so rows are written in file order.
type Importer struct {
	tracker  *progress.Tracker
	sink     Sink
	cal      *season.Calendar
	logger   *zap.Logger
	runID    string
	progress *Progress
}

func NewImporter(tracker *progress.Tracker, sink Sink, cal *season.Calendar, runID string, logger *zap.Logger) *Importer {
	return &Importer{tracker: tracker, sink: sink, cal: cal, runID: runID, logger: logger, progress: &Progress{}}
}

func (im *Importer) Progress() *Progress { return im.progress }

func (im *Importer) Run(ctx context.Context, units []Unit) Summary {
	summary := Summary{RunID: im.runID, Source: Tag538, Started: time.Now()}
	failed := map[string]struct{}{}
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		im.progress.unitsSeen.Add(1)
		marker := u.Marker(Tag538)
		done, err := im.tracker.UnitDone(ctx, marker)
		if err != nil {
			im.logger.Warn("checking unit marker", zap.String("unit", marker), zap.Error(err))
		}
		if done {
			im.progress.unitsSkipped.Add(1)
			continue
		}
		if err := im.importUnit(ctx, u); err != nil {
			if ctx.Err() != nil {
				im.progress.aborted.Add(1)
				im.logger.Info("import interrupted", zap.String("unit", marker), zap.Error(err))
				break
			}
			im.logger.Error("importing unit", zap.String("unit", marker), zap.Error(err))
			failed[marker] = struct{}{}
			continue
		}
		if err := im.tracker.MarkUnitDone(ctx, marker); err != nil {
			im.logger.Error("marking unit done", zap.String("unit", marker), zap.Error(err))
			continue
		}
		im.progress.unitsCompleted.Add(1)
	}
	summary.Finished = time.Now()
	summary.Counters = im.progress.Counters()
	summary.FailedKeys = sortedKeys(failed)
	return summary
}

func (im *Importer) importUnit(ctx context.Context, u Unit) error {
	rows, err := wayback.ReadFile(u.Path)
	if err != nil {
		return err
	}
	label := ""
	if s, ok := im.cal.SeasonOf(u.Timestamp); ok {
		label = s.Label
	} else {
		im.logger.Warn("snapshot outside season calendar", zap.String("unit", u.ID))
	}

	for _, row := range rows {
		name := utils.NormalizeName(row.Name())
		if name == "" {
			continue
		}
		im.progress.items.Add(1)
		key := db.RecordKey{Name: name, Timestamp: string(u.Timestamp), Source: Tag538, GameType: string(u.GameType)}
		exists, err := im.sink.Exists(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "checking %s", key)
		}
		if exists {
			im.progress.alreadyDone.Add(1)
			continue
		}
		fields := make(map[string]any, len(row))
		for k, v := range row {
			fields[k] = v
		}
		doc, err := db.NewDocument(key, label, fields)
		if err != nil {
			return err
		}
		ok, err := im.sink.Insert(ctx, doc)
		if err != nil {
			return errors.Wrapf(err, "inserting %s", key)
		}
		im.progress.succeeded.Add(1)
		if ok {
			im.progress.documents.Add(1)
		}
	}
	return nil
}
