package scrape

import (
	"rapture/fetch"
	"rapture/season"
	"rapture/utils"
	"rapture/wayback"

	"go.uber.org/zap"
)

// Row is one enumerator input line.
type Row struct {
	Entity   string
	Team     string
	GameType season.GameType
	Anchor   string
	Unit     string
}

// Enumerator expands rows into Work Items for one source: one item per row
// per axis, never two items with the same key.
type Enumerator struct {
	cal    *season.Calendar
	source string
	axes   []string
	logger *zap.Logger
}

func NewEnumerator(cal *season.Calendar, source string, axes []string, logger *zap.Logger) *Enumerator {
	return &Enumerator{cal: cal, source: source, axes: axes, logger: logger}
}

// Items builds the flat item list. Rows whose anchor is not a timestamp are
// logged and dropped. Items whose window is invalid are kept so the fetch
// client can record them as permanent failures.
func (e *Enumerator) Items(rows []Row) []fetch.Item {
	seen := make(map[string]struct{}, len(rows)*len(e.axes))
	items := make([]fetch.Item, 0, len(rows)*len(e.axes))
	for _, r := range rows {
		ts, err := season.NormalizeTimestamp(r.Anchor)
		if err != nil {
			e.logger.Warn("skipping row with bad anchor",
				zap.String("source", e.source),
				zap.String("entity", r.Entity),
				zap.String("unit", r.Unit),
				zap.Error(err))
			continue
		}
		entity := utils.NormalizeName(r.Entity)
		for _, axis := range e.axes {
			it := fetch.NewItem(e.cal, e.source, entity, r.Team, r.GameType, ts, axis, r.Unit)
			if _, dup := seen[it.Key()]; dup {
				continue
			}
			seen[it.Key()] = struct{}{}
			items = append(items, it)
		}
	}
	return items
}

// PerPlayer expands a snapshot file into one row per listed player.
func (e *Enumerator) PerPlayer(u Unit) ([]fetch.Item, error) {
	players, err := wayback.ReadFile(u.Path)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(players))
	for _, p := range players {
		if p.Name() == "" {
			continue
		}
		rows = append(rows, Row{
			Entity:   p.Name(),
			Team:     p.Team(),
			GameType: u.GameType,
			Anchor:   string(u.Timestamp),
			Unit:     u.Marker(e.source),
		})
	}
	return e.Items(rows), nil
}

// LeagueWide expands a snapshot file into a single league-wide row; only the
// file's timestamp and game type matter.
func (e *Enumerator) LeagueWide(u Unit) ([]fetch.Item, error) {
	return e.Items([]Row{{GameType: u.GameType, Anchor: string(u.Timestamp), Unit: u.Marker(e.source)}}), nil
}
