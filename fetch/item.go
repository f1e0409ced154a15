// Package fetch turns Work Items into upstream requests and classifies what
// comes back.
package fetch

import (
	"strings"

	"rapture/season"

	"go.uber.org/zap"
)

// Item is one independent unit of fetch work. It is passed by value and never
// mutated after NewItem; retries reuse the same value.
type Item struct {
	Source    string
	Entity    string // normalized player name, empty for league-wide items
	Team      string
	GameType  season.GameType
	Timestamp season.Timestamp
	Axis      string
	Unit      string // completed-log identifier of the file the item came from

	Window season.Window
	// WindowErr is set when no valid window exists; such items are never sent.
	WindowErr error
}

// NewItem computes the item's date window from cal.
func NewItem(cal *season.Calendar, source, entity, team string, gt season.GameType, ts season.Timestamp, axis, unit string) Item {
	it := Item{
		Source:    source,
		Entity:    entity,
		Team:      team,
		GameType:  gt,
		Timestamp: ts,
		Axis:      axis,
		Unit:      unit,
	}
	it.Window, it.WindowErr = cal.WindowFor(ts, gt)
	return it
}

// LeagueWide reports whether the item fetches every player at once.
func (it Item) LeagueWide() bool { return it.Entity == "" }

// Key identifies the item in the completed log. Two items with the same
// source, game type, timestamp, axis and entity are the same work.
func (it Item) Key() string {
	return strings.Join([]string{it.Source, string(it.GameType), string(it.Timestamp), it.Axis, it.Entity}, "|")
}

// Fields are the log fields identifying the item.
func (it Item) Fields() []zap.Field {
	return []zap.Field{
		zap.String("source", it.Source),
		zap.String("entity", it.Entity),
		zap.String("timestamp", string(it.Timestamp)),
		zap.String("game_type", string(it.GameType)),
		zap.String("axis", it.Axis),
	}
}
