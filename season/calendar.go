package season

import (
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNoSeason is returned when an instant falls outside every known season.
	ErrNoSeason = errors.New("timestamp outside season calendar")
	// ErrNoWindow is returned when a game type has no valid window at an instant.
	ErrNoWindow = errors.New("no valid date window")
)

const dateLayout = "2006-01-02"

// Season holds the boundary dates of one NBA season. All dates are UTC days.
type Season struct {
	Label           string
	RegularStart    time.Time
	RegularEnd      time.Time
	PostseasonStart time.Time
	PostseasonEnd   time.Time
	// PlayIn is set for seasons that staged a play-in tournament between the
	// regular season and the playoffs.
	PlayIn bool

	spanEnd Timestamp
}

// Window is the closed date range a stats query should cover.
type Window struct {
	Season   string
	GameType GameType
	Start    time.Time
	End      time.Time
}

// ISO renders the bounds as YYYY-MM-DD.
func (w Window) ISO() (string, string) {
	return w.Start.Format(dateLayout), w.End.Format(dateLayout)
}

// US renders the bounds as MM/DD/YYYY, which stats.nba.com expects.
func (w Window) US() (string, string) {
	return w.Start.Format("01/02/2006"), w.End.Format("01/02/2006")
}

func (w Window) String() string {
	from, to := w.ISO()
	return fmt.Sprintf("%s %s [%s, %s]", w.Season, w.GameType, from, to)
}

// WindowError explains why no window exists. It unwraps to ErrNoSeason or
// ErrNoWindow.
type WindowError struct {
	Timestamp Timestamp
	GameType  GameType
	Season    string
	Reason    string
	cause     error
}

func (e *WindowError) Error() string {
	if e.Season == "" {
		return fmt.Sprintf("%s %s: %s", e.GameType, e.Timestamp, e.Reason)
	}
	return fmt.Sprintf("%s %s (%s): %s", e.GameType, e.Timestamp, e.Season, e.Reason)
}

func (e *WindowError) Unwrap() error { return e.cause }

// Calendar is an immutable, ordered set of non-overlapping seasons. It is safe
// for concurrent use.
type Calendar struct {
	seasons []Season
}

// NewCalendar sorts the seasons by start date and checks that their dates are
// ordered and their spans do not overlap. A season spans from its regular
// season start until the next season's regular season start; the last season
// ends the day after its postseason end.
func NewCalendar(seasons []Season) (*Calendar, error) {
	if len(seasons) == 0 {
		return nil, errors.New("calendar needs at least one season")
	}
	ss := make([]Season, len(seasons))
	copy(ss, seasons)
	sort.Slice(ss, func(i, j int) bool { return ss[i].RegularStart.Before(ss[j].RegularStart) })

	for i := range ss {
		s := &ss[i]
		if !s.RegularStart.Before(s.RegularEnd) ||
			s.RegularEnd.After(s.PostseasonStart) ||
			s.PostseasonStart.After(s.PostseasonEnd) {
			return nil, errors.Newf("season %s: boundary dates out of order", s.Label)
		}
		if i+1 < len(ss) {
			next := ss[i+1]
			if !s.PostseasonEnd.Before(next.RegularStart) {
				return nil, errors.Newf("season %s overlaps %s", s.Label, next.Label)
			}
			s.spanEnd = TimestampOf(next.RegularStart)
		} else {
			s.spanEnd = TimestampOf(s.PostseasonEnd.AddDate(0, 0, 1))
		}
	}
	return &Calendar{seasons: ss}, nil
}

// MustCalendar is NewCalendar for static tables.
func MustCalendar(seasons []Season) *Calendar {
	c, err := NewCalendar(seasons)
	if err != nil {
		panic(err)
	}
	return c
}

// Seasons returns a copy of the calendar in chronological order.
func (c *Calendar) Seasons() []Season {
	out := make([]Season, len(c.seasons))
	copy(out, c.seasons)
	return out
}

// Labels lists season labels such as "2021-22" in chronological order.
func (c *Calendar) Labels() []string {
	out := make([]string, len(c.seasons))
	for i, s := range c.seasons {
		out[i] = s.Label
	}
	return out
}

// Lookup finds a season by label.
func (c *Calendar) Lookup(label string) (Season, bool) {
	for _, s := range c.seasons {
		if s.Label == label {
			return s, true
		}
	}
	return Season{}, false
}

// SeasonOf returns the season whose span contains ts. A malformed ts belongs
// to no season.
func (c *Calendar) SeasonOf(ts Timestamp) (Season, bool) {
	if _, err := ParseTimestamp(string(ts)); err != nil {
		return Season{}, false
	}
	i := sort.Search(len(c.seasons), func(i int) bool { return ts < c.seasons[i].spanEnd })
	if i == len(c.seasons) || ts < TimestampOf(c.seasons[i].RegularStart) {
		return Season{}, false
	}
	return c.seasons[i], true
}

// WindowFor computes the query window for a snapshot taken at ts. The window
// always ends on the snapshot's own date:
//
//	Playoffs  postseason start, valid while ts is inside the postseason
//	Regular   regular season start, valid before the postseason starts
//	Full      regular season start, always valid
//	PlayIn    regular season end, valid from then until the postseason ends
//	          and only for seasons with a play-in tournament
func (c *Calendar) WindowFor(ts Timestamp, gt GameType) (Window, error) {
	if _, err := ParseTimestamp(string(ts)); err != nil {
		return Window{}, &WindowError{Timestamp: ts, GameType: gt, Reason: "malformed timestamp", cause: err}
	}
	s, ok := c.SeasonOf(ts)
	if !ok {
		return Window{}, &WindowError{Timestamp: ts, GameType: gt, Reason: "no season covers this date", cause: ErrNoSeason}
	}
	invalid := func(reason string) (Window, error) {
		return Window{}, &WindowError{Timestamp: ts, GameType: gt, Season: s.Label, Reason: reason, cause: ErrNoWindow}
	}

	var start time.Time
	switch gt {
	case Playoffs:
		if ts < TimestampOf(s.PostseasonStart) {
			return invalid("postseason has not started")
		}
		if ts >= TimestampOf(s.PostseasonEnd) {
			return invalid("postseason is over")
		}
		start = s.PostseasonStart
	case Regular:
		if ts >= TimestampOf(s.PostseasonStart) {
			return invalid("regular season is over")
		}
		start = s.RegularStart
	case Full:
		start = s.RegularStart
	case PlayIn:
		if !s.PlayIn {
			return invalid("season had no play-in tournament")
		}
		if ts < TimestampOf(s.RegularEnd) {
			return invalid("play-in has not started")
		}
		if ts >= TimestampOf(s.PostseasonEnd) {
			return invalid("postseason is over")
		}
		start = s.RegularEnd
	default:
		return invalid("unknown game type")
	}

	end := ts.Date()
	if start.After(end) {
		return invalid("window start after snapshot date")
	}
	return Window{Season: s.Label, GameType: gt, Start: start, End: end}, nil
}
