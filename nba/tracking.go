package nba

import (
	"context"
	"net/url"

	"rapture/fetch"
	"rapture/season"

	"github.com/cockroachdb/errors"
)

const TagTracking = "nba-tracking"

// ErrUnsupportedGameType is returned for game types stats.nba.com has no
// SeasonType for.
var ErrUnsupportedGameType = errors.New("game type not supported by stats.nba.com")

// Tracking categories accepted as PtMeasureType.
var TrackingCategories = []string{
	"SpeedDistance", "Rebounding", "Possessions", "CatchShoot", "PullUpShot",
	"Defense", "Drives", "Passing", "ElbowTouch", "PostTouch", "PaintTouch", "Efficiency",
}

// SeasonType is the stats.nba.com SeasonType for a game type.
func SeasonType(gt season.GameType) (string, error) {
	switch gt {
	case season.Regular:
		return "Regular Season", nil
	case season.Playoffs:
		return "Playoffs", nil
	case season.PlayIn:
		return "PlayIn", nil
	}
	return "", errors.Wrapf(ErrUnsupportedGameType, "%q", gt)
}

// Tracking fetches league-wide player tracking totals. The item axis names
// the tracking category.
type Tracking struct {
	client *Client
}

func NewTracking(c *Client) *Tracking { return &Tracking{client: c} }

func (t *Tracking) Tag() string { return TagTracking }

func (t *Tracking) Fetch(ctx context.Context, req fetch.Request) ([]fetch.Record, error) {
	seasonType, err := SeasonType(req.Item.GameType)
	if err != nil {
		return nil, fetch.Permanent(err)
	}
	if req.Item.Axis == "" {
		return nil, fetch.Permanent(errors.New("tracking item has no category"))
	}

	from, to := req.Window.US()
	params := url.Values{}
	for _, empty := range []string{
		"College", "Conference", "Country", "Division", "DraftPick", "DraftYear",
		"GameScope", "Height", "Location", "Outcome", "PlayerExperience",
		"PlayerPosition", "SeasonSegment", "StarterBench", "VsConference",
		"VsDivision", "Weight",
	} {
		params.Set(empty, "")
	}
	for _, zero := range []string{"LastNGames", "Month", "OpponentTeamID", "PORound", "TeamID"} {
		params.Set(zero, "0")
	}
	params.Set("LeagueID", "00")
	params.Set("Season", req.Window.Season)
	params.Set("SeasonType", seasonType)
	params.Set("PerMode", "Totals")
	params.Set("PlayerOrTeam", "Player")
	params.Set("PtMeasureType", req.Item.Axis)
	params.Set("DateFrom", from)
	params.Set("DateTo", to)

	rs, err := t.client.get(ctx, "leaguedashptstats", params)
	if err != nil {
		return nil, err
	}
	rows := rs.rows()
	records := make([]fetch.Record, 0, len(rows))
	for _, row := range rows {
		name := maybe[string](row["PLAYER_NAME"])
		if name == nil || *name == "" {
			continue
		}
		records = append(records, fetch.Record{Name: *name, Fields: row})
	}
	return records, nil
}
