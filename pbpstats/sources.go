package pbpstats

import (
	"context"
	"net/url"
	"strconv"

	"rapture/fetch"

	"github.com/cockroachdb/errors"
)

const (
	TagWowy   = "wowy"
	TagTotals = "pbp"

	AxisOn     = "on"
	AxisOff    = "off"
	AxisPer100 = "per100"
)

// Wowy fetches a team's stats with one player on or off the floor.
type Wowy struct {
	client *Client
}

func NewWowy(c *Client) *Wowy { return &Wowy{client: c} }

func (w *Wowy) Tag() string { return TagWowy }

func (w *Wowy) Fetch(ctx context.Context, req fetch.Request) ([]fetch.Record, error) {
	teamID, err := TeamID(req.Item.Team)
	if err != nil {
		return nil, fetch.Permanent(err)
	}
	var floorKey string
	switch req.Item.Axis {
	case AxisOn:
		floorKey = "0Exactly1OnFloor"
	case AxisOff:
		floorKey = "0Exactly0OnFloor"
	default:
		return nil, fetch.Permanent(errors.Newf("wowy axis %q is neither on nor off", req.Item.Axis))
	}

	from, to := req.Window.ISO()
	params := url.Values{}
	params.Set("Season", req.Window.Season)
	params.Set("SeasonType", SeasonType(req.Item.GameType))
	params.Set("Type", "Team")
	params.Set("FromDate", from)
	params.Set("ToDate", to)
	params.Set("TeamId", strconv.Itoa(teamID))
	params.Set(floorKey, req.PlayerID)

	body, err := w.client.get(ctx, "/get-wowy-stats/nba", params)
	if err != nil {
		return nil, err
	}
	raw, ok := body["single_row_table_data"]
	if !ok {
		return nil, errors.New("malformed wowy response: missing single_row_table_data")
	}
	if raw == nil {
		return nil, nil
	}
	stats, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Newf("malformed wowy response: single_row_table_data is %T", raw)
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return []fetch.Record{{Name: req.Item.Entity, Fields: stats}}, nil
}

// Totals fetches league-wide per-100-possession player totals.
type Totals struct {
	client *Client
}

func NewTotals(c *Client) *Totals { return &Totals{client: c} }

func (t *Totals) Tag() string { return TagTotals }

func (t *Totals) Fetch(ctx context.Context, req fetch.Request) ([]fetch.Record, error) {
	from, to := req.Window.ISO()
	params := url.Values{}
	params.Set("Season", req.Window.Season)
	params.Set("SeasonType", SeasonType(req.Item.GameType))
	params.Set("Type", "Player")
	params.Set("FromDate", from)
	params.Set("ToDate", to)
	params.Set("StartType", "All")
	params.Set("StatType", "Per100Possessions")

	body, err := t.client.get(ctx, "/get-totals/nba", params)
	if err != nil {
		return nil, err
	}
	raw, ok := body["multi_row_table_data"]
	if !ok {
		return nil, errors.New("malformed totals response: missing multi_row_table_data")
	}
	if raw == nil {
		return nil, nil
	}
	rows, ok := raw.([]any)
	if !ok {
		return nil, errors.Newf("malformed totals response: multi_row_table_data is %T", raw)
	}

	records := make([]fetch.Record, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		name, _ := row["Name"].(string)
		if name == "" {
			continue
		}
		records = append(records, fetch.Record{Name: name, Fields: row})
	}
	return records, nil
}
