package nba

import (
	"context"
	"net/url"
	"strconv"

	"rapture/utils"
)

type CommonAllPlayer struct {
	PersonID         *float64
	DisplayLastFirst *string
	DisplayFirstLast *string
	RosterStatus     *float64
	FromYear         *string
	ToYear           *string
	TeamID           *float64
	TeamAbbreviation *string
}

// CommonAllPlayers lists every player who appeared in the league up to and
// including season.
func (c *Client) CommonAllPlayers(ctx context.Context, season string) ([]CommonAllPlayer, error) {
	params := url.Values{}
	params.Set("LeagueID", "00")
	params.Set("Season", season)
	params.Set("IsOnlyCurrentSeason", "0")

	rs, err := c.get(ctx, "commonallplayers", params)
	if err != nil {
		return nil, err
	}
	rows := rs.rows()
	players := make([]CommonAllPlayer, len(rows))
	for i, row := range rows {
		players[i] = CommonAllPlayer{
			PersonID:         maybe[float64](row["PERSON_ID"]),
			DisplayLastFirst: maybe[string](row["DISPLAY_LAST_COMMA_FIRST"]),
			DisplayFirstLast: maybe[string](row["DISPLAY_FIRST_LAST"]),
			RosterStatus:     maybe[float64](row["ROSTERSTATUS"]),
			FromYear:         maybe[string](row["FROM_YEAR"]),
			ToYear:           maybe[string](row["TO_YEAR"]),
			TeamID:           maybe[float64](row["TEAM_ID"]),
			TeamAbbreviation: maybe[string](row["TEAM_ABBREVIATION"]),
		}
	}
	return players, nil
}

// Reference maps normalized display names to person ids, skipping rows that
// lack either.
func Reference(players []CommonAllPlayer) map[string]string {
	out := make(map[string]string, len(players))
	for _, p := range players {
		if p.PersonID == nil || p.DisplayFirstLast == nil {
			continue
		}
		out[utils.NormalizeName(*p.DisplayFirstLast)] = strconv.FormatInt(int64(*p.PersonID), 10)
	}
	return out
}
