package pbpstats

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownTeam is returned for team names with no NBA team id.
var ErrUnknownTeam = errors.New("unknown team")

var teamIDs = map[string]int{
	"hawks":         1610612737,
	"celtics":       1610612738,
	"nets":          1610612751,
	"hornets":       1610612766,
	"bulls":         1610612741,
	"cavaliers":     1610612739,
	"mavericks":     1610612742,
	"nuggets":       1610612743,
	"pistons":       1610612765,
	"warriors":      1610612744,
	"rockets":       1610612745,
	"pacers":        1610612754,
	"clippers":      1610612746,
	"lakers":        1610612747,
	"grizzlies":     1610612763,
	"heat":          1610612748,
	"bucks":         1610612749,
	"timberwolves":  1610612750,
	"pelicans":      1610612740,
	"knicks":        1610612752,
	"thunder":       1610612760,
	"magic":         1610612753,
	"76ers":         1610612755,
	"suns":          1610612756,
	"trail blazers": 1610612757,
	"kings":         1610612758,
	"spurs":         1610612759,
	"raptors":       1610612761,
	"jazz":          1610612762,
	"wizards":       1610612764,
}

// abbreviations used by stats.nba.com and by the archived ratings pages
var teamAbbrs = map[string]string{
	"ATL": "hawks", "BOS": "celtics", "BKN": "nets", "BRK": "nets",
	"CHA": "hornets", "CHO": "hornets", "CHI": "bulls", "CLE": "cavaliers",
	"DAL": "mavericks", "DEN": "nuggets", "DET": "pistons", "GSW": "warriors",
	"HOU": "rockets", "IND": "pacers", "LAC": "clippers", "LAL": "lakers",
	"MEM": "grizzlies", "MIA": "heat", "MIL": "bucks", "MIN": "timberwolves",
	"NOP": "pelicans", "NYK": "knicks", "OKC": "thunder", "ORL": "magic",
	"PHI": "76ers", "PHX": "suns", "PHO": "suns", "POR": "trail blazers",
	"SAC": "kings", "SAS": "spurs", "TOR": "raptors", "UTA": "jazz",
	"WAS": "wizards",
}

// TeamID resolves a nickname ("Trail Blazers"), abbreviation ("POR") or full
// name ("Portland Trail Blazers"). For multi-team entries such as "BRK/PHI"
// the last team listed is used.
func TeamID(team string) (int, error) {
	t := strings.TrimSpace(team)
	if i := strings.LastIndexAny(t, "/,"); i >= 0 {
		t = strings.TrimSpace(t[i+1:])
	}
	if nick, ok := teamAbbrs[strings.ToUpper(t)]; ok {
		return teamIDs[nick], nil
	}
	lower := strings.ToLower(t)
	if id, ok := teamIDs[lower]; ok {
		return id, nil
	}
	for nick, id := range teamIDs {
		if strings.HasSuffix(lower, " "+nick) {
			return id, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownTeam, "%q", team)
}
