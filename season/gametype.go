package season

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// GameType selects which part of a season a query window covers.
type GameType string

const (
	Regular  GameType = "regular"
	Playoffs GameType = "playoffs"
	Full     GameType = "full"
	PlayIn   GameType = "playin"
)

// GameTypes lists every game type in enumeration order.
var GameTypes = []GameType{Regular, Playoffs, Full, PlayIn}

var gameTypeDirs = map[GameType]string{
	Regular:  "Regular season",
	Playoffs: "Playoffs",
	Full:     "Full season",
	PlayIn:   "Play in",
}

// ParseGameType accepts the canonical names, the snapshot directory names and
// the upstream tags ("Regular Season", "All", "PlayIn"), case-insensitively.
func ParseGameType(s string) (GameType, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch key {
	case "regular", "regularseason":
		return Regular, nil
	case "playoffs", "postseason":
		return Playoffs, nil
	case "full", "fullseason", "all":
		return Full, nil
	case "playin":
		return PlayIn, nil
	}
	return "", errors.Newf("unknown game type %q", s)
}

// Dir is the snapshot directory holding files for this game type.
func (g GameType) Dir() string {
	return gameTypeDirs[g]
}

func (g GameType) String() string { return string(g) }
