package scrape

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rapture/season"
	"rapture/utils"

	"go.uber.org/zap"
)

// Unit is one snapshot file. All of a unit's items are marked done together.
type Unit struct {
	ID        string // path relative to the data dir, e.g. "Playoffs/20220501000000.csv"
	Path      string
	GameType  season.GameType
	Timestamp season.Timestamp
}

// Marker is the completed-log entry for this unit under one source.
func (u Unit) Marker(source string) string {
	return source + ":" + u.ID
}

// Discover lists snapshot files under dataDir/<game type dir>/ for each game
// type, in timestamp order. Missing directories and files whose stem is not a
// snapshot timestamp are logged and skipped.
func Discover(dataDir string, gameTypes []season.GameType, logger *zap.Logger) ([]Unit, error) {
	var units []Unit
	for _, gt := range gameTypes {
		dir := filepath.Join(dataDir, gt.Dir())
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			logger.Warn("skipping missing snapshot directory", zap.String("dir", dir))
			continue
		}
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
				continue
			}
			stem := strings.TrimSuffix(e.Name(), ".csv")
			ts, err := season.ParseTimestamp(stem)
			if err != nil {
				logger.Info("not processing file", zap.String("dir", dir), zap.String("file", e.Name()))
				continue
			}
			units = append(units, Unit{
				ID:        gt.Dir() + "/" + e.Name(),
				Path:      filepath.Join(dir, e.Name()),
				GameType:  gt,
				Timestamp: ts,
			})
		}
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].Timestamp < units[j].Timestamp })
	return units, nil
}
