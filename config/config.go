// Package config holds every tunable of an ingest run. Values are layered:
// Default, then environment (a .env file is loaded first when present), then
// command-line flags. Validate runs last.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"rapture/fetch"
	"rapture/season"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

const envPrefix = "RAPTURE_"

type Config struct {
	DataDir      string `validate:"required"`
	CompletedLog string `validate:"required"`
	FailureLog   string `validate:"required"`

	DBDriver string `validate:"oneof=sqlite3 postgres"`
	DBURL    string `validate:"required"`
	RedisURL string `validate:"omitempty,url"`
	// RedisKey names the marker set when RedisURL is set.
	RedisKey   string `validate:"required_with=RedisURL"`
	StatusAddr string `validate:"omitempty,hostname_port"`

	Concurrency int           `validate:"min=1"`
	Workers     int           `validate:"min=1"`
	MaxAttempts int           `validate:"min=1"`
	BaseDelay   time.Duration `validate:"gt=0"`
	MaxDelay    time.Duration `validate:"gtefield=BaseDelay"`
	Threshold   int           `validate:"min=0,max=100"`

	RequestsPerSecond float64       `validate:"gt=0"`
	Burst             int           `validate:"min=1"`
	Timeout           time.Duration `validate:"gt=0"`

	TrackingCategories []string `validate:"min=1,dive,required"`
	GameTypes          []string `validate:"min=1,dive,required"`
	Reference          string   `validate:"oneof=pbpstats nba"`
	ReferenceSeason    string   `validate:"required_if=Reference nba"`

	PbpstatsURL string `validate:"url"`
	NBAURL      string `validate:"url"`
	WaybackURL  string `validate:"url"`

	Prod     bool
	LogLevel string `validate:"oneof=debug info warn error"`
}

func Default() *Config {
	return &Config{
		DataDir:            "data",
		CompletedLog:       "state/completed.log",
		FailureLog:         "state/failures.jsonl",
		DBDriver:           "sqlite3",
		DBURL:              "state/rapture.db",
		RedisKey:           "rapture:completed",
		Concurrency:        10,
		Workers:            64,
		MaxAttempts:        fetch.DefaultPolicy.MaxAttempts,
		BaseDelay:          fetch.DefaultPolicy.Base,
		MaxDelay:           fetch.DefaultPolicy.Cap,
		Threshold:          80,
		RequestsPerSecond:  5,
		Burst:              3,
		Timeout:            60 * time.Second,
		TrackingCategories: []string{"SpeedDistance"},
		GameTypes:          []string{string(season.Regular), string(season.Playoffs)},
		Reference:          "pbpstats",
		ReferenceSeason:    "2022-23",
		PbpstatsURL:        "https://api.pbpstats.com",
		NBAURL:             "https://stats.nba.com/stats",
		WaybackURL:         "https://web.archive.org",
		LogLevel:           "info",
	}
}

// LoadDotEnv reads .env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// ApplyEnv overrides fields from RAPTURE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = splitList(v)
		}
	}
	var errs error
	integer := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = errors.CombineErrors(errs, errors.Wrapf(err, "%s%s", envPrefix, name))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = errors.CombineErrors(errs, errors.Wrapf(err, "%s%s", envPrefix, name))
				return
			}
			*dst = d
		}
	}

	str("DATA_DIR", &c.DataDir)
	str("COMPLETED_LOG", &c.CompletedLog)
	str("FAILURE_LOG", &c.FailureLog)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_URL", &c.DBURL)
	str("REDIS_URL", &c.RedisURL)
	str("REDIS_KEY", &c.RedisKey)
	str("STATUS_ADDR", &c.StatusAddr)
	integer("CONCURRENCY", &c.Concurrency)
	integer("WORKERS", &c.Workers)
	integer("MAX_ATTEMPTS", &c.MaxAttempts)
	duration("BASE_DELAY", &c.BaseDelay)
	duration("MAX_DELAY", &c.MaxDelay)
	integer("THRESHOLD", &c.Threshold)
	if v, ok := lookup(envPrefix + "RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "%sRPS", envPrefix))
		} else {
			c.RequestsPerSecond = f
		}
	}
	integer("BURST", &c.Burst)
	duration("TIMEOUT", &c.Timeout)
	list("TRACKING_CATEGORIES", &c.TrackingCategories)
	list("GAME_TYPES", &c.GameTypes)
	str("REFERENCE", &c.Reference)
	str("REFERENCE_SEASON", &c.ReferenceSeason)
	str("PBPSTATS_URL", &c.PbpstatsURL)
	str("NBA_URL", &c.NBAURL)
	str("WAYBACK_URL", &c.WaybackURL)
	if v, ok := lookup(envPrefix + "PROD"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "%sPROD", envPrefix))
		} else {
			c.Prod = b
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	return errs
}

// BindFlags registers a flag per field, using the current values as
// defaults so flags win over env.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "snapshot CSV root")
	fs.StringVar(&c.CompletedLog, "completed-log", c.CompletedLog, "append-only completed marker log")
	fs.StringVar(&c.FailureLog, "failure-log", c.FailureLog, "JSON lines log of permanently failed items")
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "sqlite3 or postgres")
	fs.StringVar(&c.DBURL, "db-url", c.DBURL, "sqlite file path or postgres URL")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "keep completed markers in redis instead of the log file")
	fs.StringVar(&c.RedisKey, "redis-key", c.RedisKey, "redis set holding completed markers")
	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "serve run status on this address, e.g. :8080")
	fs.IntVarP(&c.Concurrency, "concurrency", "n", c.Concurrency, "max in-flight upstream calls")
	fs.IntVar(&c.Workers, "workers", c.Workers, "worker pool size")
	fs.IntVar(&c.MaxAttempts, "max-attempts", c.MaxAttempts, "attempts per item before giving up")
	fs.DurationVar(&c.BaseDelay, "base-delay", c.BaseDelay, "first retry delay")
	fs.DurationVar(&c.MaxDelay, "max-delay", c.MaxDelay, "retry delay ceiling")
	fs.IntVar(&c.Threshold, "threshold", c.Threshold, "minimum name match score (0-100)")
	fs.Float64Var(&c.RequestsPerSecond, "rps", c.RequestsPerSecond, "requests per second per upstream")
	fs.IntVar(&c.Burst, "burst", c.Burst, "rate limiter burst")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "per-request timeout")
	fs.StringSliceVar(&c.TrackingCategories, "categories", c.TrackingCategories, "stats.nba.com tracking categories")
	fs.StringSliceVarP(&c.GameTypes, "game-types", "g", c.GameTypes, "game types to process")
	fs.StringVar(&c.Reference, "reference", c.Reference, "player reference list: pbpstats or nba")
	fs.StringVar(&c.ReferenceSeason, "reference-season", c.ReferenceSeason, "season for the nba reference list")
	fs.StringVar(&c.PbpstatsURL, "pbpstats-url", c.PbpstatsURL, "pbpstats API base URL")
	fs.StringVar(&c.NBAURL, "nba-url", c.NBAURL, "stats.nba.com base URL")
	fs.StringVar(&c.WaybackURL, "wayback-url", c.WaybackURL, "Wayback Machine base URL")
	fs.BoolVarP(&c.Prod, "prod", "p", c.Prod, "designates production")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if _, err := c.ParsedGameTypes(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func (c *Config) ParsedGameTypes() ([]season.GameType, error) {
	out := make([]season.GameType, 0, len(c.GameTypes))
	for _, s := range c.GameTypes {
		gt, err := season.ParseGameType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, gt)
	}
	return out, nil
}

func (c *Config) Policy() fetch.Policy {
	return fetch.Policy{MaxAttempts: c.MaxAttempts, Base: c.BaseDelay, Cap: c.MaxDelay}
}

// Limiter returns a fresh limiter; each upstream gets its own.
func (c *Config) Limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.Burst)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
