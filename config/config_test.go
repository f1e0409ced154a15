package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rapture/season"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 10, c.Concurrency)
	assert.Equal(t, 80, c.Threshold)

	p := c.Policy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Base)
	assert.Equal(t, 600*time.Second, p.Cap)

	gts, err := c.ParsedGameTypes()
	require.NoError(t, err)
	assert.Equal(t, []season.GameType{season.Regular, season.Playoffs}, gts)

	l := c.Limiter()
	assert.Equal(t, 3, l.Burst())
	assert.NotSame(t, l, c.Limiter())
}

func TestLayering(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyEnv(envMap(map[string]string{
		"RAPTURE_CONCURRENCY": "4",
		"RAPTURE_BASE_DELAY":  "2s",
		"RAPTURE_GAME_TYPES":  "playoffs, full ,",
		"RAPTURE_THRESHOLD":   "90",
		"RAPTURE_PROD":        "true",
	})))
	assert.Equal(t, 4, c.Concurrency)
	assert.Equal(t, 2*time.Second, c.BaseDelay)
	assert.Equal(t, []string{"playoffs", "full"}, c.GameTypes)
	assert.True(t, c.Prod)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-n", "7", "--categories", "Defense,Rebounding"}))
	assert.Equal(t, 7, c.Concurrency, "flag beats env")
	assert.Equal(t, 90, c.Threshold, "env survives when no flag is given")
	assert.Equal(t, []string{"Defense", "Rebounding"}, c.TrackingCategories)
	require.NoError(t, c.Validate())
}

func TestApplyEnvReportsEveryBadValue(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envMap(map[string]string{
		"RAPTURE_WORKERS": "many",
		"RAPTURE_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAPTURE_WORKERS")
	assert.Equal(t, 64, c.Workers)
	assert.Equal(t, 60*time.Second, c.Timeout)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"threshold above 100", func(c *Config) { c.Threshold = 101 }},
		{"cap below base", func(c *Config) { c.MaxDelay = c.BaseDelay / 2 }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mongo" }},
		{"bad game type", func(c *Config) { c.GameTypes = []string{"preseason"} }},
		{"no categories", func(c *Config) { c.TrackingCategories = nil }},
		{"unknown reference", func(c *Config) { c.Reference = "espn" }},
		{"nba reference without season", func(c *Config) { c.Reference = "nba"; c.ReferenceSeason = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad base url", func(c *Config) { c.NBAURL = "stats" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RAPTURE_TEST_ONLY_KEY=from-file\n"), 0o644))
	t.Setenv("RAPTURE_TEST_ONLY_KEY", "")
	os.Unsetenv("RAPTURE_TEST_ONLY_KEY")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("RAPTURE_TEST_ONLY_KEY"))
}
