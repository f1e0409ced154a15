package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"rapture/fetch"
	"rapture/identity"
	"rapture/nba"
	"rapture/pbpstats"
	"rapture/progress"
	"rapture/scrape"
	"rapture/season"
	"rapture/status"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// plan is one ingestable source with the way its units expand.
type plan struct {
	source    fetch.Source
	resolver  fetch.Resolver
	axes      []string
	perPlayer bool
}

func ingestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch upstream stats for every snapshot file and store them",
	}
	for _, name := range []string{pbpstats.TagWowy, "totals", "tracking"} {
		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Ingest " + name,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.ingest(cmd.Context(), cmd.OutOrStdout(), name)
			},
		})
	}
	return cmd
}

func (a *app) plan(ctx context.Context, name string) (plan, error) {
	cfg := a.cfg
	switch name {
	case pbpstats.TagWowy:
		pbp := pbpstats.NewClient(cfg.PbpstatsURL, cfg.Limiter(), cfg.Timeout, a.logger)
		resolver, err := a.resolver(ctx, pbp)
		if err != nil {
			return plan{}, err
		}
		return plan{
			source:    pbpstats.NewWowy(pbp),
			resolver:  resolver,
			axes:      []string{pbpstats.AxisOn, pbpstats.AxisOff},
			perPlayer: true,
		}, nil
	case "totals":
		pbp := pbpstats.NewClient(cfg.PbpstatsURL, cfg.Limiter(), cfg.Timeout, a.logger)
		return plan{source: pbpstats.NewTotals(pbp), axes: []string{pbpstats.AxisPer100}}, nil
	case "tracking":
		c := nba.NewClient(cfg.NBAURL, cfg.Limiter(), cfg.Timeout, a.logger)
		return plan{source: nba.NewTracking(c), axes: cfg.TrackingCategories}, nil
	}
	return plan{}, errors.Newf("unknown source %q", name)
}

// resolver downloads the player reference list, retrying under the run's
// policy, and indexes it.
func (a *app) resolver(ctx context.Context, pbp *pbpstats.Client) (*identity.Resolver, error) {
	var ref map[string]string
	policy := a.cfg.Policy()
	_, err := policy.Retry(ctx, fetch.Sleep, func(ctx context.Context, _ int) error {
		var err error
		if a.cfg.Reference == "nba" {
			c := nba.NewClient(a.cfg.NBAURL, a.cfg.Limiter(), a.cfg.Timeout, a.logger)
			var players []nba.CommonAllPlayer
			players, err = c.CommonAllPlayers(ctx, a.cfg.ReferenceSeason)
			ref = nba.Reference(players)
		} else {
			ref, err = pbp.AllPlayers(ctx)
		}
		return err
	}, func(attempt int, delay time.Duration, err error) {
		a.logger.Warn("retrying player reference", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})
	if err != nil {
		return nil, errors.Wrap(err, "player reference list")
	}
	r, err := identity.NewResolver(ref, a.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	a.logger.Info("player reference loaded", zap.String("reference", a.cfg.Reference), zap.Int("players", r.Len()))
	return r, nil
}

func (a *app) ingest(ctx context.Context, out io.Writer, name string) error {
	p, err := a.plan(ctx, name)
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	markers, err := a.openMarkers()
	if err != nil {
		return err
	}
	defer markers.Close()
	failures, err := progress.OpenFailureLog(a.cfg.FailureLog, a.runID)
	if err != nil {
		return err
	}
	defer failures.Close()

	gameTypes, err := a.cfg.ParsedGameTypes()
	if err != nil {
		return err
	}
	units, err := scrape.Discover(a.cfg.DataDir, gameTypes, a.logger)
	if err != nil {
		return err
	}
	tag := p.source.Tag()
	a.logger.Info("starting ingest",
		zap.String("run_id", a.runID),
		zap.String("source", tag),
		zap.Int("units", len(units)),
		zap.Int("concurrency", a.cfg.Concurrency))

	gov := scrape.NewGovernor(a.cfg.Concurrency)
	pipeline := scrape.NewPipeline(scrape.Deps{
		Client:   fetch.NewClient(p.source, p.resolver, gov, a.cfg.Policy(), a.logger),
		Tracker:  progress.NewTracker(markers, store, a.logger),
		Sink:     store,
		Failures: failures,
		Workers:  a.cfg.Workers,
		Policy:   a.cfg.Policy(),
		Logger:   a.logger,
		RunID:    a.runID,
	})
	stopStatus := a.serveStatus(status.Run{
		ID:          a.runID,
		Source:      tag,
		Started:     time.Now(),
		Progress:    pipeline.Progress(),
		Governor:    gov,
		FailurePath: a.cfg.FailureLog,
	})
	defer stopStatus()

	enum := scrape.NewEnumerator(season.NBA, tag, p.axes, a.logger)
	expand := enum.LeagueWide
	if p.perPlayer {
		expand = enum.PerPlayer
	}
	summary, err := pipeline.Run(ctx, units, expand)
	if err != nil {
		return err
	}
	return a.report(out, summary)
}

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Store the archived 538 snapshot rows themselves",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			markers, err := a.openMarkers()
			if err != nil {
				return err
			}
			defer markers.Close()

			gameTypes, err := a.cfg.ParsedGameTypes()
			if err != nil {
				return err
			}
			units, err := scrape.Discover(a.cfg.DataDir, gameTypes, a.logger)
			if err != nil {
				return err
			}
			im := scrape.NewImporter(progress.NewTracker(markers, store, a.logger), store, season.NBA, a.runID, a.logger)
			stopStatus := a.serveStatus(status.Run{
				ID:          a.runID,
				Source:      scrape.Tag538,
				Started:     time.Now(),
				Progress:    im.Progress(),
				FailurePath: a.cfg.FailureLog,
			})
			defer stopStatus()
			return a.report(cmd.OutOrStdout(), im.Run(ctx, units))
		},
	}
}

// serveStatus starts the status server when an address is configured and
// returns its shutdown func.
func (a *app) serveStatus(run status.Run) func() {
	if a.cfg.StatusAddr == "" {
		return func() {}
	}
	s := status.New(run, a.logger)
	s.Start(a.cfg.StatusAddr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			a.logger.Warn("status server shutdown", zap.Error(err))
		}
	}
}

// report logs the run summary and prints it as JSON.
func (a *app) report(out io.Writer, s scrape.Summary) error {
	s.Log(a.logger)
	b, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode summary")
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
