package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"rapture/season"
	"rapture/wayback"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type snapshotRange struct {
	from, to string
}

func (r *snapshotRange) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "earliest snapshot date (YYYYMMDD or YYYY-MM-DD)")
	cmd.Flags().StringVar(&r.to, "to", "", "latest snapshot date (YYYYMMDD or YYYY-MM-DD)")
}

func snapshotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List or download archived 538 RAPTOR pages",
	}
	cmd.AddCommand(snapshotsListCmd(a), snapshotsFetchCmd(a))
	return cmd
}

func (a *app) snapshots(ctx context.Context, from, to string) ([]wayback.Snapshot, error) {
	c := wayback.NewClient(a.cfg.WaybackURL, a.cfg.Limiter(), a.cfg.Timeout, a.logger)
	snaps, err := c.Snapshots(ctx, wayback.RaptorURL)
	if err != nil {
		return nil, err
	}
	return filterSnapshots(snaps, from, to)
}

// filterSnapshots keeps snapshots whose date falls within [from, to]. Either
// bound may be empty.
func filterSnapshots(snaps []wayback.Snapshot, from, to string) ([]wayback.Snapshot, error) {
	var lo, hi string
	if from != "" {
		ts, err := season.NormalizeTimestamp(from)
		if err != nil {
			return nil, errors.Wrap(err, "--from")
		}
		lo = ts.Date().Format("20060102")
	}
	if to != "" {
		ts, err := season.NormalizeTimestamp(to)
		if err != nil {
			return nil, errors.Wrap(err, "--to")
		}
		hi = ts.Date().Format("20060102")
	}
	out := snaps[:0:0]
	for _, s := range snaps {
		day := string(s.Timestamp)[:8]
		if (lo != "" && day < lo) || (hi != "" && day > hi) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func snapshotsListCmd(a *app) *cobra.Command {
	r := &snapshotRange{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived captures of the ratings page",
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := a.snapshots(cmd.Context(), r.from, r.to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range snaps {
				fmt.Fprintf(out, "%s\t%s\n", s.Timestamp, s.URL)
			}
			return nil
		},
	}
	r.bind(cmd)
	return cmd
}

func snapshotsFetchCmd(a *app) *cobra.Command {
	r := &snapshotRange{}
	var gameType string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download archived captures into the data dir as snapshot files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gt, err := season.ParseGameType(gameType)
			if err != nil {
				return err
			}
			snaps, err := a.snapshots(ctx, r.from, r.to)
			if err != nil {
				return err
			}
			c := wayback.NewClient(a.cfg.WaybackURL, a.cfg.Limiter(), a.cfg.Timeout, a.logger)
			dir := filepath.Join(a.cfg.DataDir, gt.Dir())
			var written, skipped, failed int
			for _, s := range snaps {
				if ctx.Err() != nil {
					break
				}
				path := filepath.Join(dir, string(s.Timestamp)+".csv")
				if _, err := os.Stat(path); err == nil {
					skipped++
					continue
				}
				rows, err := c.Rows(ctx, s)
				if err != nil {
					failed++
					a.logger.Error("downloading snapshot", zap.String("timestamp", string(s.Timestamp)), zap.Error(err))
					continue
				}
				ok, err := wayback.WriteFile(path, rows)
				if err != nil {
					return err
				}
				if !ok {
					skipped++
					continue
				}
				written++
				a.logger.Info("wrote snapshot", zap.String("path", path), zap.Int("rows", len(rows)))
			}
			a.logger.Info("snapshots fetched",
				zap.Int("written", written),
				zap.Int("skipped", skipped),
				zap.Int("failed", failed))
			return ctx.Err()
		},
	}
	r.bind(cmd)
	cmd.Flags().StringVarP(&gameType, "game-type", "t", string(season.Regular), "which game-type dir to write into")
	return cmd
}
