package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rapture/config"
	"rapture/db"
	"rapture/progress"
	"rapture/utils"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string
}

func main() {
	cfg := config.Default()
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd(&app{cfg: cfg}).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func rootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "rapture",
		Short:         "Ingest NBA player performance data from archived snapshots",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			logger, err := utils.NewLogger(a.cfg.Prod, a.cfg.LogLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			a.runID = uuid.NewString()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	a.cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(ingestCmd(a))
	root.AddCommand(importCmd(a))
	root.AddCommand(snapshotsCmd(a))
	root.AddCommand(failuresCmd(a))
	root.AddCommand(migrateCmd(a))
	return root
}

func (a *app) openStore(ctx context.Context) (*db.Store, error) {
	store, err := db.Open(ctx, a.cfg.DBDriver, a.cfg.DBURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// openMarkers picks the completed-marker backend: a redis set when a URL is
// configured, the append-only log file otherwise.
func (a *app) openMarkers() (progress.MarkerSet, error) {
	if a.cfg.RedisURL != "" {
		a.logger.Info("using redis marker set", zap.String("key", a.cfg.RedisKey))
		return progress.NewRedisSet(a.cfg.RedisURL, a.cfg.RedisKey)
	}
	return progress.OpenLog(a.cfg.CompletedLog)
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the document store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "migrate")
			}
			defer store.Close()
			a.logger.Info("store is up to date", zap.String("driver", a.cfg.DBDriver))
			return nil
		},
	}
}

func failuresCmd(a *app) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List permanently failed items from the failure log",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, bad, err := progress.ReadFailures(a.cfg.FailureLog)
			if err != nil {
				return err
			}
			if bad > 0 {
				a.logger.Warn("skipped unreadable failure log lines", zap.Int("lines", bad))
			}
			if runID == "" {
				runID = progress.LastRun(entries)
			}
			if runID == "all" {
				runID = ""
			}
			keys := progress.FailedKeys(entries, runID)
			out := cmd.OutOrStdout()
			for _, k := range keys {
				fmt.Fprintln(out, k)
			}
			a.logger.Info("failures", zap.String("run_id", runID), zap.Int("count", len(keys)))
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id to report, or all (default: the latest run)")
	return cmd
}
