package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/billbatista/acasinha-chores/api"
	"github.com/billbatista/acasinha-chores/category"
	"github.com/billbatista/acasinha-chores/config"
	"github.com/billbatista/acasinha-chores/database"
	"github.com/billbatista/acasinha-chores/event"
	"github.com/billbatista/acasinha-chores/eventlogger"
	"github.com/billbatista/acasinha-chores/household"
	"github.com/billbatista/acasinha-chores/idempotency"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/billbatista/acasinha-chores/ledger"
	"github.com/billbatista/acasinha-chores/metrics"
	"github.com/billbatista/acasinha-chores/session"
	"github.com/billbatista/acasinha-chores/telemetry"
	"github.com/billbatista/acasinha-chores/user"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "acasinha"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Household chores and shared expenses kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(os.Stderr, flags.logLevel))
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Env file loaded before reading ACASINHA_ variables")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Create the default household users, categories and items",
			RunE: func(cmd *cobra.Command, args []string) error {
				return seedCmd(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openDB loads the configuration and returns a migrated database.
func openDB(ctx context.Context, flags globalFlags) (*config.Config, *database.DB, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return cfg, db, nil
}

func migrate(ctx context.Context, flags globalFlags) error {
	_, db, err := openDB(ctx, flags)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := category.NewRepository(db).Ensure(ctx, defaultCategory, category.DefaultIcon, category.KindOrdinary); err != nil {
		return fmt.Errorf("ensure default category: %w", err)
	}
	slog.Info("database migrated", "driver", db.Dialect())
	return nil
}

func seedCmd(ctx context.Context, flags globalFlags) error {
	cfg, db, err := openDB(ctx, flags)
	if err != nil {
		return err
	}
	defer db.Close()

	return seed(ctx, db, cfg.Tasks)
}

func serve(ctx context.Context, flags globalFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, db, err := openDB(ctx, flags)
	if err != nil {
		return err
	}
	defer db.Close()

	shutdownTracing, err := telemetry.Setup(ctx, appName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	m := metrics.New()

	activityStore := eventlogger.NewSqlEventLogger(db)
	sink, closeSinks, err := activitySink(activityStore, cfg.Activity)
	if err != nil {
		return err
	}
	defer closeSinks()

	worker := eventlogger.NewWorker(sink, cfg.Activity.Buffer,
		eventlogger.OnError(func(eventlogger.Event, error) { m.ActivityFailed() }),
	)
	worker.Start()
	defer worker.Shutdown()

	users := user.NewRepository(db)
	categories := category.NewRepository(db)
	items := item.NewRepository(db)

	deps := api.Deps{
		Users:         users,
		Categories:    categories,
		Items:         items,
		Sessions:      session.NewRepository(db, session.WithTTL(cfg.Session.TTL)),
		Activity:      worker,
		ActivityLog:   activityStore,
		Metrics:       m,
		Money:         api.Money{Currency: cfg.Ledger.Currency, Decimals: cfg.Ledger.Decimals},
		SecureCookies: cfg.Server.SecureCookies,
	}

	if cfg.Idempotency.Path != "" {
		store, err := idempotency.Open(cfg.Idempotency.Path, idempotency.WithTTL(cfg.Idempotency.TTL))
		if err != nil {
			return fmt.Errorf("open idempotency store: %w", err)
		}
		defer store.Close()
		if n, err := store.Purge(time.Now().Add(-cfg.Idempotency.TTL)); err != nil {
			slog.Warn("failed to purge idempotency records", "error", err)
		} else if n > 0 {
			slog.Info("purged idempotency records", "count", n)
		}
		deps.Idempotency = store
	}

	rotationCfg, err := cfg.Rotation.Config()
	if err != nil {
		return err
	}
	loc, err := cfg.Rotation.Location()
	if err != nil {
		return err
	}

	deps.Household = household.New(household.Stores{
		Users:      users,
		Categories: categories,
		Events:     event.NewRepository(db),
		Ledger:     ledger.NewRepository(db),
		Items:      items,
	},
		household.WithLocation(loc),
		household.WithRounding(cfg.Ledger.RoundingPolicy()),
		household.WithRotation(rotationCfg),
		household.WithTaskNames(cfg.Tasks.Cleaning, cfg.Tasks.Trash),
		household.WithMetrics(m),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// activitySink fans activity out to the database plus whichever brokers
// are configured.
func activitySink(store eventlogger.EventLogger, cfg config.ActivityConfig) (eventlogger.EventLogger, func(), error) {
	loggers := []eventlogger.EventLogger{store}
	var closers []io.Closer

	if len(cfg.KafkaBrokers) > 0 {
		k := eventlogger.NewKafkaLogger(cfg.KafkaBrokers, cfg.KafkaTopic)
		loggers = append(loggers, k)
		closers = append(closers, k)
	}
	if cfg.NatsURL != "" {
		n, err := eventlogger.DialNats(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		loggers = append(loggers, n)
		closers = append(closers, n)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Error("failed to close activity sink", "error", err)
			}
		}
	}
	return eventlogger.Tee(loggers...), closeAll, nil
}
