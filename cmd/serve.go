package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/swim4love/swim4love/internal/api"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/database"
	"github.com/swim4love/swim4love/internal/engine"
	"github.com/swim4love/swim4love/internal/hub"
	"github.com/swim4love/swim4love/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Swim4Love server",
	Long:  `Start the web server that serves the lap counter, the admin pages and the live leaderboard.`,
	Example: `swim4love serve --config config.yml
swim4love serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the admin account always matches the configured secret
	if _, err := db.ReconcileAdmin(ctx, cfg.AdminSecret()); err != nil {
		return fmt.Errorf("failed to reconcile admin account: %w", err)
	}

	h := hub.New(cfg.Live.GetQueueSize())
	defer h.Close()
	eng := engine.New(cfg, db, h)

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	if cfg.Live.ResyncInterval > 0 {
		if err := sched.AddIntervalJob("standings-resync", "Standings resync", cfg.Live.ResyncInterval, eng.Resync); err != nil {
			return err
		}
	}

	server, err := api.New(ctx, cfg, eng, sched, log.GetLevel() == log.DebugLevel)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Run)
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Stop()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully...")
		// live viewers hold their connections open, drop them first
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("swim4love started successfully", "listen", cfg.Listen, "id_length", cfg.SwimmerIDLength)
	return g.Wait()
}
