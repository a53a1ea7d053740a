// Command tallyctl reads and updates the daily ticket tally from a terminal,
// against the same store the server uses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/store"
	"github.com/lorrc/ticket-tally/internal/config"
	"github.com/lorrc/ticket-tally/internal/core/services"
	"github.com/lorrc/ticket-tally/internal/infrastructure/logging"
)

// app carries what every subcommand needs. Tests replace openStore.
type app struct {
	logger    *slog.Logger
	openStore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error)
	now       func() time.Time

	verbose bool
	timeout time.Duration
}

func newApp() *app {
	return &app{
		openStore: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
			return store.Open(ctx, cfg, nil, logger)
		},
		now: time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tallyctl",
		Short: "Inspect and update the daily ticket tally",
		Long: `tallyctl works on the same tabular store as the server, selected by
STORE_BACKEND and the related environment variables (a .env file in the
working directory is read too).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if a.verbose {
				level = "debug"
			}
			a.logger = logging.NewLogger(logging.Config{
				Level:       level,
				Format:      "text",
				Output:      cmd.ErrOrStderr(),
				ServiceName: "tallyctl",
			})
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(
		newShowCmd(a),
		newSubmitCmd(a),
		newExportCmd(a),
		newSummaryCmd(a),
		newHashPasswordCmd(a),
		newTokenCmd(a),
	)
	return rootCmd
}

// withService loads configuration, opens the store and hands a ready
// service to fn. The store is closed afterwards.
func (a *app) withService(ctx context.Context, fn func(ctx context.Context, svc *services.TallyService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	s, err := a.openStore(ctx, cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			a.logger.Warn("failed to close store", "error", cerr)
		}
	}()

	svc := services.NewTallyService(s, nil, nil, a.logger, services.TallyServiceConfig{
		Location: cfg.Location(),
		Now:      a.now,
	})
	if err := svc.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
