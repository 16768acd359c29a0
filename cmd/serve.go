package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/kozaktomas/eventphoto/internal/supervisor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion engine: watcher, worker pool, and upload queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := newLogger(cfg.Logging)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sup, err := supervisor.New(ctx, cfg, log)
		if err != nil {
			return err
		}

		log.Info().Str("event_root", cfg.Paths.EventRoot).Int("workers", cfg.Pipeline.WorkerCount).Msg("starting engine")
		return sup.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the zerolog logger the teacher's commands construct
// per-invocation, switching between pretty console output in development
// and structured JSON in production.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer = os.Stderr
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if cfg.Environment != "production" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: writer})
	}
	return logger
}
