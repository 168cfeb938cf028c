package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zylisp/harold/config"
	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/transport/process"
)

func newEngineCmd(flags *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "engine",
		Short: "Serve the echo engine over stdin and stdout",
		Long: `engine runs the built-in echo engine speaking the relay protocol on
stdin and stdout, so it can be started with --engine "harold engine".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags)
			if err != nil {
				return err
			}
			return serveEngine(cmd.Context(), cfg)
		},
	}
}

func serveEngine(ctx context.Context, cfg *config.Config) error {
	log, closer, err := logger.NewFileLogger("engine", cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()

	if id := os.Getenv(process.SessionEnv); id != "" {
		log.Logger = log.With().Str("session", id).Logger()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("codec", cfg.Codec).Msg("engine serving on stdio")

	srv := process.NewServer(operations.NewEcho(), cfg.Codec, log)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("engine stopped")
		return err
	}
	return nil
}
