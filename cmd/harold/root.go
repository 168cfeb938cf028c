package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zylisp/harold"
	"github.com/zylisp/harold/config"
	"github.com/zylisp/harold/console"
	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/relay"
)

func newRootCmd() *cobra.Command {
	flags := &config.Config{}

	cmd := &cobra.Command{
		Use:   "harold",
		Short: "Talk to a conversational engine from the terminal",
		Long: `harold relays what you type to a conversational engine and prints its
replies. Without --engine it talks to a built-in echo engine.`,
		Version:      versionString(),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&flags.Engine, "engine", "", "engine command line to run as a child process")
	cmd.Flags().StringVar(&flags.Prompt, "prompt", "", "initial prompt (default \"You: \")")
	cmd.Flags().StringVar(&flags.HistoryFile, "history-file", "", "file to keep input history in")
	cmd.PersistentFlags().StringVar(&flags.Codec, "codec", "", "wire format for engine processes: json or msgpack")
	cmd.PersistentFlags().StringVar(&flags.Log.File, "log-file", "", "append logs to this file")
	cmd.PersistentFlags().StringVar(&flags.Log.Level, "log-level", "", "log level (default info)")

	cmd.AddCommand(newEngineCmd(flags))
	return cmd
}

func runConsole(ctx context.Context, cfg *config.Config) error {
	log, closer, err := logger.NewFileLogger("console", cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()

	sessionID := uuid.NewString()
	log.Logger = log.With().Str("session", sessionID).Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	transport, err := harold.Connect(ctx, harold.Config{
		Command:   cfg.EngineArgs(),
		Codec:     cfg.Codec,
		Engine:    operations.NewEcho(),
		SessionID: sessionID,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to engine")
		return fmt.Errorf("connect to engine: %w", err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Warn().Err(err).Msg("engine did not shut down cleanly")
		}
	}()

	con, err := console.New(console.Options{
		Prompt:      cfg.Prompt,
		HistoryFile: cfg.HistoryFile,
		Log:         log.GetChildLogger(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to open console")
		return err
	}
	defer con.Close()

	log.Info().Str("engine", cfg.Engine).Str("codec", cfg.Codec).Msg("session starting")

	return relay.New(con, transport, log).Run(ctx)
}

func versionString() string {
	version, commit := buildVersion, buildCommit
	if version == "" {
		version = "N/A"
	}
	if commit == "" {
		commit = "N/A"
	}
	return fmt.Sprintf("%s (commit %s)", version, commit)
}
