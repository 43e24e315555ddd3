package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mwanga/app/server"
	"mwanga/config"
	"mwanga/logger"
)

func main() {
	root := &cobra.Command{
		Use:           "mwanga",
		Short:         "Product catalog chat assistant",
		Long:          "Mwanga answers questions about an uploaded product catalog, falling back to general knowledge when the catalog has no answer.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var envFile string
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		serveCmd(&envFile),
		askCmd(&envFile),
		ingestCmd(&envFile),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger.
func setup(envFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	l, err := logger.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			s, err := server.NewServer(cmd.Context(), cfg, l)
			if err != nil {
				return err
			}

			errch := make(chan error, 1)
			go func() { errch <- s.Run() }()

			sigch := make(chan os.Signal, 1)
			signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigch:
				l.Info("received shutdown signal, shutting down server")
				s.Stop()
				return nil
			case err := <-errch:
				s.Stop()
				return err
			}
		},
	}
}

func askCmd(envFile *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Chat with a catalog in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			resolver, err := server.NewResolver(cfg, l)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), file, newIngestor(l), resolver)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog to chat about (prompted for when empty)")
	return cmd
}

func ingestCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE",
		Short: "Print the text extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, l, err := setup(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			return runIngest(cmd.Context(), cmd.OutOrStdout(), args[0], newIngestor(l))
		},
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
