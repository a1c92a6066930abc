package main

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/catalog-mapper/internal/api"
	"github.com/Veraticus/catalog-mapper/internal/engine"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve review sessions over HTTP",
		Long: `Start the HTTP control surface. Clients create a session, start it with
their marketplace credentials, settle pending decisions and submit.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ledger, err := openLedger(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	deps, err := buildDependencies(settings, ledger, nil)
	if err != nil {
		return err
	}

	manager, err := engine.NewManager(deps, settings.Session)
	if err != nil {
		return err
	}

	server, err := api.NewServer(manager, sourceFactory(settings), slog.Default())
	if err != nil {
		return err
	}
	if err := server.Start(ctx, settings.Server.Addr); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutting down api server")
	server.Stop()
	return nil
}
