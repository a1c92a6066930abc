package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/config"
)

var (
	cfgFile  string
	version  = "dev"
	settings *config.Settings
	rootCmd  = &cobra.Command{
		Use:   "mapper",
		Short: "Map a product feed onto the marketplace category tree",
		Long: `catalog-mapper reads a YML product feed, matches every offer against the
marketplace category taxonomy, asks a human when a match is uncertain and
uploads the resulting listings in paced batches.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/mapper/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("taxonomy", "", "category tree JSON file")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("taxonomy.path", rootCmd.PersistentFlags().Lookup("taxonomy"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(taxonomyCmd())
	rootCmd.AddCommand(modelCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received termination signal, shutting down...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, userErr.UserMessage)
			slog.Debug("Command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "mapper"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	settings = loaded

	level, err := common.ParseLevel(settings.Logging.Level)
	if err != nil {
		return err
	}
	if err := common.SetupLogger(level, settings.Logging.Format, nil); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("Loaded config file", "path", used)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("mapper", version) //nolint:forbidigo // User-facing output
		},
	}
}
