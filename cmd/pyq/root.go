package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/pyq-analyzer/internal/bootstrap"
	"github.com/bryanwahyu/pyq-analyzer/internal/config"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagTenant  string
	flagDB      string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "pyq",
	Short:         "Analyze previous-year question papers",
	Long:          "pyq extracts questions from PDF and image papers, classifies them by subject and topic, and keeps the results in a local library.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("CONFIG_PATH"), "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", "local", "library namespace")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "sqlite database path (default: XDG data dir)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging to the console")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(clearCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pyq %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// openApp loads config and builds the services. The CLI keeps its library
// in sqlite unless the config names a server-side store.
func openApp(ctx context.Context) (*bootstrap.App, *zap.Logger, error) {
	path := flagConfig
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.Storage.Driver == config.DriverMemory {
		dbPath := flagDB
		if dbPath == "" {
			if dbPath, err = xdg.DataFile("pyq/pyq.db"); err != nil {
				return nil, nil, fmt.Errorf("resolving data dir: %w", err)
			}
		}
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.SQLitePath = dbPath
	}

	log, err := cliLogger()
	if err != nil {
		return nil, nil, err
	}
	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app, log, nil
}

func cliLogger() (*zap.Logger, error) {
	if flagVerbose {
		return logging.New(true, "")
	}
	file, err := xdg.StateFile("pyq/pyq.log")
	if err != nil {
		return zap.NewNop(), nil
	}
	return logging.NewFileOnly(file, false), nil
}
