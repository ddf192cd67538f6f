package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saulfrancisco-ruizacevedo/go-neomapper"
)

var (
	configPath string
	verbose    bool

	cfg    neomapper.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "neomapper",
	Short: "Inspect and edit a Neo4j graph through the neomapper mapping layer",
	Long: `neomapper creates, reads, updates and deletes nodes and relationships
through compiled, parametrized Cypher statements and prints the results
as JSON.

Connection settings are read from --config (YAML) and NEOMAPPER_*
environment variables. Run 'neomapper config init' to write a starter file.`,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every executed statement")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(edgeCmd)
	rootCmd.AddCommand(graphCmd)
}

// setup loads the configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	// config init writes the file the other commands read.
	if cmd.Name() == "init" && cmd.Parent() == configCmd {
		cfg = neomapper.DefaultConfig()
		logger = zap.NewNop()
		return nil
	}

	loaded, err := neomapper.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err = newLogger(cfg.Log)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if logger != nil {
		_ = logger.Sync()
	}
	return nil
}

// newLogger builds a zap logger writing to stderr, so that stdout only
// carries command output.
func newLogger(lc neomapper.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if lc.Level != "" {
		parsed, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	if strings.EqualFold(lc.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// openManager connects to the configured database. The returned function
// closes the driver.
func openManager(ctx context.Context) (*neomapper.PersistenceManager, func(), error) {
	executor, err := neomapper.NewNeo4jExecutorFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := executor.Verify(ctx); err != nil {
		_ = executor.Close(ctx)
		return nil, nil, fmt.Errorf("could not connect to %s: %w", cfg.URI, err)
	}

	pm := neomapper.NewPersistenceManager(executor,
		neomapper.WithLogger(logger),
		neomapper.WithConfig(cfg))
	closeFn := func() {
		if err := executor.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("closing driver", zap.Error(err))
		}
	}
	return pm, closeFn, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing result to JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
