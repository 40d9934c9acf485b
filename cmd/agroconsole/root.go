package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agroconsole/internal/core"
	"agroconsole/internal/modules"
	"agroconsole/internal/platform/config"
	"agroconsole/internal/platform/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	out    io.Writer
	cfg    config.Config
	logger *zap.Logger

	storageDriver string
	sqlitePath    string
	logLevel      string
	logFormat     string
	noSeed        bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "agroconsole",
		Short:         "Agricultural ERP administration console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.storageDriver, "storage", "", "storage driver (memory, sqlite, postgres, bolt)")
	pf.StringVar(&a.sqlitePath, "sqlite-path", "", "sqlite database file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (json, console)")
	pf.BoolVar(&a.noSeed, "no-seed", false, "skip loading seed data")

	root.AddCommand(
		newServeCmd(a),
		newExportCmd(a),
		newRUTCmd(a),
		newModulesCmd(a),
		newCatalogsCmd(a),
		newSeedCmd(a),
		newTokenCmd(a),
	)
	return root
}

// setup loads the environment configuration, applies flag overrides and
// builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage.Driver = a.storageDriver
	}
	if flags.Changed("sqlite-path") {
		cfg.Storage.SQLitePath = a.sqlitePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if a.noSeed {
		cfg.Seed = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, _, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// openService opens the configured store and installs the default modules.
func (a *app) openService(ctx context.Context, seed bool, opts ...core.Option) (*core.Service, error) {
	opts = append([]core.Option{core.WithLogger(a.logger)}, opts...)
	svc, err := core.Open(ctx, a.cfg.StorageConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := modules.Install(ctx, svc, seed && a.cfg.Seed); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}
