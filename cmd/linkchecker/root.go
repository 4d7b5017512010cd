package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/logger"
	"go.uber.org/zap"
)

// rootOptions is shared by every subcommand. Flags are bound to v so they
// take precedence over the config file and LINKCHECKER_* variables.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "linkchecker",
		Short: "Finds and fixes broken links in a content repository",
		Long: `linkchecker walks a content tree, extracts internal and external links from
property values, validates every distinct link once and keeps a report of the
broken ones. Links can be fixed in place one by one or by pattern.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default is ./linkchecker.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json or console)")
	pf.String("storage", "memory", "content storage backend (memory or postgres)")
	pf.String("postgres-url", "", "postgres connection string")
	pf.String("seed", "", "YAML file with content nodes to load at startup")
	pf.String("queue", "memory", "job queue backend (memory or redis)")
	pf.String("redis-addr", "", "redis address")

	bind(opts.v, cmd, map[string]string{
		"log.level":            "log-level",
		"log.format":           "log-format",
		"storage.backend":      "storage",
		"storage.postgres_url": "postgres-url",
		"storage.seed_file":    "seed",
		"queue.backend":        "queue",
		"queue.redis_addr":     "redis-addr",
	})

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newExportCmd(opts),
		newFixCmd(opts),
		newReplaceCmd(opts),
	)
	return cmd
}

// bind connects viper keys to persistent flags of cmd. Only flags set on the
// command line override other sources.
func bind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
	}
}

// bindLocal is bind for flags of a single subcommand.
func bindLocal(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

// setup loads the configuration and builds the application.
func (o *rootOptions) setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}
