// proposaland scores procurement listings for relevance and prints, stores
// or serves the ranked results.
//
// Usage:
//
//	proposaland classify -f listings.yaml [--format table|json|markdown] [--persist]
//	proposaland refs [--file notice.pdf] [--context org] [--min 0.7] [text...]
//	proposaland patterns [--regex]
//	proposaland top [--limit 5] [--priority critical,high]
//	proposaland serve [--addr :8081] [--no-db]
//	proposaland token --subject ops@example.org [--ttl 24h]
package main

import (
	"fmt"
	"os"

	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/engine"
	"github.com/david/proposaland/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags.
var version = "dev"

// app is the state every subcommand shares once the root pre-run has loaded
// the configuration.
type app struct {
	configPath string
	logEnv     string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	engine *engine.Engine
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "proposaland",
		Short:         "Relevance scoring and priority classification for procurement listings",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", os.Getenv("PROPOSALAND_CONFIG"), "YAML config file (defaults to the built-in config)")
	f.StringVar(&a.logEnv, "log-env", envOr("APP_ENV", "production"), "Logger preset: production or development")
	f.StringVar(&a.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Minimum log level")

	root.AddCommand(
		newClassifyCmd(a),
		newRefsCmd(a),
		newPatternsCmd(a),
		newTopCmd(a),
		newServeCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) init() error {
	logger, err := logging.New(a.logEnv, a.logLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.engine = engine.New(cfg, engine.WithLogger(logger))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
