package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-sumbench/infrastructure/llm"
	"github.com/ahrav/go-sumbench/infrastructure/middleware"
	"github.com/ahrav/go-sumbench/internal/application"
	"github.com/ahrav/go-sumbench/internal/observability"
	"github.com/ahrav/go-sumbench/internal/server"
)

var version = "dev"

// serviceFactory builds the comparison service and the metrics handler
// served on /metrics.
type serviceFactory func(cfg *application.AppConfig, logger *zap.Logger) (server.ComparisonAPI, http.Handler, error)

// app holds the state shared by every subcommand once the root command
// has loaded configuration.
type app struct {
	v          *viper.Viper
	configPath string

	cfg    *application.AppConfig
	logger *zap.Logger

	newService      serviceFactory
	shutdownTracing observability.ShutdownFunc
}

func newApp() *app {
	return &app{
		v:          application.NewViper(),
		newService: buildService,
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sumbench",
		Short: "Compare LLM summaries across providers",
		Long: `sumbench asks several LLM providers to summarize the same text, has an
evaluator model score every summary on precision, completeness and clarity,
and reports the provider with the best average score.

Configuration is read from --config, then SUMBENCH_* environment variables,
then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	// Lookup cannot fail for a flag defined above.
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newCompareCommand(a),
		newSummarizeCommand(a),
		newModelsCommand(a),
		newConfigCommand(a),
		newServeCommand(a),
	)
	return cmd
}

// setup loads configuration and builds the logger and trace pipeline.
func (a *app) setup(ctx context.Context) error {
	cfg, err := application.LoadConfigFrom(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SamplingRate:   cfg.Tracing.SamplingRate,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracing = shutdown
	return nil
}

// teardown flushes spans and logs. It runs whether or not the command
// succeeded.
func (a *app) teardown(ctx context.Context) {
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil && a.logger != nil {
			a.logger.Warn("trace shutdown failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) service() (server.ComparisonAPI, http.Handler, error) {
	return a.newService(a.cfg, a.logger)
}

// newLogger builds a production or development zap logger at the
// configured level. Logs go to stderr so command output stays parseable.
func newLogger(cfg application.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// buildService wires the provider registry with Prometheus metrics and
// OpenTelemetry observers.
func buildService(cfg *application.AppConfig, logger *zap.Logger) (server.ComparisonAPI, http.Handler, error) {
	metrics := middleware.NewPrometheusMetrics()

	registry, err := llm.NewRegistry(cfg.RegistryConfig(metrics, metrics))
	if err != nil {
		return nil, nil, fmt.Errorf("build provider registry: %w", err)
	}

	svc, err := application.NewComparisonService(cfg, application.ServiceDeps{
		Catalog:        registry,
		Resolver:       registry,
		Observer:       middleware.NewOTelComparisonObserver(metrics),
		BudgetObserver: middleware.NewOTelBudgetObserver(metrics, "comparison"),
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, metrics.Handler(), nil
}
