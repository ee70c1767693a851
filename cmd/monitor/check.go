package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"subgraphMonitor/internal/config"
	"subgraphMonitor/internal/evaluator"
	"subgraphMonitor/internal/metrics"
	"subgraphMonitor/internal/model"
	"subgraphMonitor/internal/notify"
	"subgraphMonitor/internal/oracle"
	"subgraphMonitor/internal/retry"
	"subgraphMonitor/internal/status"
	"subgraphMonitor/internal/storage"
	"subgraphMonitor/internal/storage/postgres"
)

const maxRetryDelay = 5 * time.Second

func runCheck(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusClient := newStatusClient(cfg, logger)

	heads, err := dialOracle(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer heads.Close()

	sinks, closeSinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	logger.Info("check start",
		zap.String("status_url", cfg.StatusURL),
		zap.Int("subgraphs", len(cfg.Subgraphs)),
		zap.Strings("networks", heads.Networks()),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	report, runErr := evaluator.New(statusClient, heads, logger).Run(ctx, cfg.Subgraphs)

	deliverErr := deliver(ctx, cfg, logger, report, sinks)

	if cfg.MetricsTextfile != "" {
		rec := metrics.NewRecorder()
		rec.Observe(report, runErr)
		if err := rec.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("metrics textfile write failed", zap.Error(err))
		}
	}

	if runErr != nil {
		if evaluator.IsRunFatal(runErr) {
			logger.Error("monitoring system failure, run aborted",
				zap.Bool("run_fatal", true),
				zap.Int("evaluated", report.Evaluated),
				zap.Int("subgraphs", len(cfg.Subgraphs)),
				zap.Error(runErr),
			)
		}
		return runErr
	}

	logSummary(logger, report)
	return deliverErr
}

func newStatusClient(cfg config.Config, logger *zap.Logger) *status.Client {
	return status.NewClient(status.Config{
		URL:     cfg.StatusURL,
		Timeout: cfg.Timeout,
		Retry:   retryPolicy(cfg),
	}, logger)
}

func dialOracle(ctx context.Context, cfg config.Config, logger *zap.Logger) (*oracle.Oracle, error) {
	heads, err := oracle.Dial(ctx, cfg.Networks, cfg.OracleToken, oracle.Options{
		Timeout: cfg.Timeout,
		Retry:   retryPolicy(cfg),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	return heads, nil
}

func retryPolicy(cfg config.Config) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBackoff,
		MaxDelay:   maxRetryDelay,
	}
}

func openSinks(ctx context.Context, cfg config.Config) ([]storage.Storage, func(), error) {
	var sinks []storage.Storage
	closeFn := func() {}

	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		sinks = append(sinks, postgres.Sink{Ctx: ctx, Store: store})
		closeFn = store.Close
	}

	return sinks, closeFn, nil
}

// deliver hands verdicts to the sinks and webhooks. Delivery problems never
// hide a run-fatal error; they are logged and reported after it.
func deliver(ctx context.Context, cfg config.Config, logger *zap.Logger, report evaluator.Report, sinks []storage.Storage) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.PutVerdicts(report.Verdicts); err != nil {
			logger.Error("verdict sink failed", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
			errs = append(errs, err)
		}
	}

	if cfg.Notify {
		failed := notify.NewWebhook(cfg.Timeout, logger).Notify(ctx, cfg.Subgraphs, report.Verdicts)
		if failed > 0 {
			errs = append(errs, fmt.Errorf("%d notifications failed", failed))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("deliver verdicts: %w", errors.Join(errs...))
	}
	return nil
}

func logSummary(logger *zap.Logger, report evaluator.Report) {
	var failing, degraded int
	for _, v := range report.Verdicts {
		if !v.OK {
			failing++
			logger.Warn("subgraph not ok", verdictFields(v)...)
		}
		if v.Degraded {
			degraded++
		}
	}

	logger.Info("check complete",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("verdicts", len(report.Verdicts)),
		zap.Int("failing", failing),
		zap.Int("degraded", degraded),
		zap.Int("job_failures", len(report.Failures)),
	)
}

func verdictFields(v model.Verdict) []zap.Field {
	fields := []zap.Field{
		zap.String("job", v.Job),
		zap.String("version", string(v.Version)),
		zap.String("reason", v.Reason),
	}
	if v.Network != "" {
		fields = append(fields, zap.String("network", v.Network))
	}
	if v.JobBlock != nil {
		fields = append(fields, zap.Stringer("job_block", v.JobBlock))
	}
	if v.HeadBlock != nil {
		fields = append(fields, zap.Stringer("head_block", v.HeadBlock))
	}
	return fields
}
