package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"subgraphMonitor/internal/evaluator"
)

// Exit codes. A run-fatal failure means the monitoring system itself is
// broken, which operators must tell apart from an unhealthy subgraph.
const (
	exitError    = 1
	exitRunFatal = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if evaluator.IsRunFatal(err) {
			os.Exit(exitRunFatal)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "monitor",
		Short:        "Subgraph indexing health monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check every configured subgraph once",
		RunE:  runCheck,
	}

	addClientFlags(checkCmd)
	checkCmd.Flags().StringSlice("subgraph", nil, "subgraph names to check in addition to the config file (comma-separated)")
	checkCmd.Flags().String("oracle-token", "", "chain head oracle API token")
	checkCmd.Flags().String("out", "", "append verdicts to this JSONL file")
	checkCmd.Flags().String("pg-dsn", "", "Postgres DSN for verdict history")
	checkCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this textfile")
	checkCmd.Flags().Bool("notify", true, "post failing verdicts to subgraph webhooks")

	root.AddCommand(checkCmd)

	statusCmd := &cobra.Command{
		Use:   "status <subgraph>",
		Short: "Print the current and pending indexing status of a subgraph",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	addClientFlags(statusCmd)

	root.AddCommand(statusCmd)

	headCmd := &cobra.Command{
		Use:   "head <network>",
		Short: "Print the chain head reported by the oracle",
		Args:  cobra.ExactArgs(1),
		RunE:  runHead,
	}

	addClientFlags(headCmd)
	headCmd.Flags().String("oracle-token", "", "chain head oracle API token")

	root.AddCommand(headCmd)

	return root
}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("status-url", "", "index-node status GraphQL endpoint")
	cmd.Flags().Duration("timeout", 2*time.Second, "timeout of each external call")
	cmd.Flags().Int("max-retries", 0, "retries of a failed external call")
	cmd.Flags().Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
