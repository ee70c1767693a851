package metrics

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"subgraphMonitor/internal/evaluator"
)

// Recorder holds the gauges of one monitor run.
type Recorder struct {
	registry *prometheus.Registry

	verdictOK       *prometheus.GaugeVec
	verdictDegraded *prometheus.GaugeVec
	blockDrift      *prometheus.GaugeVec
	jobFailed       *prometheus.GaugeVec
	runFatal        prometheus.Gauge
	lastRun         prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		verdictOK: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subgraph_verdict_ok",
			Help: "1 when the subgraph version passed its health check",
		}, []string{"job", "version"}),
		verdictDegraded: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subgraph_verdict_degraded",
			Help: "1 when the verdict was rendered without the chain head cross-check",
		}, []string{"job", "version"}),
		blockDrift: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subgraph_block_drift",
			Help: "Blocks between the chain head and the subgraph's latest block",
		}, []string{"job", "version", "network"}),
		jobFailed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subgraph_check_failed",
			Help: "1 when the subgraph could not be checked",
		}, []string{"job"}),
		runFatal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subgraph_monitor_run_fatal",
			Help: "1 when the last run was aborted by a monitoring system failure",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subgraph_monitor_last_run_timestamp_seconds",
			Help: "Unix time of the last run",
		}),
	}
}

// Observe records the outcome of a run.
func (r *Recorder) Observe(report evaluator.Report, runErr error) {
	for _, v := range report.Verdicts {
		labels := prometheus.Labels{"job": v.Job, "version": string(v.Version)}
		r.verdictOK.With(labels).Set(boolValue(v.OK))
		r.verdictDegraded.With(labels).Set(boolValue(v.Degraded))
		if v.Drift != nil {
			drift, _ := new(big.Float).SetInt(v.Drift).Float64()
			r.blockDrift.With(prometheus.Labels{
				"job":     v.Job,
				"version": string(v.Version),
				"network": v.Network,
			}).Set(drift)
		}
	}
	for _, failure := range report.Failures {
		r.jobFailed.WithLabelValues(failure.Job.Name).Set(1)
	}
	r.runFatal.Set(boolValue(runErr != nil && evaluator.IsRunFatal(runErr)))
	r.lastRun.Set(float64(time.Now().Unix()))
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
