package evaluator

import (
	"context"

	"go.uber.org/zap"

	"subgraphMonitor/internal/model"
)

// JobResult is the tagged outcome of evaluating one job.
type JobResult struct {
	Job      model.Job
	Verdicts []model.Verdict
	Kind     Kind
	Err      error
}

// Report collects the verdicts of one run.
type Report struct {
	Verdicts  []model.Verdict
	Failures  []JobResult
	Evaluated int
}

type resetter interface {
	Reset()
}

// Run evaluates jobs in order. A job failure is logged and the run moves on;
// a run-fatal error stops the run and is returned with the verdicts of the
// jobs evaluated before it.
func (e *Evaluator) Run(ctx context.Context, jobs []model.Job) (Report, error) {
	if r, ok := e.oracle.(resetter); ok {
		r.Reset()
	}

	var report Report
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := e.Evaluate(ctx, job)
		report.Evaluated++

		switch res.Kind {
		case KindRunFatal:
			e.logger.Error("run aborted, no further subgraphs will be checked",
				zap.String("job", job.Name),
				zap.Int("remaining", len(jobs)-report.Evaluated),
				zap.Error(res.Err),
			)
			return report, res.Err
		case KindJobFailed:
			e.logger.Error("subgraph check failed",
				zap.String("job", job.Name),
				zap.Error(res.Err),
			)
			report.Failures = append(report.Failures, res)
		}

		report.Verdicts = append(report.Verdicts, res.Verdicts...)
		for _, v := range res.Verdicts {
			if v.OK {
				e.logger.Debug("subgraph version ok",
					zap.String("job", v.Job),
					zap.String("version", string(v.Version)),
					zap.Bool("degraded", v.Degraded),
				)
			}
		}
	}

	return report, nil
}
