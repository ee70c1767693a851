package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"subgraphMonitor/internal/model"
	"subgraphMonitor/internal/oracle"
)

// DriftThreshold is the number of blocks behind the chain head at which a
// current version stops being considered synced.
const DriftThreshold = 15

// DegradedReason is the verdict reason when the chain head is unknown.
const DegradedReason = "oracle unavailable, health-only check"

// StatusSource returns the status of one version of a subgraph, or nil when
// that version does not exist.
type StatusSource interface {
	FetchStatus(ctx context.Context, subgraph string, version model.Version) (*model.VersionStatus, error)
}

// HeightSource returns the chain head of a network.
type HeightSource interface {
	LatestHeight(ctx context.Context, network string) (uint64, error)
}

// Evaluator turns indexing statuses and chain heads into verdicts.
type Evaluator struct {
	status StatusSource
	oracle HeightSource
	logger *zap.Logger
	now    func() time.Time
}

// New builds an Evaluator.
func New(statusSource StatusSource, heightSource HeightSource, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		status: statusSource,
		oracle: heightSource,
		logger: logger,
		now:    time.Now,
	}
}

// EvaluateCurrent checks the current version: it must be healthy and, when
// the chain head is known, less than DriftThreshold blocks behind it.
// Only the first chain of the status is compared.
func (e *Evaluator) EvaluateCurrent(ctx context.Context, job model.Job) (model.Verdict, error) {
	verdict := e.newVerdict(job, model.VersionCurrent)

	st, err := e.status.FetchStatus(ctx, job.Name, model.VersionCurrent)
	if err != nil {
		return verdict, err
	}
	if st == nil {
		return verdict, ErrNoCurrentVersion
	}

	if !st.Health.IsHealthy() {
		verdict.Reason = string(st.Health)
		return verdict, nil
	}

	cursor, ok := st.Canonical()
	if !ok {
		return verdict, ErrNoChains
	}
	verdict.Network = cursor.Network
	verdict.JobBlock = new(big.Int).Set(cursor.BlockNumber)

	head, err := e.oracle.LatestHeight(ctx, cursor.Network)
	if err != nil {
		if errors.Is(err, oracle.ErrOracleUnavailable) {
			e.logger.Warn("chain head unavailable, verdict rests on health only",
				zap.String("job", job.Name),
				zap.String("network", cursor.Network),
				zap.Error(err),
			)
			verdict.OK = true
			verdict.Degraded = true
			verdict.Reason = DegradedReason
			return verdict, nil
		}
		return verdict, err
	}

	verdict.HeadBlock = new(big.Int).SetUint64(head)
	verdict.Drift = new(big.Int).Sub(verdict.HeadBlock, verdict.JobBlock)
	if verdict.Drift.Cmp(big.NewInt(DriftThreshold)) < 0 {
		verdict.OK = true
		return verdict, nil
	}

	verdict.Reason = fmt.Sprintf("drift %s >= %d on %s: subgraph block %s, chain head %s",
		verdict.Drift, DriftThreshold, cursor.Network, verdict.JobBlock, verdict.HeadBlock)
	return verdict, nil
}

// EvaluatePending checks the pending version. A pending version is still
// catching up by definition, so only its health classification counts.
func (e *Evaluator) EvaluatePending(ctx context.Context, job model.Job) (model.Verdict, error) {
	verdict := e.newVerdict(job, model.VersionPending)

	st, err := e.status.FetchStatus(ctx, job.Name, model.VersionPending)
	if err != nil {
		return verdict, err
	}
	if st == nil {
		verdict.OK = true
		verdict.Reason = "no pending version"
		return verdict, nil
	}

	verdict.OK = st.Health.IsHealthy()
	if !verdict.OK {
		verdict.Reason = string(st.Health)
	}
	return verdict, nil
}

// Evaluate checks the current then the pending version of job. The first
// error skips the remaining checks of the job.
func (e *Evaluator) Evaluate(ctx context.Context, job model.Job) (res JobResult) {
	res.Job = job
	version := model.VersionCurrent

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job evaluation panicked",
				zap.String("job", job.Name),
				zap.String("version", string(version)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			res.Kind = KindJobFailed
			res.Err = &CheckError{Job: job.Name, Version: version, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	checks := []struct {
		version model.Version
		check   func(context.Context, model.Job) (model.Verdict, error)
	}{
		{version: model.VersionCurrent, check: e.EvaluateCurrent},
		{version: model.VersionPending, check: e.EvaluatePending},
	}

	for _, c := range checks {
		version = c.version
		verdict, err := c.check(ctx, job)
		if err != nil {
			res.Kind = Classify(err)
			res.Err = &CheckError{Job: job.Name, Version: c.version, Err: err}
			return res
		}
		res.Verdicts = append(res.Verdicts, verdict)
	}

	res.Kind = KindOK
	return res
}

func (e *Evaluator) newVerdict(job model.Job, version model.Version) model.Verdict {
	return model.Verdict{
		Job:       job.Name,
		Version:   version,
		CheckedAt: e.now().UTC(),
	}
}
