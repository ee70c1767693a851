package evaluator

import (
	"errors"
	"fmt"

	"subgraphMonitor/internal/model"
	"subgraphMonitor/internal/oracle"
	"subgraphMonitor/internal/status"
)

var (
	// ErrNoCurrentVersion is returned when the index node has no current
	// deployment for a subgraph.
	ErrNoCurrentVersion = errors.New("no current version")
	// ErrNoChains is returned when a healthy current version reports no chain.
	ErrNoChains = errors.New("status has no chains")
)

// Kind tags the outcome of evaluating one job.
type Kind int

const (
	KindOK Kind = iota
	// KindJobFailed skips the rest of the job; the run continues.
	KindJobFailed
	// KindRunFatal stops the run.
	KindRunFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindJobFailed:
		return "job_failed"
	case KindRunFatal:
		return "run_fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CheckError records which job and version a check failed on.
type CheckError struct {
	Job     string
	Version model.Version
	Err     error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s (%s): %v", e.Job, e.Version, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// Classify maps an evaluation error to its kind. A status endpoint outage
// means no later job can be trusted, and an unsupported network is a
// configuration bug; both stop the run.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, status.ErrEndpointUnavailable), errors.Is(err, oracle.ErrUnsupportedNetwork):
		return KindRunFatal
	default:
		return KindJobFailed
	}
}

// IsRunFatal reports whether err must stop the run.
func IsRunFatal(err error) bool {
	return Classify(err) == KindRunFatal
}
