package storage

import "subgraphMonitor/internal/model"

// Storage defines a sink for verdicts.
type Storage interface {
	PutVerdicts(verdicts []model.Verdict) error
}
