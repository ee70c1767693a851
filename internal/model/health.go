package model

import (
	"fmt"
	"strings"
)

// Health is the indexing health classification reported by the index node.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthFailed    Health = "failed"
)

// ParseHealth converts a classification string, ignoring case.
func ParseHealth(input string) (Health, error) {
	switch h := Health(strings.ToLower(strings.TrimSpace(input))); h {
	case HealthHealthy, HealthUnhealthy, HealthFailed:
		return h, nil
	default:
		return "", fmt.Errorf("unknown health classification: %q", input)
	}
}

func (h Health) IsHealthy() bool {
	return h == HealthHealthy
}

// Version selects the deployment of a subgraph.
type Version string

const (
	VersionCurrent Version = "current"
	VersionPending Version = "pending"
)
