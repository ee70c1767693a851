package model

// Job is a tracked subgraph. Target is an opaque notification handle.
type Job struct {
	Name   string `json:"name" mapstructure:"name"`
	Target string `json:"target,omitempty" mapstructure:"webhook"`
}
