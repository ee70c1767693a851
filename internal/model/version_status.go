package model

import "math/big"

// ChainCursor is a position on a named chain.
type ChainCursor struct {
	Network     string   `json:"network"`
	BlockNumber *big.Int `json:"block_number"`
}

// VersionStatus is the indexing status of one deployment of a subgraph.
type VersionStatus struct {
	Deployment string        `json:"deployment"`
	Health     Health        `json:"health"`
	Synced     bool          `json:"synced"`
	FatalError string        `json:"fatal_error,omitempty"`
	Chains     []ChainCursor `json:"chains"`
}

func (s VersionStatus) HasFatalError() bool {
	return s.FatalError != ""
}

// Canonical returns the first chain cursor. Multi-chain subgraphs are
// evaluated on their first chain only.
func (s VersionStatus) Canonical() (ChainCursor, bool) {
	if len(s.Chains) == 0 {
		return ChainCursor{}, false
	}
	return s.Chains[0], true
}
