package model

import (
	"math/big"
	"time"
)

// Verdict is the outcome of checking one version of a subgraph.
// Network, JobBlock and HeadBlock are set whenever a drift comparison ran.
type Verdict struct {
	Job       string    `json:"job"`
	Version   Version   `json:"version"`
	OK        bool      `json:"ok"`
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"reason,omitempty"`
	Network   string    `json:"network,omitempty"`
	JobBlock  *big.Int  `json:"job_block,omitempty"`
	HeadBlock *big.Int  `json:"head_block,omitempty"`
	Drift     *big.Int  `json:"drift,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
