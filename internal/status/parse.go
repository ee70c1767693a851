package status

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/tidwall/gjson"

	"subgraphMonitor/internal/model"
)

// parseResponse extracts the status under data.<field>. A null field is an
// absent version and yields (nil, nil).
func parseResponse(body []byte, field string) (*model.VersionStatus, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response")
	}
	res := gjson.ParseBytes(body)

	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return nil, fmt.Errorf("graphql error: %s", errs.Get("0.message").String())
	}

	data := res.Get("data")
	if !data.IsObject() {
		return nil, fmt.Errorf("response has no data object")
	}
	node := data.Get(field)
	if !node.Exists() {
		return nil, fmt.Errorf("response has no %s field", field)
	}
	if node.Type == gjson.Null {
		return nil, nil
	}

	return parseStatus(node)
}

func parseStatus(node gjson.Result) (*model.VersionStatus, error) {
	health, err := model.ParseHealth(node.Get("health").String())
	if err != nil {
		return nil, err
	}

	status := &model.VersionStatus{
		Deployment: node.Get("subgraph").String(),
		Health:     health,
		Synced:     node.Get("synced").Bool(),
		FatalError: node.Get("fatalError.message").String(),
	}
	if fatal := node.Get("fatalError"); fatal.IsObject() && status.FatalError == "" {
		status.FatalError = "fatal error without message"
	}

	var chainErr error
	node.Get("chains").ForEach(func(_, chain gjson.Result) bool {
		number, err := parseBlockNumber(chain.Get("latestBlock.number"))
		if err != nil {
			chainErr = fmt.Errorf("chain %s: %w", chain.Get("network").String(), err)
			return false
		}
		status.Chains = append(status.Chains, model.ChainCursor{
			Network:     chain.Get("network").String(),
			BlockNumber: number,
		})
		return true
	})
	if chainErr != nil {
		return nil, chainErr
	}

	return status, nil
}

// parseBlockNumber accepts decimal or 0x-prefixed hex, as a JSON string or
// number. A missing block means nothing has been indexed yet.
func parseBlockNumber(value gjson.Result) (*big.Int, error) {
	if !value.Exists() || value.Type == gjson.Null {
		return new(big.Int), nil
	}

	raw := value.Raw
	if value.Type == gjson.String {
		raw = value.Str
	}
	raw = strings.TrimSpace(raw)

	number, ok := math.ParseBig256(raw)
	if !ok || raw == "" {
		return nil, fmt.Errorf("invalid block number %q", raw)
	}
	if number.Sign() < 0 {
		return nil, fmt.Errorf("negative block number %q", raw)
	}
	return number, nil
}
