package status

import (
	"fmt"

	"subgraphMonitor/internal/model"
)

const statusSelection = `subgraph health synced fatalError { message } chains { network latestBlock { number } }`

// queryField returns the index-node query field for a version.
func queryField(version model.Version) (string, error) {
	switch version {
	case model.VersionCurrent:
		return "indexingStatusForCurrentVersion", nil
	case model.VersionPending:
		return "indexingStatusForPendingVersion", nil
	default:
		return "", fmt.Errorf("unknown version %q", version)
	}
}

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

func buildRequest(field, subgraph string) graphQLRequest {
	return graphQLRequest{
		Query:     fmt.Sprintf(`query($subgraphName: String!) { %s(subgraphName: $subgraphName) { %s } }`, field, statusSelection),
		Variables: map[string]string{"subgraphName": subgraph},
	}
}
