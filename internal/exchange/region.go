package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/riot-front/internal/log"
	"github.com/tidwall/gjson"
)

// Region is a resolved geographic affinity and the API shard serving it.
type Region struct {
	Region string `json:"region"`
	Shard  string `json:"shard"`
}

// RegionResolver looks up the caller's live geo affinity.
type RegionResolver struct {
	geoURL     string
	httpClient *http.Client
}

type regionRequest struct {
	IDToken string `json:"id_token"`
}

// NewRegionResolver creates a resolver for the given geo-affinity URL. A nil
// httpClient means http.DefaultClient.
func NewRegionResolver(geoURL string, httpClient *http.Client) *RegionResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RegionResolver{
		geoURL:     geoURL,
		httpClient: httpClient,
	}
}

// Resolve performs exactly one PUT carrying the id token and maps the live
// affinity of the response to a shard.
func (r *RegionResolver) Resolve(ctx context.Context, accessToken, idToken string) (Region, error) {
	payload, err := json.Marshal(regionRequest{IDToken: idToken})
	if err != nil {
		return Region{}, &RegionResolutionError{Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.geoURL, bytes.NewReader(payload))
	if err != nil {
		return Region{}, &RegionResolutionError{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := send(ctx, r.httpClient, accessToken, req)
	if err != nil {
		return Region{}, &RegionResolutionError{StatusCode: status, Err: err}
	}
	if !isSuccess(status) {
		return Region{}, &RegionResolutionError{StatusCode: status, Err: unexpectedStatus(status, body)}
	}

	if !gjson.ValidBytes(body) {
		return Region{}, &RegionResolutionError{StatusCode: status, Err: errors.New("response is not valid JSON")}
	}
	live := gjson.GetBytes(body, "affinities.live")
	if live.Type != gjson.String || live.Str == "" {
		return Region{}, &RegionResolutionError{StatusCode: status, Err: errors.New("response has no affinities.live")}
	}

	region := Region{Region: live.Str, Shard: ShardForRegion(live.Str)}
	log.LogDebugWithFields("region", "Resolved geo affinity", map[string]any{
		"region": region.Region,
		"shard":  region.Shard,
	})
	return region, nil
}
