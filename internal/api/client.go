package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/riot-front/internal/credentials"
	"github.com/dgellow/riot-front/internal/ioutil"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/tidwall/gjson"
)

const (
	maxResponseBytes = 8 << 20
	maxErrorSnippet  = 256
)

// ErrUnknownEndpoint is returned for endpoint names Lookup does not know
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Error is returned when the partitioned API answers with a non-2xx status
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client performs credentialed calls against the partitioned API
type Client struct {
	baseURL    string
	assembler  *credentials.Assembler
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL and a
// nil httpClient means http.DefaultClient.
func NewClient(baseURL string, assembler *credentials.Assembler, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		assembler:  assembler,
		httpClient: httpClient,
	}
}

// Fetch calls the named endpoint for the session described by state
func (c *Client) Fetch(ctx context.Context, state session.State, name string, page Page) (json.RawMessage, error) {
	ep, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}

	creds, err := c.assembler.Assemble(state)
	if err != nil {
		return nil, err
	}

	target, err := BuildURL(c.baseURL, ep, state.Shard, state.SubjectID, page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	creds.Apply(req)

	log.LogDebugWithFields("api", "Calling partitioned API", map[string]any{
		"endpoint": ep.Name,
		"shard":    state.Shard,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", ep.Name, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", ep.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: ioutil.Snippet(body, maxErrorSnippet)}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned a non-JSON body", ep.Name)
	}
	return json.RawMessage(body), nil
}
