package exchange

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dgellow/riot-front/internal/ioutil"
	"golang.org/x/oauth2"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 1 << 20

// maxErrorSnippet caps how much of a failed response ends up in an error.
const maxErrorSnippet = 256

// bearerClient returns a client that presents accessToken as a bearer
// credential on every request, on top of base's transport and timeout.
func bearerClient(ctx context.Context, base *http.Client, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = base.Timeout
	return client
}

// send performs one request and returns the bounded body and status code.
// A non-nil error means no usable response was received.
func send(ctx context.Context, base *http.Client, accessToken string, req *http.Request) ([]byte, int, error) {
	resp, err := bearerClient(ctx, base, accessToken).Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func unexpectedStatus(status int, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("unexpected status %d", status)
	}
	return fmt.Errorf("unexpected status %d: %s", status, ioutil.Snippet(body, maxErrorSnippet))
}
