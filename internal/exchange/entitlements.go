package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/riot-front/internal/log"
	"github.com/tidwall/gjson"
)

// EntitlementExchanger trades an access token for the entitlement token the
// partitioned API requires next to it.
type EntitlementExchanger struct {
	tokenURL   string
	httpClient *http.Client
}

// NewEntitlementExchanger creates an exchanger for the given token-issuance
// URL. A nil httpClient means http.DefaultClient.
func NewEntitlementExchanger(tokenURL string, httpClient *http.Client) *EntitlementExchanger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &EntitlementExchanger{
		tokenURL:   tokenURL,
		httpClient: httpClient,
	}
}

// Exchange performs exactly one POST and returns the entitlements_token
// field of the response. There is no retry and no caching.
func (e *EntitlementExchanger) Exchange(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, http.NoBody)
	if err != nil {
		return "", &EntitlementExchangeError{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := send(ctx, e.httpClient, accessToken, req)
	if err != nil {
		return "", &EntitlementExchangeError{StatusCode: status, Err: err}
	}
	if !isSuccess(status) {
		log.LogDebugWithFields("entitlements", "Entitlement endpoint rejected token", map[string]any{
			"status": status,
			"token":  log.RedactToken(accessToken),
		})
		return "", &EntitlementExchangeError{StatusCode: status, Err: unexpectedStatus(status, body)}
	}

	if !gjson.ValidBytes(body) {
		return "", &EntitlementExchangeError{StatusCode: status, Err: errors.New("response is not valid JSON")}
	}
	entitlement := gjson.GetBytes(body, "entitlements_token")
	if entitlement.Type != gjson.String || entitlement.Str == "" {
		return "", &EntitlementExchangeError{StatusCode: status, Err: errors.New("response has no entitlements_token")}
	}

	return entitlement.Str, nil
}
