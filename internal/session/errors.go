package session

import (
	"errors"
	"fmt"

	"github.com/dgellow/riot-front/internal/exchange"
	"github.com/dgellow/riot-front/internal/token"
)

// ErrAuthenticationInProgress is returned when a second attempt starts while
// one is still running for the same session.
var ErrAuthenticationInProgress = errors.New("authentication already in progress")

// ErrNoRedirectCredentials is returned for fragments that carry no access
// token, such as a page anchor. The session is left as it was.
var ErrNoRedirectCredentials = errors.New("fragment carries no redirect credentials")

// ErrSessionNotFound is returned when a session id is unknown or expired
var ErrSessionNotFound = errors.New("session not found")

// errIncompleteCredentials guards the authenticated invariant against
// exchangers that report success without a value.
var errIncompleteCredentials = errors.New("token exchange returned incomplete credentials")

// DescribeError turns an authentication error into the message kept in
// State.LastError.
func DescribeError(err error) string {
	var (
		missing     *token.MissingParameterError
		malformed   *token.MalformedTokenError
		invalid     *token.InvalidClaimsError
		entitlement *exchange.EntitlementExchangeError
		region      *exchange.RegionResolutionError
	)

	switch {
	case errors.As(err, &missing), errors.As(err, &malformed), errors.As(err, &invalid):
		return fmt.Sprintf("authentication failed, please retry: %v", err)
	case errors.As(err, &entitlement):
		if rejected(entitlement.StatusCode) {
			return fmt.Sprintf("could not obtain entitlement token (upstream status %d)", entitlement.StatusCode)
		}
		return fmt.Sprintf("could not obtain entitlement token: %v", entitlement.Err)
	case errors.As(err, &region):
		if rejected(region.StatusCode) {
			return fmt.Sprintf("could not resolve region (upstream status %d)", region.StatusCode)
		}
		return fmt.Sprintf("could not resolve region: %v", region.Err)
	default:
		return fmt.Sprintf("authentication failed: %v", err)
	}
}

// rejected reports whether an upstream answered with a non-2xx status.
func rejected(status int) bool {
	return status != 0 && (status < 200 || status > 299)
}
