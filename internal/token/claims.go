package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// segmentDecoder is only used for its base64url segment decoding. Padded and
// unpadded payloads are both accepted.
var segmentDecoder = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims returns the payload claims of a compact header.payload.signature
// token WITHOUT verifying its signature.
//
// This is a trust boundary. The identity provider's signing keys are not
// available here, so the claims are only good for reading the subject
// identifier that addresses per-user resources. The entitlement and region
// services validate the same token on every exchange and reject forgeries.
// Never base an authorization decision on these claims.
func DecodeClaims(compact string) (jwt.MapClaims, error) {
	segments := strings.Split(compact, ".")
	if len(segments) != 3 {
		return nil, &MalformedTokenError{
			Reason: fmt.Sprintf("expected 3 dot-separated segments, got %d", len(segments)),
		}
	}

	payload, err := segmentDecoder.DecodeSegment(segments[1])
	if err != nil {
		return nil, &MalformedTokenError{Reason: "payload is not base64url", Err: err}
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, &MalformedTokenError{Reason: "payload is not a JSON object", Err: err}
	}
	if claims == nil {
		return nil, &MalformedTokenError{Reason: "payload is empty"}
	}

	return claims, nil
}

// Subject returns the stable subject identifier carried in the sub claim.
func Subject(claims jwt.MapClaims) (string, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return "", &InvalidClaimsError{Claim: "sub", Err: err}
	}
	if sub == "" {
		return "", &InvalidClaimsError{Claim: "sub"}
	}
	return sub, nil
}
