package token

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ExpirySafetyMargin is subtracted from the provider's expires_in so the
// session is treated as expired before the access token really is.
const ExpirySafetyMargin = 60 * time.Second

// Redirect parameter names of the implicit grant response.
const (
	ParamAccessToken = "access_token"
	ParamIDToken     = "id_token"
	ParamExpiresIn   = "expires_in"

	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

// ErrNoFragment is returned by FragmentFromURL when the URL has no fragment.
var ErrNoFragment = errors.New("redirect URL has no fragment")

// RedirectCredentials is the credential bundle carried by the implicit grant
// redirect. Values are only ever produced fully populated.
type RedirectCredentials struct {
	AccessToken      string `json:"access_token"`
	IDToken          string `json:"id_token"`
	ExpiresAtEpochMs int64  `json:"expires_at"`
	SubjectID        string `json:"sub"`
}

// ExpiresAt returns the proactive expiry as a time.Time.
func (c *RedirectCredentials) ExpiresAt() time.Time {
	return time.UnixMilli(c.ExpiresAtEpochMs)
}

// maxExpiresIn keeps the millisecond expiry computation inside int64
const maxExpiresIn = math.MaxInt64 / 1000

// fragmentParams decodes a fragment with or without its leading '#'. Pairs
// with bad escapes are dropped by ParseQuery; anything required that did
// not survive is reported as missing by the caller.
func fragmentParams(fragment string) url.Values {
	params, _ := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
	return params
}

// FragmentKind says what a fragment carries back from the authorize endpoint
type FragmentKind int

const (
	// FragmentUnrelated carries neither an access token nor a provider error
	FragmentUnrelated FragmentKind = iota
	// FragmentProviderError carries an error but no access token
	FragmentProviderError
	// FragmentAccessToken carries an access token
	FragmentAccessToken
)

// ClassifyFragment inspects a fragment without validating it. Only
// FragmentAccessToken fragments are worth a full ParseFragment.
func ClassifyFragment(fragment string) FragmentKind {
	params := fragmentParams(fragment)
	switch {
	case params.Get(ParamAccessToken) != "":
		return FragmentAccessToken
	case params.Get(ParamError) != "":
		return FragmentProviderError
	default:
		return FragmentUnrelated
	}
}

// ParseFragment parses a redirect fragment using the wall clock.
func ParseFragment(fragment string) (*RedirectCredentials, error) {
	return ParseFragmentAt(fragment, time.Now())
}

// ParseFragmentAt parses a redirect fragment, with or without its leading
// '#', into RedirectCredentials. now anchors the expiry computation.
func ParseFragmentAt(fragment string, now time.Time) (*RedirectCredentials, error) {
	params := fragmentParams(fragment)

	for _, name := range []string{ParamAccessToken, ParamIDToken, ParamExpiresIn} {
		if params.Get(name) == "" {
			missing := &MissingParameterError{Name: name}
			if code := params.Get(ParamError); code != "" {
				missing.Err = &ProviderError{Code: code, Description: params.Get(ParamErrorDescription)}
			}
			return nil, missing
		}
	}

	accessToken := params.Get(ParamAccessToken)
	idToken := params.Get(ParamIDToken)

	expiresIn, err := strconv.ParseInt(params.Get(ParamExpiresIn), 10, 64)
	if err != nil {
		return nil, &MissingParameterError{Name: ParamExpiresIn, Reason: "not an integer number of seconds"}
	}
	if expiresIn <= 0 || expiresIn > maxExpiresIn {
		return nil, &MissingParameterError{Name: ParamExpiresIn, Reason: "out of range"}
	}

	claims, err := DecodeClaims(accessToken)
	if err != nil {
		return nil, err
	}

	subject, err := Subject(claims)
	if err != nil {
		return nil, err
	}

	return &RedirectCredentials{
		AccessToken:      accessToken,
		IDToken:          idToken,
		ExpiresAtEpochMs: now.UnixMilli() + expiresIn*1000 - ExpirySafetyMargin.Milliseconds(),
		SubjectID:        subject,
	}, nil
}

// FragmentFromURL returns the still-encoded fragment of a pasted redirect
// URL. Input that already is a bare fragment is returned unchanged.
func FragmentFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ParamAccessToken+"=") {
		return strings.TrimPrefix(raw, "#"), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}

	fragment := u.EscapedFragment()
	if fragment == "" {
		return "", ErrNoFragment
	}
	return fragment, nil
}
