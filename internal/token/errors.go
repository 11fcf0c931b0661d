package token

import "fmt"

// MissingParameterError is returned when a required redirect parameter is
// absent, empty or unusable. Err is set when the provider explained why.
type MissingParameterError struct {
	Name   string
	Reason string
	Err    error
}

func (e *MissingParameterError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("redirect parameter %s is unusable: %s", e.Name, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("missing required redirect parameter %s: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("missing required redirect parameter %s", e.Name)
	}
}

func (e *MissingParameterError) Unwrap() error {
	return e.Err
}

// ProviderError is an OAuth error response delivered in the redirect
// fragment in place of tokens, e.g. when the user denies consent.
type ProviderError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("identity provider returned %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("identity provider returned %s", e.Code)
}

// MalformedTokenError is returned when a compact token does not have the
// header.payload.signature shape or its payload cannot be decoded.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed token: %s", e.Reason)
}

func (e *MalformedTokenError) Unwrap() error {
	return e.Err
}

// InvalidClaimsError is returned when a decoded payload lacks a claim the
// flow depends on.
type InvalidClaimsError struct {
	Claim string
	Err   error
}

func (e *InvalidClaimsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token claims: %s: %v", e.Claim, e.Err)
	}
	return fmt.Sprintf("invalid token claims: %s claim is missing", e.Claim)
}

func (e *InvalidClaimsError) Unwrap() error {
	return e.Err
}
