package exchange

import "fmt"

// EntitlementExchangeError is returned when the access token could not be
// exchanged for an entitlement token. StatusCode is zero when no response
// was received.
type EntitlementExchangeError struct {
	StatusCode int
	Err        error
}

func (e *EntitlementExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("entitlement exchange failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("entitlement exchange failed: %v", e.Err)
}

func (e *EntitlementExchangeError) Unwrap() error {
	return e.Err
}

// RegionResolutionError is returned when the geo-affinity lookup fails.
// StatusCode is zero when no response was received.
type RegionResolutionError struct {
	StatusCode int
	Err        error
}

func (e *RegionResolutionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("region resolution failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("region resolution failed: %v", e.Err)
}

func (e *RegionResolutionError) Unwrap() error {
	return e.Err
}
