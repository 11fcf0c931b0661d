package session

import "time"

// Status is the position of a session in the authentication lifecycle.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusFailed          Status = "failed"
)

// State is a snapshot of one browser session's credentials. Tokens are never
// serialized; only the descriptive fields reach JSON responses.
type State struct {
	Status           Status    `json:"status"`
	AccessToken      string    `json:"-"`
	EntitlementToken string    `json:"-"`
	IDToken          string    `json:"-"`
	SubjectID        string    `json:"subject_id,omitempty"`
	Region           string    `json:"region,omitempty"`
	Shard            string    `json:"shard,omitempty"`
	IsAuthenticated  bool      `json:"is_authenticated"`
	Pending          bool      `json:"pending"`
	LastError        string    `json:"last_error,omitempty"`
	ExpiresAt        time.Time `json:"expires_at,omitzero"`
}

// Complete reports whether every credential field is populated.
func (s State) Complete() bool {
	return s.AccessToken != "" &&
		s.EntitlementToken != "" &&
		s.IDToken != "" &&
		s.SubjectID != "" &&
		s.Region != "" &&
		s.Shard != ""
}

// Expired reports whether an authenticated state has passed its proactive
// expiry. Unauthenticated states never expire.
func (s State) Expired(now time.Time) bool {
	return s.IsAuthenticated && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
