// Package credentials assembles the per-request header set required by the
// partitioned game API.
package credentials

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/riot-front/internal/session"
)

const (
	HeaderEntitlements   = "X-Riot-Entitlements-JWT"
	HeaderClientVersion  = "X-Riot-ClientVersion"
	HeaderClientPlatform = "X-Riot-ClientPlatform"
)

// ErrNotAuthenticated is returned when credentials are requested for a
// session that has not completed authentication.
var ErrNotAuthenticated = errors.New("session is not authenticated")

// PlatformDescriptor identifies the calling client platform. Field order is
// the wire order.
type PlatformDescriptor struct {
	Type      string `json:"platformType"`
	OS        string `json:"platformOS"`
	OSVersion string `json:"platformOSVersion"`
	Chipset   string `json:"platformChipset"`
}

// DefaultPlatform is sent when configuration does not override it
var DefaultPlatform = PlatformDescriptor{
	Type:      "PC",
	OS:        "Windows",
	OSVersion: "10.0.19042.1.256.64bit",
	Chipset:   "Unknown",
}

// Encode returns the base64 (standard alphabet) JSON form of the descriptor
func (p PlatformDescriptor) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding platform descriptor: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// RequestCredentialSet is the derived header set for one outbound call.
// It is never stored.
type RequestCredentialSet struct {
	BearerToken    string
	Entitlement    string
	ClientVersion  string
	ClientPlatform string
}

// Header renders the credential set as HTTP headers
func (c RequestCredentialSet) Header() http.Header {
	h := make(http.Header, 5)
	c.write(h)
	return h
}

// Apply sets the credential headers on req, replacing any existing values
func (c RequestCredentialSet) Apply(req *http.Request) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	c.write(req.Header)
}

func (c RequestCredentialSet) write(h http.Header) {
	h.Set("Authorization", "Bearer "+c.BearerToken)
	h.Set(HeaderEntitlements, c.Entitlement)
	h.Set(HeaderClientVersion, c.ClientVersion)
	h.Set(HeaderClientPlatform, c.ClientPlatform)
	h.Set("Content-Type", "application/json")
}

// Assembler derives request credentials from session state. It holds only
// the static client identification, so one Assembler serves every session.
type Assembler struct {
	clientVersion  string
	clientPlatform string
}

// NewAssembler encodes the platform descriptor once up front
func NewAssembler(clientVersion string, platform PlatformDescriptor) (*Assembler, error) {
	if clientVersion == "" {
		return nil, errors.New("client version is required")
	}
	encoded, err := platform.Encode()
	if err != nil {
		return nil, err
	}
	return &Assembler{
		clientVersion:  clientVersion,
		clientPlatform: encoded,
	}, nil
}

// Assemble builds the credential set for state. Identical input always
// yields identical output.
func (a *Assembler) Assemble(state session.State) (RequestCredentialSet, error) {
	if !state.IsAuthenticated || !state.Complete() {
		return RequestCredentialSet{}, ErrNotAuthenticated
	}
	return RequestCredentialSet{
		BearerToken:    state.AccessToken,
		Entitlement:    state.EntitlementToken,
		ClientVersion:  a.clientVersion,
		ClientPlatform: a.clientPlatform,
	}, nil
}
