package credentials

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgellow/riot-front/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authenticatedState() session.State {
	return session.State{
		Status:           session.StatusAuthenticated,
		AccessToken:      "access",
		EntitlementToken: "E",
		IDToken:          "id",
		SubjectID:        "ABC",
		Region:           "latam",
		Shard:            "na",
		IsAuthenticated:  true,
	}
}

func TestPlatformDescriptor_Encode(t *testing.T) {
	encoded, err := DefaultPlatform.Encode()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t,
		`{"platformType":"PC","platformOS":"Windows","platformOSVersion":"10.0.19042.1.256.64bit","platformChipset":"Unknown"}`,
		string(raw))
}

func TestAssembler_Assemble(t *testing.T) {
	a, err := NewAssembler("release-09.07-shipping-12-2571093", DefaultPlatform)
	require.NoError(t, err)

	creds, err := a.Assemble(authenticatedState())
	require.NoError(t, err)

	h := creds.Header()
	assert.Equal(t, "Bearer access", h.Get("Authorization"))
	assert.Equal(t, "E", h.Get(HeaderEntitlements))
	assert.Equal(t, "release-09.07-shipping-12-2571093", h.Get(HeaderClientVersion))
	assert.Equal(t, "application/json", h.Get("Content-Type"))

	expectedPlatform, err := DefaultPlatform.Encode()
	require.NoError(t, err)
	assert.Equal(t, expectedPlatform, h.Get(HeaderClientPlatform))
}

func TestAssembler_Idempotent(t *testing.T) {
	a, err := NewAssembler("v1", DefaultPlatform)
	require.NoError(t, err)

	first, err := a.Assemble(authenticatedState())
	require.NoError(t, err)
	second, err := a.Assemble(authenticatedState())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Header(), second.Header())
}

func TestAssembler_NotAuthenticated(t *testing.T) {
	a, err := NewAssembler("v1", DefaultPlatform)
	require.NoError(t, err)

	tests := []struct {
		name  string
		state session.State
	}{
		{name: "empty", state: session.State{}},
		{name: "failed", state: session.State{Status: session.StatusFailed, LastError: "x"}},
		{name: "pending", state: session.State{Status: session.StatusAuthenticating, Pending: true}},
		{name: "flag_without_tokens", state: session.State{IsAuthenticated: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Assemble(tt.state)
			assert.ErrorIs(t, err, ErrNotAuthenticated)
		})
	}
}

func TestNewAssembler_RequiresVersion(t *testing.T) {
	_, err := NewAssembler("", DefaultPlatform)
	assert.Error(t, err)
}

func TestRequestCredentialSet_Apply(t *testing.T) {
	a, err := NewAssembler("v1", DefaultPlatform)
	require.NoError(t, err)
	creds, err := a.Assemble(authenticatedState())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://pd.na.a.pvp.net/x", nil)
	req.Header.Set("Authorization", "Bearer stale")
	creds.Apply(req)

	assert.Equal(t, "Bearer access", req.Header.Get("Authorization"))
	assert.Len(t, req.Header.Values("Authorization"), 1)
	assert.Equal(t, "E", req.Header.Get(HeaderEntitlements))
}
