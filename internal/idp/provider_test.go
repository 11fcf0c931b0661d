package idp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T) *ImplicitProvider {
	t.Helper()
	p, err := NewImplicitProvider(ImplicitConfig{
		AuthorizeURL: "https://auth.riotgames.com/authorize",
		ClientID:     "play-valorant-web-prod",
		RedirectURI:  "https://playvalorant.com/opt_in",
		Scopes:       []string{"account", "openid"},
	})
	require.NoError(t, err)
	return p
}

func TestImplicitProvider_AuthURL(t *testing.T) {
	p := testProvider(t)
	assert.Equal(t, "implicit", p.Type())

	u, err := url.Parse(p.AuthURL("signed-state", "n-1"))
	require.NoError(t, err)

	assert.Equal(t, "auth.riotgames.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "token id_token", q.Get("response_type"))
	assert.Equal(t, []string{"token id_token"}, q["response_type"])
	assert.Equal(t, "play-valorant-web-prod", q.Get("client_id"))
	assert.Equal(t, "https://playvalorant.com/opt_in", q.Get("redirect_uri"))
	assert.Equal(t, "account openid", q.Get("scope"))
	assert.Equal(t, "n-1", q.Get("nonce"))
	assert.Equal(t, "signed-state", q.Get("state"))
}

func TestImplicitProvider_AuthURLWithoutState(t *testing.T) {
	p := testProvider(t)

	u, err := url.Parse(p.AuthURL("", "1"))
	require.NoError(t, err)

	q := u.Query()
	_, hasState := q["state"]
	assert.False(t, hasState)
	assert.Equal(t, "1", q.Get("nonce"))
}

func TestNewImplicitProvider_Errors(t *testing.T) {
	_, err := NewImplicitProvider(ImplicitConfig{AuthorizeURL: "https://auth.example.com/authorize"})
	assert.Error(t, err)

	_, err = NewImplicitProvider(ImplicitConfig{AuthorizeURL: "not a url", ClientID: "c"})
	assert.Error(t, err)
}

func TestStateFromFragment(t *testing.T) {
	assert.Equal(t, "abc", StateFromFragment("#access_token=x&state=abc"))
	assert.Equal(t, "", StateFromFragment("access_token=x"))
	assert.Equal(t, "", StateFromFragment(""))
}
