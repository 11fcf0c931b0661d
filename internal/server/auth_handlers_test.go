package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dgellow/riot-front/internal/browserauth"
	"github.com/dgellow/riot-front/internal/cookie"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_RedirectsToAuthorizeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	rec := b.get(LoginPath)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", location.Host)

	q := location.Query()
	assert.Equal(t, "token id_token", q.Get("response_type"))
	assert.Equal(t, "play-valorant-web-prod", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/callback", q.Get("redirect_uri"))
	assert.Equal(t, "account openid", q.Get("scope"))
	assert.NotEmpty(t, q.Get("nonce"))
	assert.NotEmpty(t, q.Get("state"))

	require.NotNil(t, b.sessionCookie(), "login must bind a session cookie")
	assert.True(t, b.sessionCookie().HttpOnly)
	assert.Equal(t, 1, env.store.Len())
}

func TestLogin_StateBindsSessionAndNonce(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	state := b.login()

	var authState browserauth.AuthorizationState
	require.NoError(t, env.auth.stateSigner.Verify(state, &authState))

	nonce, pending := env.store.LoginNonce(authState.SessionID)
	require.True(t, pending)
	assert.Equal(t, nonce, authState.Nonce)
}

func TestCallback_RendersLockedDownPage(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	rec := b.get(CallbackPath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))

	csp := rec.Header().Get("Content-Security-Policy")
	require.Contains(t, csp, "script-src 'nonce-")
	nonce := strings.TrimSuffix(strings.SplitN(strings.SplitN(csp, "'nonce-", 2)[1], "'", 2)[0], "'")

	body := rec.Body.String()
	assert.Contains(t, body, `nonce="`+nonce+`"`)
	assert.Contains(t, body, "history.replaceState")
	assert.Regexp(t, `auth\\?/fragment`, body)
	assert.Less(t, strings.Index(body, "history.replaceState"), strings.Index(body, "fetch("),
		"fragment is stripped before it is posted")
	assert.Contains(t, body, "X-CSRF-Token")
	assert.Nil(t, b.sessionCookie(), "the callback page creates no session")
	assert.Zero(t, env.store.Len())
}

// A well-formed fragment with working upstreams authenticates.
func TestSubmitFragment_Authenticates(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	state := b.login()

	rec := b.submitFragment("#" + validFragment + "&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeStatus(t, rec)
	assert.True(t, resp.IsAuthenticated)
	assert.Equal(t, session.StatusAuthenticated, resp.Status)
	assert.Equal(t, "ABC", resp.SubjectID)
	assert.Equal(t, "na", resp.Region)
	assert.Equal(t, "na", resp.Shard)
	assert.Empty(t, resp.LastError)
	assert.NotEmpty(t, resp.CSRFToken)
	assert.NotEmpty(t, resp.SessionToken)
	assert.NotContains(t, rec.Body.String(), "ET1", "tokens must never reach the browser")

	assert.Equal(t, int32(1), env.upstream.entitlementCalls.Load())
	assert.Equal(t, int32(1), env.upstream.geoCalls.Load())

	handle, ok := env.binder.Resolve(withCookie(b.sessionCookie()))
	require.True(t, ok)
	_, pending := env.store.LoginNonce(handle.ID)
	assert.False(t, pending, "the login nonce is single use")
}

// A fragment whose access token arrived without an id token fails without
// network calls.
func TestSubmitFragment_MissingIDToken(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	rec := b.submitFragment("#access_token=hdr.eyJzdWIiOiJBQkMifQ==.sig&expires_in=3600")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeStatus(t, rec)
	assert.False(t, resp.IsAuthenticated)
	assert.Equal(t, session.StatusFailed, resp.Status)
	assert.Contains(t, resp.LastError, "authentication failed, please retry")
	assert.Contains(t, resp.LastError, "id_token")
	assert.Empty(t, resp.SessionToken)
	assert.Zero(t, env.upstream.entitlementCalls.Load())
	assert.Zero(t, env.upstream.geoCalls.Load())
}

func TestSubmitFragment_WithoutAccessTokenKeepsSession(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
	}{
		{name: "anchor", fragment: "#section=top"},
		{name: "empty", fragment: ""},
		{name: "id_token_only", fragment: "#id_token=i.d.t&expires_in=3600"},
		{name: "provider_error", fragment: "#error=access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			b := env.browser(t)
			require.Equal(t, http.StatusOK, b.submitFragment(validFragment).Code)

			rec := b.submitFragment(tt.fragment)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			status := decodeStatus(t, b.get(StatusPath))
			assert.True(t, status.IsAuthenticated)
			assert.Equal(t, session.StatusAuthenticated, status.Status)
			assert.Equal(t, "ABC", status.SubjectID)
			assert.Equal(t, int32(1), env.upstream.entitlementCalls.Load())
		})
	}
}

func TestSubmitFragment_RegionMapsToShard(t *testing.T) {
	tests := []struct {
		live      string
		wantShard string
	}{
		{live: "na", wantShard: "na"},
		{live: "latam", wantShard: "na"},
		{live: "br", wantShard: "na"},
		{live: "eu", wantShard: "eu"},
		{live: "kr", wantShard: "kr"},
	}

	for _, tt := range tests {
		t.Run(tt.live, func(t *testing.T) {
			env := newTestEnv(t)
			env.upstream.liveRegion.Store(tt.live)
			b := env.browser(t)

			rec := b.submitFragment(validFragment)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decodeStatus(t, rec)
			assert.True(t, resp.IsAuthenticated)
			assert.Equal(t, tt.live, resp.Region)
			assert.Equal(t, tt.wantShard, resp.Shard)
		})
	}
}

// A rejected entitlement exchange fails the attempt.
func TestSubmitFragment_EntitlementRejected(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.entitlementFails.Store(true)
	b := env.browser(t)

	rec := b.submitFragment(validFragment)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeStatus(t, rec)
	assert.Equal(t, session.StatusFailed, resp.Status)
	assert.Contains(t, resp.LastError, "403")
	assert.Empty(t, resp.SubjectID)
	assert.Empty(t, resp.Shard)
}

func TestSubmitFragment_PastedURL(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	rec := b.post(FragmentPath, `{"url":"https://playvalorant.com/opt_in#`+validFragment+`"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeStatus(t, rec).IsAuthenticated)
}

func TestSubmitFragment_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		csrf       bool
		wantStatus int
	}{
		{name: "missing_csrf", body: `{"fragment":"` + validFragment + `"}`, wantStatus: http.StatusForbidden},
		{name: "invalid_json", body: `{`, csrf: true, wantStatus: http.StatusBadRequest},
		{name: "url_without_fragment", body: `{"url":"https://example.com/callback"}`, csrf: true, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			b := env.browser(t)
			rec := b.post(FragmentPath, tt.body, tt.csrf)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Zero(t, env.upstream.entitlementCalls.Load())
		})
	}
}

func TestSubmitFragment_StateMismatch(t *testing.T) {
	tests := []struct {
		name  string
		state func(t *testing.T, env *testEnv) string
	}{
		{name: "missing_state", state: func(*testing.T, *testEnv) string { return "" }},
		{name: "garbage_state", state: func(*testing.T, *testEnv) string { return "not-a-state" }},
		{name: "other_session", state: func(t *testing.T, env *testEnv) string {
			return env.browser(t).login()
		}},
		{name: "stale_nonce", state: func(t *testing.T, env *testEnv) string {
			signed, err := env.auth.stateSigner.Sign(browserauth.AuthorizationState{SessionID: "x", Nonce: "y"})
			require.NoError(t, err)
			return signed
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			b := env.browser(t)
			b.login()

			fragment := validFragment
			if state := tt.state(t, env); state != "" {
				fragment += "&state=" + url.QueryEscape(state)
			}

			rec := b.submitFragment(fragment)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Zero(t, env.upstream.entitlementCalls.Load())
		})
	}
}

func TestSubmitFragment_InProgress(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.holdEntitlements()
	b := env.browser(t)
	fragment := validFragment + "&state=" + url.QueryEscape(b.login())
	sealed := b.sessionCookie()
	require.NotNil(t, sealed)

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, FragmentPath, strings.NewReader(`{"fragment":"`+fragment+`"}`))
		token, _ := env.csrf.Generate()
		req.Header.Set(CSRFHeader, token)
		req.AddCookie(sealed)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		done <- rec.Code
	}()
	<-env.upstream.entered

	assert.Equal(t, http.StatusConflict, b.submitFragment(fragment).Code)
	assert.Equal(t, http.StatusConflict, b.get(LoginPath).Code)

	resp := decodeStatus(t, b.get(StatusPath))
	assert.Equal(t, session.StatusAuthenticating, resp.Status)
	assert.True(t, resp.Pending)
	assert.False(t, resp.IsAuthenticated)

	close(env.upstream.release)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Equal(t, int32(1), env.upstream.entitlementCalls.Load())
	assert.True(t, decodeStatus(t, b.get(StatusPath)).IsAuthenticated)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	rec := b.get(StatusPath)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeStatus(t, rec)
	assert.Equal(t, session.StatusUnauthenticated, resp.Status)
	assert.NotEmpty(t, resp.CSRFToken)
	assert.Nil(t, b.sessionCookie(), "status never creates a session")

	b.submitFragment(validFragment)
	resp = decodeStatus(t, b.get(StatusPath))
	assert.True(t, resp.IsAuthenticated)
	assert.Equal(t, "ABC", resp.SubjectID)
	assert.Empty(t, resp.SessionToken)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	require.Equal(t, http.StatusOK, b.submitFragment(validFragment).Code)
	sealed := b.sessionCookie()

	rec := b.post(LogoutPath, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StatusUnauthenticated, decodeStatus(t, rec).Status)
	assert.Nil(t, b.sessionCookie(), "logout clears the cookie")
	assert.Zero(t, env.store.Len())

	_, ok := env.binder.Resolve(withCookie(sealed))
	assert.False(t, ok, "the old cookie no longer names a session")
}

func TestLogout_RequiresCSRF(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.submitFragment(validFragment)

	rec := b.post(LogoutPath, "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, env.store.Len())
}

func withCookie(c *http.Cookie) *http.Request {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: c.Value})
	}
	return req
}
