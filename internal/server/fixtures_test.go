package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgellow/riot-front/internal/api"
	"github.com/dgellow/riot-front/internal/cookie"
	"github.com/dgellow/riot-front/internal/credentials"
	"github.com/dgellow/riot-front/internal/crypto"
	"github.com/dgellow/riot-front/internal/exchange"
	"github.com/dgellow/riot-front/internal/idp"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/stretchr/testify/require"
)

// validFragment carries an access token whose payload is {"sub":"ABC"}
const validFragment = "access_token=hdr.eyJzdWIiOiJBQkMifQ==.sig&id_token=i.d.t&expires_in=3600"

var (
	testSessionKey = []byte(strings.Repeat("s", 32))
	testSigningKey = []byte(strings.Repeat("k", 32))
)

// upstream fakes the entitlement, geo and partitioned API endpoints
type upstream struct {
	server           *httptest.Server
	entitlementFails atomic.Bool
	apiStatus        atomic.Int32
	entitlementCalls atomic.Int32
	geoCalls         atomic.Int32
	lastAPIRequest   atomic.Pointer[http.Request]
	liveRegion       atomic.Value // string

	// entered and release hold entitlement calls when set by holdEntitlements
	entered chan struct{}
	release chan struct{}
}

// holdEntitlements makes the entitlement endpoint block until release is
// closed, signalling entered once a call arrives. Call before any request.
func (u *upstream) holdEntitlements() {
	u.entered = make(chan struct{}, 1)
	u.release = make(chan struct{})
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.apiStatus.Store(http.StatusOK)
	u.liveRegion.Store("na")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token/v1", func(w http.ResponseWriter, r *http.Request) {
		u.entitlementCalls.Add(1)
		if u.release != nil {
			select {
			case u.entered <- struct{}{}:
			default:
			}
			<-u.release
		}
		if u.entitlementFails.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"entitlements_token":"ET1"}`))
	})
	mux.HandleFunc("PUT /pas/v1/product/valorant", func(w http.ResponseWriter, r *http.Request) {
		u.geoCalls.Add(1)
		_, _ = w.Write([]byte(`{"token":"geo","affinities":{"pbe":"na","live":"` + u.liveRegion.Load().(string) + `"}}`))
	})
	mux.HandleFunc("GET /name-service/v2/players/{subject}", func(w http.ResponseWriter, r *http.Request) {
		u.lastAPIRequest.Store(r.Clone(r.Context()))
		status := int(u.apiStatus.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"GameName":"Player","TagLine":"NA1","Subject":"` + r.PathValue("subject") + `"}`))
		}
	})
	mux.HandleFunc("GET /match-history/v1/history/{subject}", func(w http.ResponseWriter, r *http.Request) {
		u.lastAPIRequest.Store(r.Clone(r.Context()))
		_, _ = w.Write([]byte(`{"History":[]}`))
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

// testEnv wires the handlers of this package against an upstream fake
type testEnv struct {
	upstream *upstream
	store    *session.Store
	binder   *SessionBinder
	csrf     *crypto.CSRFProtection
	auth     *AuthHandlers
	api      *APIHandlers
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	up := newUpstream(t)

	store := session.NewStore(
		exchange.NewEntitlementExchanger(up.server.URL+"/api/token/v1", up.server.Client()),
		exchange.NewRegionResolver(up.server.URL+"/pas/v1/product/valorant", up.server.Client()),
		time.Hour,
	)
	encryptor, err := crypto.NewEncryptor(testSessionKey)
	require.NoError(t, err)
	binder := NewSessionBinder(store, encryptor)

	provider, err := idp.NewImplicitProvider(idp.ImplicitConfig{
		AuthorizeURL: "https://auth.example.com/authorize",
		ClientID:     "play-valorant-web-prod",
		RedirectURI:  "http://localhost:8080/callback",
		Scopes:       []string{"account", "openid"},
	})
	require.NoError(t, err)

	csrf := crypto.NewCSRFProtection(testSigningKey, time.Hour)
	auth := NewAuthHandlers(binder, store, provider, testSigningKey, &csrf, "riot-front")

	assembler, err := credentials.NewAssembler("release-test", credentials.DefaultPlatform)
	require.NoError(t, err)
	apiHandlers := NewAPIHandlers(api.NewClient(up.server.URL, assembler, up.server.Client()), "riot-front")

	requireSession := NewRequireSessionMiddleware(binder, "riot-front")
	csrfCheck := NewCSRFMiddleware(&csrf)

	mux := http.NewServeMux()
	mux.Handle("GET /health", NewHealthHandler(store))
	mux.HandleFunc("GET "+LoginPath, auth.Login)
	mux.HandleFunc("GET "+CallbackPath, auth.Callback)
	mux.Handle("POST "+FragmentPath, ChainMiddleware(http.HandlerFunc(auth.SubmitFragment), csrfCheck))
	mux.HandleFunc("GET "+StatusPath, auth.Status)
	mux.Handle("POST "+LogoutPath, ChainMiddleware(http.HandlerFunc(auth.Logout), csrfCheck))
	mux.Handle("GET /api/{endpoint}", ChainMiddleware(http.HandlerFunc(apiHandlers.Endpoint), requireSession))

	return &testEnv{
		upstream: up,
		store:    store,
		binder:   binder,
		csrf:     &csrf,
		auth:     auth,
		api:      apiHandlers,
		handler:  mux,
	}
}

// browser replays cookies between requests like a user agent would
type browser struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, env: e, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.env.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path, body string, withCSRF bool) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withCSRF {
		token, err := b.env.csrf.Generate()
		require.NoError(b.t, err)
		req.Header.Set(CSRFHeader, token)
	}
	return b.do(req)
}

func (b *browser) submitFragment(fragment string) *httptest.ResponseRecorder {
	b.t.Helper()
	body, err := json.Marshal(FragmentRequest{Fragment: fragment})
	require.NoError(b.t, err)
	return b.post(FragmentPath, string(body), true)
}

// login follows GET /login and returns the state the provider would echo
func (b *browser) login() string {
	b.t.Helper()
	rec := b.get(LoginPath)
	require.Equal(b.t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(b.t, err)
	state := location.Query().Get("state")
	require.NotEmpty(b.t, state)
	return state
}

func (b *browser) sessionCookie() *http.Cookie {
	return b.cookies[cookie.SessionCookie]
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}
