package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/riot-front/internal/browserauth"
	"github.com/dgellow/riot-front/internal/crypto"
	"github.com/dgellow/riot-front/internal/idp"
	jsonwriter "github.com/dgellow/riot-front/internal/json"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/dgellow/riot-front/internal/token"
)

const (
	// LoginPath starts the implicit grant
	LoginPath = "/login"
	// CallbackPath is the registered redirect URI path
	CallbackPath = "/callback"
	// FragmentPath accepts a redirect fragment or a full pasted redirect URL
	FragmentPath = "/auth/fragment"
	// StatusPath reports the session state
	StatusPath = "/auth/status"
	// LogoutPath discards the session credentials
	LogoutPath = "/auth/logout"

	stateTTL         = 10 * time.Minute
	maxFragmentBytes = 64 << 10
)

// StatusResponse is the JSON body of every auth endpoint. It carries a
// fresh CSRF token so scripted clients can issue the next POST.
// SessionToken is only set by a successful fragment submission.
type StatusResponse struct {
	session.State
	CSRFToken    string `json:"csrf_token,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// FragmentRequest is the body of POST /auth/fragment. Exactly one of the
// fields is expected; URL is the full redirect address copied from the
// browser's address bar.
type FragmentRequest struct {
	Fragment string `json:"fragment,omitempty"`
	URL      string `json:"url,omitempty"`
}

// AuthHandlers serves the browser side of the implicit grant
type AuthHandlers struct {
	binder      *SessionBinder
	store       *session.Store
	provider    *idp.ImplicitProvider
	stateSigner crypto.TokenSigner
	csrf        *crypto.CSRFProtection
	name        string
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(
	binder *SessionBinder,
	store *session.Store,
	provider *idp.ImplicitProvider,
	signingKey []byte,
	csrf *crypto.CSRFProtection,
	name string,
) *AuthHandlers {
	return &AuthHandlers{
		binder:      binder,
		store:       store,
		provider:    provider,
		stateSigner: crypto.NewTokenSigner(signingKey, stateTTL),
		csrf:        csrf,
		name:        name,
	}
}

// Login binds a fresh login nonce to the session and redirects to the
// authorize endpoint
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	handle, err := h.binder.Ensure(w, r)
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to create session", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to create session")
		return
	}

	if handle.Machine.Snapshot().Status == session.StatusAuthenticating {
		jsonwriter.WriteConflict(w, session.ErrAuthenticationInProgress.Error())
		return
	}

	nonce, err := crypto.NewNonce()
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to generate login nonce", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	state, err := h.stateSigner.Sign(browserauth.AuthorizationState{
		SessionID: handle.ID,
		Nonce:     nonce,
	})
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to sign authorization state", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	if err := h.store.SetLoginNonce(handle.ID, nonce); err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	log.LogInfoWithFields("auth", "Redirecting to authorize endpoint", map[string]any{
		"provider": h.provider.Type(),
	})
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.provider.AuthURL(state, nonce), http.StatusFound)
}

// Callback serves the page the authorize endpoint redirects to. The fragment
// never reaches the server in the request line, so the page's script posts
// it to FragmentPath. The page itself creates no session; anonymous visits
// must not grow the store.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	scriptNonce, err := crypto.NewNonce()
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to render page")
		return
	}
	csrfToken, err := h.csrf.Generate()
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to render page")
		return
	}

	setPageHeaders(w.Header(), scriptNonce)
	data := CallbackPageData{
		Name:        h.name,
		ScriptNonce: scriptNonce,
		CSRFToken:   csrfToken,
		SubmitPath:  FragmentPath,
		LoginPath:   LoginPath,
	}
	if err := callbackPageTemplate.Execute(w, data); err != nil {
		log.LogErrorWithFields("auth", "Failed to render callback page", map[string]any{
			"error": err.Error(),
		})
	}
}

// SubmitFragment authenticates the session with a redirect fragment
func (h *AuthHandlers) SubmitFragment(w http.ResponseWriter, r *http.Request) {
	handle, err := h.binder.Ensure(w, r)
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Failed to create session")
		return
	}

	var req FragmentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFragmentBytes)).Decode(&req); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	fragment := req.Fragment
	if fragment == "" && req.URL != "" {
		fragment, err = token.FragmentFromURL(req.URL)
		if err != nil {
			jsonwriter.WriteBadRequest(w, err.Error())
			return
		}
	}

	if !h.stateMatches(handle.ID, fragment) {
		log.LogWarnWithFields("auth", "Rejected redirect fragment with foreign state", map[string]any{
			"session": log.RedactToken(handle.ID),
		})
		jsonwriter.WriteForbidden(w, "Authorization state does not match this session")
		return
	}

	// The exchanges outlive an abandoned request so the session still
	// settles into Authenticated or Failed.
	state, err := handle.Machine.Authenticate(context.WithoutCancel(r.Context()), fragment)
	switch {
	case errors.Is(err, session.ErrAuthenticationInProgress):
		jsonwriter.WriteConflict(w, err.Error())
		return
	case errors.Is(err, session.ErrNoRedirectCredentials):
		jsonwriter.WriteBadRequest(w, "Fragment carries no access token")
		return
	}

	if !state.IsAuthenticated {
		h.writeStatus(w, http.StatusUnauthorized, state)
		return
	}

	resp := h.newStatusResponse(state)
	if sealed, err := h.binder.Token(handle); err == nil {
		resp.SessionToken = sealed
	}
	h.write(w, http.StatusOK, resp)
}

// stateMatches checks the fragment's state against the login nonce bound by
// Login. Sessions that never went through Login accept any fragment so a
// redirect URL obtained elsewhere can be pasted.
func (h *AuthHandlers) stateMatches(sessionID, fragment string) bool {
	nonce, pending := h.store.LoginNonce(sessionID)
	if !pending {
		return true
	}

	var authState browserauth.AuthorizationState
	if err := h.stateSigner.Verify(idp.StateFromFragment(fragment), &authState); err != nil {
		return false
	}
	return authState.SessionID == sessionID &&
		subtle.ConstantTimeCompare([]byte(authState.Nonce), []byte(nonce)) == 1
}

// Status reports the state of the request's session
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	state := session.State{Status: session.StatusUnauthenticated}
	if handle, ok := h.binder.Resolve(r); ok {
		state = handle.Machine.Snapshot()
	}
	h.writeStatus(w, http.StatusOK, state)
}

// Logout discards the session's credentials and its cookie
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if handle, ok := h.binder.Resolve(r); ok {
		h.binder.End(w, handle)
		log.LogInfoWithFields("auth", "Session logged out", nil)
	}
	h.writeStatus(w, http.StatusOK, session.State{Status: session.StatusUnauthenticated})
}

func (h *AuthHandlers) newStatusResponse(state session.State) StatusResponse {
	resp := StatusResponse{State: state}
	if csrfToken, err := h.csrf.Generate(); err == nil {
		resp.CSRFToken = csrfToken
	}
	return resp
}

func (h *AuthHandlers) writeStatus(w http.ResponseWriter, status int, state session.State) {
	h.write(w, status, h.newStatusResponse(state))
}

func (h *AuthHandlers) write(w http.ResponseWriter, status int, resp StatusResponse) {
	if err := jsonwriter.WriteResponse(w, status, resp); err != nil {
		log.LogErrorWithFields("auth", "Failed to write response", map[string]any{
			"error": err.Error(),
		})
	}
}
