package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/riot-front/internal/browserauth"
	"github.com/dgellow/riot-front/internal/cookie"
	"github.com/dgellow/riot-front/internal/crypto"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
)

// SessionBinder ties HTTP requests to session store entries through the
// encrypted session cookie. Non-browser clients may present the same sealed
// value as a Bearer credential.
type SessionBinder struct {
	store     *session.Store
	encryptor crypto.Encryptor
}

// NewSessionBinder creates a new session binder
func NewSessionBinder(store *session.Store, encryptor crypto.Encryptor) *SessionBinder {
	return &SessionBinder{
		store:     store,
		encryptor: encryptor,
	}
}

// sealedSession returns the sealed session value carried by r, if any
func sealedSession(r *http.Request) string {
	if value, err := cookie.GetSession(r); err == nil && value != "" {
		return value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

// Resolve returns the live session named by the request
func (b *SessionBinder) Resolve(r *http.Request) (session.Handle, bool) {
	sealed := sealedSession(r)
	if sealed == "" {
		return session.Handle{}, false
	}

	c, err := browserauth.OpenSessionCookie(b.encryptor, sealed)
	if err != nil {
		log.LogDebugWithFields("session", "Rejected session credential", map[string]any{
			"error": err.Error(),
		})
		return session.Handle{}, false
	}

	handle, err := b.store.Get(c.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			log.LogErrorWithFields("session", "Session lookup failed", map[string]any{
				"error": err.Error(),
			})
		}
		return session.Handle{}, false
	}
	return handle, true
}

// Ensure returns the request's session, creating one and setting the
// cookie when there is none.
func (b *SessionBinder) Ensure(w http.ResponseWriter, r *http.Request) (session.Handle, error) {
	if handle, ok := b.Resolve(r); ok {
		return handle, nil
	}

	handle, err := b.store.Create()
	if err != nil {
		return session.Handle{}, err
	}

	sealed, err := b.Token(handle)
	if err != nil {
		b.store.Delete(handle.ID)
		return session.Handle{}, err
	}

	cookie.SetSession(w, sealed)
	return handle, nil
}

// Token seals a credential naming handle's session. It is interchangeable
// with the cookie value and is what MCP hosts send as a Bearer token.
func (b *SessionBinder) Token(handle session.Handle) (string, error) {
	sealed, err := browserauth.SessionCookie{
		SessionID: handle.ID,
		IssuedAt:  time.Now(),
	}.Seal(b.encryptor)
	if err != nil {
		return "", fmt.Errorf("sealing session cookie: %w", err)
	}
	return sealed, nil
}

// End drops the request's session and clears its cookie
func (b *SessionBinder) End(w http.ResponseWriter, handle session.Handle) {
	handle.Machine.Logout()
	b.store.Delete(handle.ID)
	cookie.ClearSession(w)
}
