package cookie

import (
	"net/http"

	"github.com/dgellow/riot-front/internal/envutil"
	"github.com/dgellow/riot-front/internal/log"
)

// SessionCookie carries the encrypted browser session id
const SessionCookie = "riot_front_session"

// newSessionCookie builds the session cookie. Secure is only dropped in
// development, where the server is reached over plain http.
func newSessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSession sets the session cookie. It has no Max-Age so it dies with
// the browser session; server-side state is volatile anyway.
func SetSession(w http.ResponseWriter, value string) {
	c := newSessionCookie(value, 0)
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"secure": c.Secure,
	})
}

// ClearSession expires the session cookie
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, newSessionCookie("", -1))
	log.LogTraceWithFields("cookie", "Session cookie cleared", nil)
}

// GetSession returns the session cookie value. An empty cookie counts as
// absent.
func GetSession(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	if c.Value == "" {
		return "", http.ErrNoCookie
	}
	return c.Value, nil
}
