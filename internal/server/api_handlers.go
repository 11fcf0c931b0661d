package server

import (
	"errors"
	"net/http"

	"github.com/dgellow/riot-front/internal/api"
	"github.com/dgellow/riot-front/internal/credentials"
	jsonwriter "github.com/dgellow/riot-front/internal/json"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
)

// APIHandlers proxies reads of the partitioned API for the request's session
type APIHandlers struct {
	client *api.Client
	realm  string
}

// NewAPIHandlers creates new API handlers
func NewAPIHandlers(client *api.Client, realm string) *APIHandlers {
	return &APIHandlers{client: client, realm: realm}
}

// Endpoint serves GET /api/{endpoint}. The session handle is put in the
// context by NewRequireSessionMiddleware.
func (h *APIHandlers) Endpoint(w http.ResponseWriter, r *http.Request) {
	handle, ok := session.FromContext(r.Context())
	if !ok {
		jsonwriter.WriteUnauthorizedBearer(w, h.realm, "No active session. Sign in first.")
		return
	}

	name := r.PathValue("endpoint")
	if _, known := api.Lookup(name); !known {
		jsonwriter.WriteNotFound(w, "Unknown endpoint: "+name)
		return
	}

	q := r.URL.Query()
	page, err := api.ParsePage(q.Get("startIndex"), q.Get("endIndex"))
	if err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}

	body, err := h.client.Fetch(r.Context(), handle.Machine.Snapshot(), name, page)
	if err != nil {
		h.writeFetchError(w, name, err)
		return
	}
	jsonwriter.WriteRaw(w, http.StatusOK, body)
}

// Index lists the endpoints GET /api/{endpoint} understands
func (h *APIHandlers) Index(w http.ResponseWriter, r *http.Request) {
	type endpointInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Paged       bool   `json:"paged"`
	}
	var out []endpointInfo
	for _, ep := range api.Endpoints() {
		out = append(out, endpointInfo{Name: ep.Name, Description: ep.Description, Paged: ep.Paged})
	}
	_ = jsonwriter.Write(w, map[string]any{"endpoints": out})
}

func (h *APIHandlers) writeFetchError(w http.ResponseWriter, name string, err error) {
	var apiErr *api.Error
	switch {
	case errors.Is(err, credentials.ErrNotAuthenticated):
		jsonwriter.WriteUnauthorizedBearer(w, h.realm, "Session is not authenticated")
	case errors.Is(err, api.ErrUnknownEndpoint):
		jsonwriter.WriteNotFound(w, err.Error())
	case errors.Is(err, api.ErrInvalidPage):
		jsonwriter.WriteBadRequest(w, err.Error())
	case errors.As(err, &apiErr):
		log.LogWarnWithFields("api", "Partitioned API rejected request", map[string]any{
			"endpoint": name,
			"status":   apiErr.StatusCode,
		})
		jsonwriter.WriteBadGateway(w, apiErr.Error())
	default:
		log.LogErrorWithFields("api", "Partitioned API call failed", map[string]any{
			"endpoint": name,
			"error":    err.Error(),
		})
		jsonwriter.WriteBadGateway(w, "Upstream request failed")
	}
}
