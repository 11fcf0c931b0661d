package idp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// ResponseTypeImplicit asks the identity provider for tokens in the redirect
// fragment instead of an authorization code.
const ResponseTypeImplicit = "token id_token"

// ImplicitConfig configures an implicit-grant identity provider
type ImplicitConfig struct {
	AuthorizeURL string
	ClientID     string
	RedirectURI  string
	Scopes       []string
}

// ImplicitProvider builds authorize URLs for the implicit grant. There is no
// code exchange: the provider redirects back with the tokens in the URL
// fragment, which only the browser can read.
type ImplicitProvider struct {
	config oauth2.Config
}

// NewImplicitProvider creates a new implicit-grant provider
func NewImplicitProvider(cfg ImplicitConfig) (*ImplicitProvider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	u, err := url.Parse(cfg.AuthorizeURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid authorize URL %q", cfg.AuthorizeURL)
	}

	return &ImplicitProvider{
		config: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL: cfg.AuthorizeURL,
			},
		},
	}, nil
}

// Type returns the provider type.
func (p *ImplicitProvider) Type() string {
	return "implicit"
}

// RedirectURI is where the provider sends the browser back to
func (p *ImplicitProvider) RedirectURI() string {
	return p.config.RedirectURL
}

// AuthURL generates the authorization URL. state is echoed back in the
// fragment; nonce ends up in the id token. Either may be empty.
func (p *ImplicitProvider) AuthURL(state, nonce string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", ResponseTypeImplicit),
	}
	if nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}

	authURL := p.config.AuthCodeURL(state, opts...)
	if state == "" {
		authURL = dropEmptyState(authURL)
	}
	return authURL
}

// dropEmptyState removes the empty state parameter AuthCodeURL always adds
func dropEmptyState(authURL string) string {
	u, err := url.Parse(authURL)
	if err != nil {
		return authURL
	}
	q := u.Query()
	if q.Get("state") == "" {
		q.Del("state")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// StateFromFragment returns the state parameter echoed in a redirect
// fragment, or "" when there is none.
func StateFromFragment(fragment string) string {
	values, _ := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	return values.Get("state")
}
