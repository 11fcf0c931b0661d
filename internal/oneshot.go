package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgellow/riot-front/internal/config"
	"github.com/dgellow/riot-front/internal/credentials"
	"github.com/dgellow/riot-front/internal/crypto"
	"github.com/dgellow/riot-front/internal/idp"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/dgellow/riot-front/internal/token"
)

// Redemption is the outcome of a one-shot authentication
type Redemption struct {
	State       session.State
	Credentials credentials.RequestCredentialSet
}

// AuthorizeURL renders the URL a user opens to start the one-shot flow.
// There is no server-side session to bind, so the URL carries no state.
func AuthorizeURL(cfg config.Config) (string, error) {
	provider, err := idp.NewImplicitProvider(idp.ImplicitConfig{
		AuthorizeURL: cfg.IdentityProvider.AuthorizeURL,
		ClientID:     cfg.IdentityProvider.ClientID,
		RedirectURI:  cfg.IdentityProvider.RedirectURI,
		Scopes:       cfg.IdentityProvider.Scopes,
	})
	if err != nil {
		return "", err
	}

	nonce, err := crypto.NewNonce()
	if err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return provider.AuthURL("", nonce), nil
}

// RedeemRedirect authenticates a throwaway session with a pasted redirect
// URL or bare fragment and assembles its request credentials.
func RedeemRedirect(ctx context.Context, cfg config.Config, redirect string) (Redemption, error) {
	fragment, err := token.FragmentFromURL(redirect)
	if err != nil {
		return Redemption{}, err
	}

	store := newStore(cfg)
	handle, err := store.Create()
	if err != nil {
		return Redemption{}, err
	}
	defer store.Delete(handle.ID)

	state, err := handle.Machine.Authenticate(ctx, fragment)
	if err != nil {
		return Redemption{}, err
	}
	if !state.IsAuthenticated {
		return Redemption{State: state}, errors.New(state.LastError)
	}

	assembler, err := credentials.NewAssembler(cfg.API.ClientVersion, cfg.API.ClientPlatform)
	if err != nil {
		return Redemption{State: state}, err
	}
	creds, err := assembler.Assemble(state)
	if err != nil {
		return Redemption{State: state}, err
	}
	return Redemption{State: state, Credentials: creds}, nil
}
