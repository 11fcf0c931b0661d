package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/riot-front/internal/api"
	"github.com/dgellow/riot-front/internal/config"
	"github.com/dgellow/riot-front/internal/credentials"
	"github.com/dgellow/riot-front/internal/crypto"
	"github.com/dgellow/riot-front/internal/exchange"
	"github.com/dgellow/riot-front/internal/idp"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/server"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/dgellow/riot-front/internal/tools"
)

const (
	// MCPPath is where the streamable HTTP MCP endpoint is mounted
	MCPPath = "/mcp/"

	csrfTTL         = time.Hour
	shutdownTimeout = 30 * time.Second
)

// RiotFront represents the complete application
type RiotFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	store      *session.Store
	cleanup    *session.CleanupManager
	mcp        *tools.Server
}

// New creates the application with all dependencies built
func New(ctx context.Context, cfg config.Config) (*RiotFront, error) {
	log.LogInfoWithFields("riotfront", "Building application", map[string]any{
		"baseURL":      cfg.Server.BaseURL,
		"authorizeURL": cfg.IdentityProvider.AuthorizeURL,
	})

	store := newStore(cfg)

	provider, err := idp.NewImplicitProvider(idp.ImplicitConfig{
		AuthorizeURL: cfg.IdentityProvider.AuthorizeURL,
		ClientID:     cfg.IdentityProvider.ClientID,
		RedirectURI:  cfg.IdentityProvider.RedirectURI,
		Scopes:       cfg.IdentityProvider.Scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}

	encryptor, err := crypto.NewEncryptor([]byte(cfg.Server.SessionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create session encryptor: %w", err)
	}

	apiClient, err := newAPIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	mcpServer := tools.NewServer(cfg.Server.Name, MCPPath, apiClient)

	handler := buildHTTPHandler(cfg, store, provider, encryptor, apiClient, mcpServer)

	return &RiotFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
		store:      store,
		cleanup:    session.NewCleanupManager(store, cfg.Sessions.CleanupInterval),
		mcp:        mcpServer,
	}, nil
}

// newStore builds the in-memory session store and the exchange clients its
// machines use
func newStore(cfg config.Config) *session.Store {
	exchangeClient := &http.Client{Timeout: cfg.Exchange.Timeout}
	return session.NewStore(
		exchange.NewEntitlementExchanger(cfg.Exchange.EntitlementsURL, exchangeClient),
		exchange.NewRegionResolver(cfg.Exchange.GeoURL, exchangeClient),
		cfg.Sessions.Timeout,
	)
}

func newAPIClient(cfg config.Config) (*api.Client, error) {
	assembler, err := credentials.NewAssembler(cfg.API.ClientVersion, cfg.API.ClientPlatform)
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.API.BaseURL, assembler, &http.Client{Timeout: cfg.API.Timeout}), nil
}

// Run starts and manages the complete application lifecycle
func (r *RiotFront) Run() error {
	log.LogInfoWithFields("riotfront", "Starting application", map[string]any{
		"addr": r.config.Server.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel to signal errors that should trigger shutdown
	errChan := make(chan error, 1)

	go func() {
		if err := r.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	r.cleanup.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("riotfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("riotfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("riotfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	r.cleanup.Stop()

	if err := r.mcp.Shutdown(shutdownCtx); err != nil {
		log.LogWarnWithFields("riotfront", "MCP transport shutdown error", map[string]any{
			"error": err.Error(),
		})
	}

	if err := r.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("riotfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	log.LogInfoWithFields("riotfront", "Application shutdown complete", map[string]any{
		"reason":   shutdownReason,
		"sessions": r.store.Len(),
	})
	return nil
}

// buildHTTPHandler registers every route with its middleware
func buildHTTPHandler(
	cfg config.Config,
	store *session.Store,
	provider *idp.ImplicitProvider,
	encryptor crypto.Encryptor,
	apiClient *api.Client,
	mcpServer *tools.Server,
) http.Handler {
	mux := http.NewServeMux()
	realm := cfg.Server.Name

	binder := server.NewSessionBinder(store, encryptor)
	csrf := crypto.NewCSRFProtection([]byte(cfg.Server.SigningKey), csrfTTL)

	corsMiddleware := server.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	csrfMiddleware := server.NewCSRFMiddleware(&csrf)
	requireSession := server.NewRequireSessionMiddleware(binder, realm)

	authMiddleware := []server.MiddlewareFunc{
		corsMiddleware,
		server.NewLoggerMiddleware("auth"),
		server.NewRecoverMiddleware("auth"),
	}
	apiMiddleware := []server.MiddlewareFunc{
		requireSession,
		corsMiddleware,
		server.NewLoggerMiddleware("api"),
		server.NewRecoverMiddleware("api"),
	}
	mcpMiddleware := []server.MiddlewareFunc{
		requireSession,
		corsMiddleware,
		server.NewLoggerMiddleware("mcp"),
		server.NewRecoverMiddleware("mcp"),
	}

	mux.Handle("GET /health", server.NewHealthHandler(store))

	authHandlers := server.NewAuthHandlers(binder, store, provider, []byte(cfg.Server.SigningKey), &csrf, cfg.Server.Name)
	mux.Handle("GET "+server.LoginPath, server.ChainMiddleware(http.HandlerFunc(authHandlers.Login), authMiddleware...))
	mux.Handle("GET "+server.CallbackPath, server.ChainMiddleware(http.HandlerFunc(authHandlers.Callback), authMiddleware...))
	mux.Handle("GET "+server.StatusPath, server.ChainMiddleware(http.HandlerFunc(authHandlers.Status), authMiddleware...))
	mux.Handle("POST "+server.FragmentPath, server.ChainMiddleware(http.HandlerFunc(authHandlers.SubmitFragment), append([]server.MiddlewareFunc{csrfMiddleware}, authMiddleware...)...))
	mux.Handle("POST "+server.LogoutPath, server.ChainMiddleware(http.HandlerFunc(authHandlers.Logout), append([]server.MiddlewareFunc{csrfMiddleware}, authMiddleware...)...))

	apiHandlers := server.NewAPIHandlers(apiClient, realm)
	mux.Handle("GET /api", server.ChainMiddleware(http.HandlerFunc(apiHandlers.Index), authMiddleware...))
	mux.Handle("GET /api/{endpoint}", server.ChainMiddleware(http.HandlerFunc(apiHandlers.Endpoint), apiMiddleware...))

	mux.Handle(MCPPath, server.ChainMiddleware(mcpServer.Handler(), mcpMiddleware...))

	log.LogInfoWithFields("riotfront", "Routes registered", map[string]any{
		"mcp":       MCPPath,
		"endpoints": len(api.Endpoints()),
	})
	return mux
}
