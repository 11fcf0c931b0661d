package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgellow/riot-front/internal"
	"github.com/dgellow/riot-front/internal/config"
	"github.com/dgellow/riot-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": config.SupportedVersion,
		"server": map[string]any{
			"addr":           ":8080",
			"baseURL":        "https://riot-front.example.com",
			"name":           "riot-front",
			"allowedOrigins": []string{"https://claude.ai"},
			"sessionKey":     map[string]string{"$env": "RIOT_FRONT_SESSION_KEY"},
			"signingKey":     map[string]string{"$env": "RIOT_FRONT_SIGNING_KEY"},
		},
		"identityProvider": map[string]any{
			"authorizeURL": config.DefaultAuthorizeURL,
			"clientId":     config.DefaultClientID,
			"redirectUri":  "https://riot-front.example.com/callback",
			"scopes":       config.DefaultScopes,
		},
		"exchange": map[string]any{
			"entitlementsURL": config.DefaultEntitlementsURL,
			"geoURL":          config.DefaultGeoURL,
			"timeout":         "10s",
		},
		"api": map[string]any{
			"baseURL":       config.DefaultAPIBaseURL,
			"clientVersion": config.DefaultClientVersion,
			"timeout":       "15s",
		},
		"sessions": map[string]any{
			"timeout":         config.DefaultSessionTimeout.String(),
			"cleanupInterval": config.DefaultCleanupInterval.String(),
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// validateConfig reports every issue in the config at path to w. Warnings
// fail validation too.
func validateConfig(w io.Writer, path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Fprintf(w, "Validating: %s\n", path)
	printIssues(w, "Errors", result.Errors)
	printIssues(w, "Warnings", result.Warnings)
	fmt.Fprintln(w)

	switch {
	case len(result.Errors) > 0:
		fmt.Fprintln(w, "Result: FAIL")
	case len(result.Warnings) > 0:
		fmt.Fprintln(w, "Result: FAIL (warnings present)")
	default:
		fmt.Fprintln(w, "Result: PASS")
		return nil
	}
	return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
}

func printIssues(w io.Writer, title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}

// loadOrDefault loads path, or returns the built-in defaults when path is empty
func loadOrDefault(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// redeem runs the one-shot flow and prints the session and its request
// headers as JSON on stdout
func redeem(cfg config.Config, redirect string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := internal.RedeemRedirect(ctx, cfg, redirect)
	if err != nil {
		return err
	}

	out := struct {
		Session any                 `json:"session"`
		Headers map[string][]string `json:"headers"`
	}{
		Session: result.State,
		Headers: result.Credentials.Header(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func main() {
	conf := flag.String("config", "", "path to config file (required to serve)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	authorizeURL := flag.Bool("authorize-url", false, "print the URL to sign in with and exit")
	redirect := flag.String("redirect", "", "redirect URL (or fragment) to redeem for request headers, then exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(os.Stdout, *conf); err != nil {
			os.Exit(1)
		}
		return
	}

	if *authorizeURL || *redirect != "" {
		cfg, err := loadOrDefault(*conf)
		if err != nil {
			log.LogError("Failed to load config: %v", err)
			os.Exit(1)
		}

		if *authorizeURL {
			u, err := internal.AuthorizeURL(cfg)
			if err != nil {
				log.LogError("Failed to build authorize URL: %v", err)
				os.Exit(1)
			}
			fmt.Println(u)
			return
		}

		if err := redeem(cfg, *redirect); err != nil {
			log.LogError("Authentication failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting riot-front", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	ctx := context.Background()
	app, err := internal.New(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create application: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
