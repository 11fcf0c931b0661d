package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes validates a config document structure without resolving env vars
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", SupportedVersion)
	} else if !strings.HasPrefix(version, SupportedVersion) {
		result.addError("version", "unsupported version '%s' - use '%s' or '%s-<variant>'", version, SupportedVersion, SupportedVersion)
	}

	validateServerStructure(rawConfig, result)
	validateDurations(rawConfig, result)
	validateSessionsConfig(rawConfig, result)

	return result
}

func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		result.addError("server", "server field is required and must be an object")
		return
	}

	if _, ok := server["baseURL"]; !ok {
		result.addError("server.baseURL", "baseURL is required. Example: \"https://riot-front.example.com\"")
	}
	if _, ok := server["addr"]; !ok {
		result.addError("server.addr", "addr is required. Example: \":8080\" or \"0.0.0.0:8080\"")
	}

	for _, name := range secretFields {
		path := "server." + name
		value, ok := server[name]
		if !ok {
			result.addError(path, "%s is required. Hint: {\"$env\": \"RIOT_FRONT_%s\"}", name, strings.ToUpper(name))
			continue
		}
		if err := validateEnvVarReference(value, name, path); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, strings.Trim(match, "${}"))
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}

// validateDurations checks every duration-valued field parses
func validateDurations(rawConfig map[string]any, result *ValidationResult) {
	fields := []struct{ section, key string }{
		{"exchange", "timeout"},
		{"api", "timeout"},
		{"sessions", "timeout"},
		{"sessions", "cleanupInterval"},
	}
	for _, f := range fields {
		section, ok := rawConfig[f.section].(map[string]any)
		if !ok {
			continue
		}
		raw, ok := section[f.key]
		if !ok {
			continue
		}
		path := f.section + "." + f.key
		s, ok := raw.(string)
		if !ok {
			result.addError(path, "must be a duration string like \"30s\"")
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			result.addError(path, "invalid duration %q: %v", s, err)
		}
	}
}

// validateSessionsConfig checks session management configuration
func validateSessionsConfig(rawConfig map[string]any, result *ValidationResult) {
	sessions, ok := rawConfig["sessions"].(map[string]any)
	if !ok {
		return
	}

	timeoutStr, hasTimeout := sessions["timeout"].(string)
	cleanupStr, hasCleanup := sessions["cleanupInterval"].(string)
	if !hasTimeout || !hasCleanup {
		return
	}

	timeout, err1 := time.ParseDuration(timeoutStr)
	cleanup, err2 := time.ParseDuration(cleanupStr)
	if err1 == nil && err2 == nil && cleanup > timeout {
		result.addWarning("sessions",
			"cleanupInterval (%s) is longer than timeout (%s). Expired sessions will remain in memory until cleanup runs.",
			cleanupStr, timeoutStr)
	}
}
