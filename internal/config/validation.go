package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

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

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

var knownTopLevel = map[string]bool{
	"version":        true,
	"google":         true,
	"apple":          true,
	"verify":         true,
	"allowedDomains": true,
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes is ValidateFile for config already in memory.
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	// Check JSON syntax
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: "version field is required. Hint: Add \"version\": \"" + VersionPrefix + "\"",
		})
	} else if !strings.HasPrefix(version, VersionPrefix) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use '%s' or '%s-<variant>'", version, VersionPrefix, VersionPrefix),
		})
	}

	for key := range rawConfig {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    key,
				Message: fmt.Sprintf("unknown field '%s' is ignored", key),
			})
		}
	}

	_, hasGoogle := rawConfig["google"]
	_, hasApple := rawConfig["apple"]
	if !hasGoogle && !hasApple {
		result.Errors = append(result.Errors, ValidationError{
			Message: "at least one of google or apple must be configured",
		})
	}

	if hasGoogle {
		validateGoogleStructure(rawConfig["google"], result)
	}
	if hasApple {
		validateAppleStructure(rawConfig["apple"], result)
	}

	if domains, exists := rawConfig["allowedDomains"]; exists {
		if _, ok := domains.([]any); !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "allowedDomains",
				Message: "allowedDomains must be an array of domain names",
			})
		}
	}

	return result
}

func validateGoogleStructure(value any, result *ValidationResult) {
	google, ok := value.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "google",
			Message: "google must be an object",
		})
		return
	}

	if !hasValue(google, "clientId") {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "google.clientId",
			Message: "clientId is missing - Google sign-in will report a configuration error",
		})
	}

	if secret, exists := google["clientSecret"]; exists {
		if err := validateEnvVarReference(secret, "clientSecret", "google.clientSecret"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}

	if t, exists := google["timeout"]; exists {
		s, ok := t.(string)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "google.timeout",
				Message: "timeout must be a duration string like \"60s\"",
			})
		} else if _, err := time.ParseDuration(s); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "google.timeout",
				Message: fmt.Sprintf("invalid duration '%s': %v", s, err),
			})
		}
	}
}

func validateAppleStructure(value any, result *ValidationResult) {
	apple, ok := value.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "apple",
			Message: "apple must be an object",
		})
		return
	}

	if !hasValue(apple, "clientId") {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "apple.clientId",
			Message: "clientId is missing - Apple sign-in will report a configuration error",
		})
	}

	redirect, ok := apple["redirectUri"]
	if !ok || redirect == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "apple.redirectUri",
			Message: "redirectUri is missing - Apple sign-in will report a configuration error",
		})
	} else if s, ok := redirect.(string); ok && !strings.HasPrefix(s, "https://") {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "apple.redirectUri",
			Message: fmt.Sprintf("Apple only redirects to https URIs, got '%s'", s),
		})
	}
}

// hasValue reports whether key holds a non-empty string or a reference.
func hasValue(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case string:
		return v != ""
	case map[string]any:
		return true
	default:
		return false
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		// Check if it looks like a bash-style env var
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 0 {
			varName := strings.Trim(matches[0], "${}")
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion and ensures security", v, varName),
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

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing", match, varName),
			})
		}
	case map[string]any:
		// Skip if this is already an env ref
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
