// Error types shared by all LLM providers.
//
// Two failure classes are distinguished so callers can react differently:
// - ConfigurationError: the process is missing a credential. Detected at
//   first use, never at construction, so a deployment without a key only
//   fails when the tutor is actually exercised.
// - ProviderError: the upstream endpoint rejected the request. Carries the
//   HTTP status and response body for diagnosis.

package llm

import "fmt"

// ConfigurationError indicates a provider credential is missing.
type ConfigurationError struct {
	Provider string
	EnvVar   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s environment variable not set", e.Provider, e.EnvVar)
}

// ProviderError indicates the upstream API rejected a request before any
// content was produced.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}
