package credentials

import (
	"os"

	"github.com/pkg/errors"
)

var ErrMissingAPIKey = errors.New("please pass in the API key or set the GEMINI_API_KEY or GOOGLE_API_KEY environment variable")

// EnvKeys are consulted in order when no explicit key is configured.
var EnvKeys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GENAI_API_KEY"}

// PluginKey is the key configured for the whole server.
type PluginKey struct {
	Key string
	// DisableEnv stops the resolver from falling back to environment variables.
	DisableEnv bool
}

// Resolver picks a usable API key from the plugin-level and request-level keys.
type Resolver func(plugin PluginKey, requestKey string) (string, error)

// Resolve prefers the request key, then the plugin key, then the environment.
func Resolve(plugin PluginKey, requestKey string) (string, error) {
	return NewResolver(os.LookupEnv)(plugin, requestKey)
}

// NewResolver returns a Resolver reading the environment through lookup.
func NewResolver(lookup func(string) (string, bool)) Resolver {
	return func(plugin PluginKey, requestKey string) (string, error) {
		if requestKey != "" {
			return requestKey, nil
		}
		if plugin.Key != "" {
			return plugin.Key, nil
		}
		if plugin.DisableEnv {
			return "", ErrMissingAPIKey
		}

		for _, name := range EnvKeys {
			if v, ok := lookup(name); ok && v != "" {
				return v, nil
			}
		}

		return "", ErrMissingAPIKey
	}
}
