package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/model8cli/m8cli/provider"
)

const keyringService = "m8cli"

// ErrNoAPIKey indicates no credential could be found for a provider.
var ErrNoAPIKey = errors.New("no API key found")

// resolveAPIKey finds a provider's credential: explicit flag first, then the
// system keyring, then the provider's environment variable. Local providers
// need none.
func resolveAPIKey(p *provider.Provider, flagKey string) (string, error) {
	if flagKey != "" {
		return flagKey, nil
	}
	if p.Local {
		return "", nil
	}

	if p.EnvKey != "" {
		if secret, err := keyring.Get(keyringService, p.EnvKey); err == nil && secret != "" {
			return secret, nil
		}
		if env := os.Getenv(p.EnvKey); env != "" {
			return env, nil
		}
	}
	return "", fmt.Errorf("%w for %s: set it with 'm8cli config set-key %s' or export %s",
		ErrNoAPIKey, p.Name, p.Name, p.EnvKey)
}

// storeAPIKey saves a credential in the system keyring.
func storeAPIKey(p *provider.Provider, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if p.EnvKey == "" {
		return fmt.Errorf("provider %s does not use an API key", p.Name)
	}
	if err := keyring.Set(keyringService, p.EnvKey, trimmed); err != nil {
		return fmt.Errorf("storing key for %s: %w", p.Name, err)
	}
	return nil
}

func deleteAPIKey(p *provider.Provider) error {
	if err := keyring.Delete(keyringService, p.EnvKey); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deleting key for %s: %w", p.Name, err)
	}
	return nil
}
