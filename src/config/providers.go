package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderSecrets maps a provider name to its shared webhook secret
type ProviderSecrets map[string]string

// Secret returns the secret for provider. Empty secrets count as missing.
func (p ProviderSecrets) Secret(provider string) (string, bool) {
	secret, ok := p[provider]
	if !ok || secret == "" {
		return "", false
	}
	return secret, true
}

// Names returns the configured provider names
func (p ProviderSecrets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names
}

// providersFile is the on-disk shape of PROVIDERS_FILE:
//
//	providers:
//	  stripe:
//	    secret_env: STRIPE_WEBHOOK_SECRET
//	  test:
//	    secret: test-secret
type providersFile struct {
	Providers map[string]providerEntry `yaml:"providers"`
}

type providerEntry struct {
	Secret    string `yaml:"secret"`
	SecretEnv string `yaml:"secret_env"`
}

// LoadProvidersFile reads provider secrets from a YAML file
func LoadProvidersFile(path string) (ProviderSecrets, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}
	return ParseProviders(data)
}

// ParseProviders decodes the providers YAML document
func ParseProviders(data []byte) (ProviderSecrets, error) {
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	secrets := ProviderSecrets{}
	for name, entry := range file.Providers {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("providers file: empty provider name")
		}
		if entry.Secret != "" && entry.SecretEnv != "" {
			return nil, fmt.Errorf("providers file: %s sets both secret and secret_env", name)
		}
		secret := entry.Secret
		if entry.SecretEnv != "" {
			secret = os.Getenv(entry.SecretEnv)
		}
		// providers with no resolvable secret stay unknown and are rejected
		if secret != "" {
			secrets[name] = secret
		}
	}
	return secrets, nil
}
