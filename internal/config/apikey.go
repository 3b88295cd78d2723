package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoAPIKey is returned when no API key source yields a value.
var ErrNoAPIKey = errors.New("no API key configured")

// legacyKeyFile is the YAML layout of openai_api_config.yml.
type legacyKeyFile struct {
	APIKey string `yaml:"api key"`
}

// ResolveAPIKey returns the model API key and a short description of where it
// came from. Order: model.api_key, the variable named by model.api_key_env,
// then the legacy YAML key file.
func (c *Config) ResolveAPIKey() (key, origin string, err error) {
	if k := strings.TrimSpace(c.Model.APIKey); k != "" {
		return k, "config", nil
	}
	if name := c.Model.APIKeyEnv; name != "" {
		if k := strings.TrimSpace(os.Getenv(name)); k != "" {
			return k, "$" + name, nil
		}
	}
	if path := c.Model.APIKeyFile; path != "" {
		k, err := readLegacyKeyFile(path)
		switch {
		case err == nil && k != "":
			return k, path, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", "", err
		}
	}
	return "", "", ErrNoAPIKey
}

func readLegacyKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var f legacyKeyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return strings.TrimSpace(f.APIKey), nil
}
