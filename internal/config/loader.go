package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".majordomo"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. MAJORDOMO_CONFIG overrides
// the file location; MAJORDOMO_HOME overrides the base directory.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("MAJORDOMO_CONFIG")); explicit != "" {
		return expandHomePath(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFile), nil
}

// resolveHomeDir returns the majordomo home directory.
func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("MAJORDOMO_HOME")); h != "" {
		return expandHomePath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir), nil
}

func expandHomePath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, p[1:]), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		data = substituteEnvValues(data)
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("MAJORDOMO_PATHS", &cfg.Paths)
	envconfig.Process("MAJORDOMO_MODEL", &cfg.Model)
	envconfig.Process("MAJORDOMO_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("MAJORDOMO_GATEWAY", &cfg.Gateway)
	envconfig.Process("MAJORDOMO_NOTIFY", &cfg.Notify)
	envconfig.Process("MAJORDOMO_TRACE", &cfg.Trace)
	envconfig.Process("MAJORDOMO_CALENDAR", &cfg.Calendar)
	envconfig.Process("MAJORDOMO_APPROVAL", &cfg.Approval)

	// Fallback for API key
	if cfg.Providers.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		}
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.Paths.Home, &cfg.Paths.DatabasePath, &cfg.Paths.OutboxDir} {
		if expanded, err := expandHomePath(*p); err == nil {
			*p = expanded
		}
	}

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvValues expands ${VAR} references inside the raw config file so
// secrets can stay in the environment.
func substituteEnvValues(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		if value, ok := os.LookupEnv(string(parts[1])); ok {
			return []byte(value)
		}
		return match
	})
}
