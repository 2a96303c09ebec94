package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables that override the rc file.
const (
	EnvServiceURL     = "MASKSTUDIO_SERVICE_URL"
	EnvDesignAPIURL   = "MASKSTUDIO_DESIGN_API_URL"
	EnvDesignAPIToken = "MASKSTUDIO_DESIGN_API_TOKEN"
	EnvLogMode        = "MASKSTUDIO_LOG_MODE"
	EnvLogLevel       = "MASKSTUDIO_LOG_LEVEL"
	EnvPollAttempts   = "MASKSTUDIO_POLL_ATTEMPTS"
)

// ApplyEnv overrides cfg with any MASKSTUDIO_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if v := getEnv(EnvServiceURL); v != "" {
		cfg.Service.BaseURL = v
	}
	if v := getEnv(EnvDesignAPIURL); v != "" {
		cfg.DesignAPI.BaseURL = v
	}
	if v := getEnv(EnvDesignAPIToken); v != "" {
		cfg.DesignAPI.Token = v
	}
	if v := getEnv(EnvLogMode); v != "" {
		cfg.Log.Mode = v
	}
	if v := getEnv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getEnv(EnvPollAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return &EnvError{Name: EnvPollAttempts, Value: v}
		}
		cfg.Service.PollAttempts = n
	}
	return nil
}

// EnvError reports an unusable environment override.
type EnvError struct {
	Name  string
	Value string
}

func (e *EnvError) Error() string {
	return "invalid value for " + e.Name + ": " + strconv.Quote(e.Value)
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
