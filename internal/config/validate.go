package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation range constants.
const (
	minParallelUploads = 1
	maxParallelUploads = 8
	maxRetries         = 10
	minBurst           = 1
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateGoogle(&cfg.Google)...)
	errs = append(errs, validateWorkflow(&cfg.Workflow)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateGoogle(g *GoogleConfig) []error {
	var errs []error

	if strings.TrimSpace(g.SheetRange) == "" {
		errs = append(errs, errors.New("sheet_range: must not be empty"))
	}

	if g.ClientSecret != "" && g.ClientID == "" {
		errs = append(errs, errors.New("client_secret: set without client_id"))
	}

	return errs
}

func validateWorkflow(w *WorkflowConfig) []error {
	if w.ParallelUploads < minParallelUploads || w.ParallelUploads > maxParallelUploads {
		return []error{fmt.Errorf("parallel_uploads: must be between %d and %d, got %d",
			minParallelUploads, maxParallelUploads, w.ParallelUploads)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if _, err := n.Timeout(); err != nil {
		errs = append(errs, fmt.Errorf("request_timeout: %w", err))
	}

	if n.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second: must not be negative, got %g", n.RequestsPerSecond))
	}

	if n.RequestsPerSecond > 0 && n.Burst < minBurst {
		errs = append(errs, fmt.Errorf("burst: must be at least %d when pacing is enabled, got %d", minBurst, n.Burst))
	}

	if n.MaxRetries < 0 || n.MaxRetries > maxRetries {
		errs = append(errs, fmt.Errorf("max_retries: must be between 0 and %d, got %d", maxRetries, n.MaxRetries))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[strings.ToLower(l.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[strings.ToLower(l.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

// Timeout parses request_timeout. "0" or "" means no timeout.
func (n *NetworkConfig) Timeout() (time.Duration, error) {
	if n.RequestTimeout == "" || n.RequestTimeout == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(n.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", n.RequestTimeout, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", n.RequestTimeout)
	}

	return d, nil
}
