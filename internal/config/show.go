package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// summary to w. The client secret is never printed.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	ew.printf("[google]\n")
	ew.printf("  client_id           = %q\n", cfg.Google.ClientID)
	ew.printf("  client_secret       = %s\n", redacted(cfg.Google.ClientSecret))
	ew.printf("  sheet_id            = %q\n", cfg.Google.SheetID)
	ew.printf("  sheet_range         = %q\n", cfg.Google.SheetRange)
	ew.printf("  parent_folder_id    = %q\n\n", cfg.Google.ParentFolderID)

	ew.printf("[workflow]\n")
	ew.printf("  parallel_uploads    = %d\n", cfg.Workflow.ParallelUploads)
	ew.printf("  cleanup_on_failure  = %t\n", cfg.Workflow.CleanupOnFailure)
	ew.printf("  record_orphans      = %t\n\n", cfg.Workflow.RecordOrphans)

	ew.printf("[network]\n")
	ew.printf("  request_timeout     = %q\n", cfg.Network.RequestTimeout)
	ew.printf("  requests_per_second = %g\n", cfg.Network.RequestsPerSecond)
	ew.printf("  burst               = %d\n", cfg.Network.Burst)
	ew.printf("  max_retries         = %d\n", cfg.Network.MaxRetries)

	if cfg.Network.UserAgent != "" {
		ew.printf("  user_agent          = %q\n", cfg.Network.UserAgent)
	}

	ew.printf("\n[logging]\n")
	ew.printf("  log_level           = %q\n", cfg.Logging.LogLevel)
	ew.printf("  log_format          = %q\n", cfg.Logging.LogFormat)

	if cfg.Logging.LogFile != "" {
		ew.printf("  log_file            = %q\n", cfg.Logging.LogFile)
	}

	return ew.err
}

func redacted(secret string) string {
	if secret == "" {
		return `""`
	}

	return `"<redacted>"`
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
