// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for expedientes. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Google   GoogleConfig   `toml:"google" json:"google"`
	Workflow WorkflowConfig `toml:"workflow" json:"workflow"`
	Network  NetworkConfig  `toml:"network" json:"network"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
}

// GoogleConfig identifies the OAuth client, the index spreadsheet and where
// case folders are created.
type GoogleConfig struct {
	ClientID       string `toml:"client_id" json:"client_id"`
	ClientSecret   string `toml:"client_secret" json:"-"`
	SheetID        string `toml:"sheet_id" json:"sheet_id"`
	SheetRange     string `toml:"sheet_range" json:"sheet_range"`
	ParentFolderID string `toml:"parent_folder_id" json:"parent_folder_id"`
}

// WorkflowConfig controls case-file creation. The defaults reproduce plain
// sequential, fail-fast behavior with no compensation.
type WorkflowConfig struct {
	ParallelUploads  int  `toml:"parallel_uploads" json:"parallel_uploads"`
	CleanupOnFailure bool `toml:"cleanup_on_failure" json:"cleanup_on_failure"`
	RecordOrphans    bool `toml:"record_orphans" json:"record_orphans"`
}

// NetworkConfig controls the HTTP client: timeouts, pacing, retry of reads
// and the user agent.
type NetworkConfig struct {
	RequestTimeout    string  `toml:"request_timeout" json:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
	MaxRetries        int     `toml:"max_retries" json:"max_retries"`
	UserAgent         string  `toml:"user_agent" json:"user_agent"`
}

// LoggingConfig controls log output behavior: level, format and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFile   string `toml:"log_file" json:"log_file"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	SheetID    *string // --sheet flag
}
