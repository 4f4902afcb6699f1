package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultSheetRange        = "Expedientes!A:G"
	defaultParallelUploads   = 1
	defaultRecordOrphans     = true
	defaultRequestTimeout    = "0"
	defaultRequestsPerSecond = 8
	defaultBurst             = 10
	defaultMaxRetries        = 0
	defaultLogLevel          = "warn"
	defaultLogFormat         = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Google: GoogleConfig{
			SheetRange: defaultSheetRange,
		},
		Workflow: WorkflowConfig{
			ParallelUploads: defaultParallelUploads,
			RecordOrphans:   defaultRecordOrphans,
		},
		Network: NetworkConfig{
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
			Burst:             defaultBurst,
			MaxRetries:        defaultMaxRetries,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
