package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "EXPEDIENTES_CONFIG"
	EnvSheetID      = "EXPEDIENTES_SHEET_ID"
	EnvClientID     = "EXPEDIENTES_CLIENT_ID"
	EnvClientSecret = "EXPEDIENTES_CLIENT_SECRET"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // EXPEDIENTES_CONFIG: override config file path
	SheetID      string // EXPEDIENTES_SHEET_ID: index spreadsheet
	ClientID     string // EXPEDIENTES_CLIENT_ID: OAuth client id
	ClientSecret string // EXPEDIENTES_CLIENT_SECRET: OAuth client secret
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		SheetID:      os.Getenv(EnvSheetID),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}
}
