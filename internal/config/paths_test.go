package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPaths_XDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG variables only apply on Linux")
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, filepath.Join("/xdg/config", "expedientes", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/xdg/data", "expedientes", "token.json"), DefaultTokenPath())
	assert.Equal(t, filepath.Join("/xdg/data", "expedientes", "ledger.db"), DefaultLedgerPath())
}

func TestDefaultPaths_HomeFallback(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG fallback layout only applies on Linux")
	}

	t.Setenv("HOME", "/home/ana")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	assert.Equal(t, "/home/ana/.config/expedientes", DefaultConfigDir())
	assert.Equal(t, "/home/ana/.local/share/expedientes", DefaultDataDir())
}

func TestJoinIfSet(t *testing.T) {
	assert.Empty(t, joinIfSet("", "x"))
	assert.Equal(t, filepath.Join("a", "x"), joinIfSet("a", "x"))
}
