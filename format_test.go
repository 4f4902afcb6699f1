package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KiB"},
		{"tens of kilobytes", 15360, "15 KiB"},
		{"megabytes", 5242880, "5.0 MiB"},
		{"gigabytes", 1610612736, "1.5 GiB"},
		{"negative", -1, "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestPrintTable(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer

	headers := []string{"ID", "CODIGO", "ASUNTO"}
	rows := [][]string{
		{"EXP-1", "C100", "Revisión"},
		{"EXP-22", "C2", "Alta"},
	}

	printTable(&buf, headers, rows)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID      CODIGO  ASUNTO", lines[0])
	assert.Equal(t, "EXP-1   C100    Revisión", lines[1])
	assert.Equal(t, "EXP-22  C2      Alta", lines[2])
}

func TestProfileLabel(t *testing.T) {
	assert.Equal(t, "Ana <ana@example.com>", profileLabel("Ana", "ana@example.com"))
	assert.Equal(t, "ana@example.com", profileLabel("", "ana@example.com"))
	assert.Equal(t, "Ana", profileLabel("Ana", ""))
	assert.Equal(t, "(unknown user)", profileLabel("", ""))
}

// disableColor turns off ANSI styling for the duration of the test.
func disableColor(t *testing.T) {
	t.Helper()

	old := color.NoColor
	color.NoColor = true

	t.Cleanup(func() { color.NoColor = old })
}
