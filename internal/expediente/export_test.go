package expediente

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExport_JSONRawRows(t *testing.T) {
	svc, idx, _, _ := newTestService(t)
	idx.rows = [][]string{
		{"E1", "C1", "N1", "A1", "2024-01-01", "", "F1"},
		{"", "", ""},
	}

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var rows [][]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, idx.rows, rows, "export keeps rows exactly as the index returns them")
	assert.Contains(t, buf.String(), "\n  [\n    \"E1\",")
}

func TestExport_YAML(t *testing.T) {
	svc, idx, _, _ := newTestService(t)
	idx.rows = [][]string{{"E1", "C<1>"}}

	var buf bytes.Buffer
	_, err := svc.Export(context.Background(), &buf, FormatYAML)
	require.NoError(t, err)

	var rows [][]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, idx.rows, rows)
}

func TestExport_Empty(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf, FormatJSON)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "[]\n", buf.String())
}

func TestExport_ReadError(t *testing.T) {
	svc, idx, _, _ := newTestService(t)
	idx.readErr = errors.New("boom")

	_, err := svc.Export(context.Background(), &bytes.Buffer{}, FormatJSON)
	assert.ErrorContains(t, err, "boom")
}

func TestExport_SignedOut(t *testing.T) {
	svc, idx, _, sess := newTestService(t)
	sess.SignOut()

	_, err := svc.Export(context.Background(), &bytes.Buffer{}, FormatJSON)
	require.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, idx.reads)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "expedientes_sheet_export_2024-05-01.json", ExportFileName(now, FormatJSON))
	assert.Equal(t, "expedientes_sheet_export_2024-05-01.yaml", ExportFileName(now, FormatYAML))
}
