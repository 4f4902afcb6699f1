package expediente

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is an export serialization.
type Format string

// Supported export formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("expediente: unknown export format %q (want json or yaml)", s)
	}
}

// ExportFileName is the default file name for an export taken at now (UTC date).
func ExportFileName(now time.Time, f Format) string {
	ext := "json"
	if f == FormatYAML {
		ext = "yaml"
	}

	return fmt.Sprintf("expedientes_sheet_export_%s.%s", now.UTC().Format(time.DateOnly), ext)
}

// Export writes the raw index rows, exactly as the index returns them, to w.
// JSON is indented by two spaces.
func (s *Service) Export(ctx context.Context, w io.Writer, f Format) (int, error) {
	if !s.session.SignedIn() {
		return 0, ErrSignedOut
	}

	rows, err := s.index.ReadAll(ctx)
	if err != nil {
		s.checkAuth(err)
		return 0, fmt.Errorf("expediente: exporting: %w", err)
	}

	if err := encodeRows(w, rows, f); err != nil {
		return 0, err
	}

	return len(rows), nil
}

func encodeRows(w io.Writer, rows [][]string, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)

		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("expediente: encoding JSON export: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("expediente: encoding YAML export: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("expediente: encoding YAML export: %w", err)
		}
	default:
		return fmt.Errorf("expediente: unknown export format %q", f)
	}

	return nil
}
