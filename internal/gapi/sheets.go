package gapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// valueRange mirrors the Sheets API ValueRange JSON for both reads and appends.
type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values"`
}

// SheetIndex reads and appends rows of a single range in one spreadsheet.
// Range uses A1 notation, e.g. "Expedientes!A:G".
type SheetIndex struct {
	client  *Client
	sheetID string
	rng     string
}

// NewSheetIndex binds a client to the given spreadsheet and range.
func NewSheetIndex(client *Client, sheetID, rng string) *SheetIndex {
	return &SheetIndex{client: client, sheetID: sheetID, rng: rng}
}

// valuesURL returns the values endpoint for the bound range.
func (s *SheetIndex) valuesURL() string {
	return fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		s.client.endpoints.Sheets, url.PathEscape(s.sheetID), url.PathEscape(s.rng))
}

// Append adds one row after the last row of the range. The call is not
// idempotent and is never retried: a repeated call writes a duplicate row.
func (s *SheetIndex) Append(ctx context.Context, row []string) error {
	s.client.logger.Info("appending index row",
		slog.String("range", s.rng),
		slog.Int("fields", len(row)),
	)

	bodyBytes, err := json.Marshal(valueRange{Values: [][]string{row}})
	if err != nil {
		return fmt.Errorf("gapi: marshaling append request: %w", err)
	}

	u := s.valuesURL() + ":append?valueInputOption=RAW"

	resp, err := s.client.Do(ctx, http.MethodPost, u, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &IndexWriteError{APIError: apiErr}
		}

		return err
	}
	defer resp.Body.Close()

	return drain(resp)
}

// ReadAll fetches every row of the range. A range with no data yields an
// empty (non-nil) slice. Rows are returned as the API sends them, so trailing
// empty cells may be missing.
func (s *SheetIndex) ReadAll(ctx context.Context) ([][]string, error) {
	s.client.logger.Info("reading index", slog.String("range", s.rng))

	resp, err := s.client.Do(ctx, http.MethodGet, s.valuesURL(), "", nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &IndexReadError{APIError: apiErr}
		}

		return nil, err
	}
	defer resp.Body.Close()

	var vr valueRange
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("gapi: decoding index values: %w", err)
	}

	if vr.Values == nil {
		vr.Values = [][]string{}
	}

	s.client.logger.Debug("index read", slog.Int("rows", len(vr.Values)))

	return vr.Values, nil
}
