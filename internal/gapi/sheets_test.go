package gapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetIndex_Append(t *testing.T) {
	var got valueRange

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sheets/spreadsheets/sheet-1/values/Expedientes!A:G:append", r.URL.Path)
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRows":1}}`))
	}))
	defer srv.Close()

	idx := NewSheetIndex(newTestClient(t, srv.URL), "sheet-1", "Expedientes!A:G")
	row := []string{"EXP-1", "C100", "Juan", "Revisión", "2024-05-01", "", "F1"}

	require.NoError(t, idx.Append(context.Background(), row))
	assert.Equal(t, [][]string{row}, got.Values)
}

func TestSheetIndex_AppendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"no access"}}`))
	}))
	defer srv.Close()

	idx := NewSheetIndex(newTestClient(t, srv.URL), "sheet-1", "A:G")
	err := idx.Append(context.Background(), []string{"x"})

	var writeErr *IndexWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, http.StatusForbidden, writeErr.StatusCode)
	assert.Contains(t, writeErr.Body, "no access")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "appending to index")
}

func TestSheetIndex_ReadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sheets/spreadsheets/sheet-1/values/A:G", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"A1:G2","values":[["E1","C1","N"],["","x"]]}`))
	}))
	defer srv.Close()

	idx := NewSheetIndex(newTestClient(t, srv.URL), "sheet-1", "A:G")
	rows, err := idx.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"E1", "C1", "N"}, {"", "x"}}, rows)
}

func TestSheetIndex_ReadAllEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"range":"A1:G1"}`))
	}))
	defer srv.Close()

	idx := NewSheetIndex(newTestClient(t, srv.URL), "sheet-1", "A:G")
	rows, err := idx.ReadAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSheetIndex_ReadAllError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	}))
	defer srv.Close()

	idx := NewSheetIndex(newTestClient(t, srv.URL), "missing", "A:G")
	_, err := idx.ReadAll(context.Background())

	var readErr *IndexReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, http.StatusNotFound, readErr.StatusCode)
	assert.ErrorIs(t, err, ErrNotFound)
}
