package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallboard/internal/config"
	"wallboard/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	return NewServer(cfg, st, nil, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestEnergyImportAndList(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	bill := "Account,123\n\nTYPE,START DATE,END DATE,IMPORT (kWh),COST\n" +
		"Electric billing,2024-01-01,2024-01-31,\"450.2\",\"$83.83\"\n"

	req := httptest.NewRequest(http.MethodPost, "/api/energy/import", strings.NewReader(bill))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var imp struct {
		Imported int `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imp))
	assert.Equal(t, 1, imp.Imported)

	rec = doJSON(t, h, http.MethodGet, "/api/energy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []struct {
		Date     string  `json:"date"`
		UsageKWh float64 `json:"usage_kwh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-31", records[0].Date)
	assert.Equal(t, 450.2, records[0].UsageKWh)
}

func TestEnergyImportErrorTaxonomy(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "header not found",
			body:     "random,cells\nno,header\n",
			wantCode: "header_not_found",
		},
		{
			name:     "columns missing",
			body:     "TYPE,START DATE\nElectric billing,2024-01-01\n",
			wantCode: "columns_missing",
		},
		{
			name:     "no records",
			body:     "TYPE,END DATE,IMPORT (kWh)\nElectric billing,bogus,450.2\n",
			wantCode: "no_records",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/energy/import", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

			var resp struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestResourceCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/shopping", map[string]string{
		"name":     "milk",
		"quantity": "2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)
	assert.Equal(t, "milk", created["name"])

	rec = doJSON(t, h, http.MethodGet, "/api/shopping", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	rec = doJSON(t, h, http.MethodPut, "/api/shopping/"+id, map[string]string{"done": "true"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "true", updated["done"])

	rec = doJSON(t, h, http.MethodDelete, "/api/shopping/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/shopping/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResourceUnknownID(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/notes/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/projects/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResourceInvalidBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "wall", Password: "board"}
	s := NewServer(cfg, st, nil, nil)
	h := s.Handler()

	// /health stays open.
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// API requires credentials.
	rec = doJSON(t, h, http.MethodGet, "/api/energy", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/energy", nil)
	req.SetBasicAuth("wall", "board")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodDelete, "/api/energy", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/energy/import", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
