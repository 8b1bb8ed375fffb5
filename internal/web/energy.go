package web

import (
	"errors"
	"io"
	"net/http"

	"wallboard/internal/billing"
	appLog "wallboard/internal/log"
)

// Bill uploads are small (a year of daily rows is well under a megabyte);
// this cap just keeps junk uploads from ballooning memory.
const maxImportBytes = 4 << 20

// importResponse is the JSON response shape for a successful energy import.
type importResponse struct {
	Imported int `json:"imported"`
}

// importErrorResponse distinguishes the billing error taxonomy for the UI:
// "header_not_found" and "columns_missing" are structural (the upload is the
// wrong file), "no_records" means a valid header with nothing usable under it.
type importErrorResponse struct {
	Error          string   `json:"error"`
	Code           string   `json:"code"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// handleEnergyImport accepts a raw bill CSV body, extracts billing records,
// and upserts them into the store keyed by date.
//
// POST /api/energy/import
func (s *Server) handleEnergyImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	records, err := billing.ExtractRecords(string(body))
	if err != nil {
		var colErr *billing.ColumnsMissingError
		switch {
		case errors.Is(err, billing.ErrHeaderNotFound):
			writeJSON(w, http.StatusUnprocessableEntity, importErrorResponse{
				Error: err.Error(), Code: "header_not_found",
			})
		case errors.As(err, &colErr):
			writeJSON(w, http.StatusUnprocessableEntity, importErrorResponse{
				Error: err.Error(), Code: "columns_missing", MissingColumns: colErr.Missing,
			})
		case errors.Is(err, billing.ErrNoRecords):
			writeJSON(w, http.StatusUnprocessableEntity, importErrorResponse{
				Error: err.Error(), Code: "no_records",
			})
		default:
			appLog.Error("energy import failed", err)
			writeError(w, http.StatusInternalServerError, "import failed")
		}
		return
	}

	n, err := s.store.UpsertBillingRecords(r.Context(), records)
	if err != nil {
		appLog.Error("energy upsert failed", err)
		writeError(w, http.StatusInternalServerError, "failed to store records")
		return
	}

	writeJSON(w, http.StatusOK, importResponse{Imported: n})
}

// handleEnergyList returns stored usage records, newest first.
//
// GET /api/energy?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) handleEnergyList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	records, err := s.store.ListBillingRecords(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		appLog.Error("energy list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read records")
		return
	}

	writeJSON(w, http.StatusOK, records)
}
