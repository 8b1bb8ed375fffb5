package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	appLog "wallboard/internal/log"
	"wallboard/internal/store"
)

// registerResource wires the generic CRUD surface for one resource spec:
//
//	GET    /api/{name}        list
//	POST   /api/{name}        create
//	GET    /api/{name}/{id}   read
//	PUT    /api/{name}/{id}   update
//	DELETE /api/{name}/{id}   delete
func (s *Server) registerResource(spec store.ResourceSpec) {
	base := "/api/" + spec.Name

	s.mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.listResource(w, r, spec)
		case http.MethodPost:
			s.createResource(w, r, spec)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	s.mux.HandleFunc(base+"/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, base+"/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.getResource(w, r, spec, id)
		case http.MethodPut:
			s.updateResource(w, r, spec, id)
		case http.MethodDelete:
			s.deleteResource(w, r, spec, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func (s *Server) listResource(w http.ResponseWriter, r *http.Request, spec store.ResourceSpec) {
	items, err := s.store.ListItems(r.Context(), spec)
	if err != nil {
		appLog.Error("resource list failed", err, "resource", spec.Name)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request, spec store.ResourceSpec) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	item, err := s.store.CreateItem(r.Context(), spec, fields)
	if err != nil {
		appLog.Error("resource create failed", err, "resource", spec.Name)
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request, spec store.ResourceSpec, id string) {
	item, err := s.store.GetItem(r.Context(), spec, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		appLog.Error("resource get failed", err, "resource", spec.Name)
		writeError(w, http.StatusInternalServerError, "failed to read item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request, spec store.ResourceSpec, id string) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	item, err := s.store.UpdateItem(r.Context(), spec, id, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		appLog.Error("resource update failed", err, "resource", spec.Name)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request, spec store.ResourceSpec, id string) {
	if err := s.store.DeleteItem(r.Context(), spec, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		appLog.Error("resource delete failed", err, "resource", spec.Name)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeFields reads a flat JSON object of string fields from the request
// body. Unknown fields are accepted here; the store drops anything the
// resource spec does not allow.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return fields, true
}
