package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"distrigo/backend/internal/store"
	"distrigo/backend/internal/validate"
)

// resourceOptions tunes one collection's routes. guard runs before create and
// update (excludeID empty on create); post replaces the default create
// handler, which is how the workflow collections expose their intake
// endpoints while staying read-only for direct writes.
type resourceOptions[T store.Record] struct {
	guard    func(ctx context.Context, item *T, excludeID string) error
	post     http.HandlerFunc
	readOnly bool
}

// registerResource mounts GET/POST on /api/v1/{name} and GET/PUT/DELETE on
// /api/v1/{name}/{id}.
func registerResource[T store.Record](mux *http.ServeMux, a *API, name string, col store.Collection[T], opts resourceOptions[T]) {
	base := "/api/v1/" + name
	prefix := base + "/"

	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			result, err := col.List(r.Context(), parseListOptions(r))
			if err != nil {
				a.writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		case http.MethodPost:
			if opts.post != nil {
				opts.post(w, r)
				return
			}
			if opts.readOnly {
				writeMethodNotAllowed(w)
				return
			}
			createResource(a, col, opts, w, r)
		default:
			writeMethodNotAllowed(w)
		}
	})

	mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		id := pathTail(r.URL.Path, prefix)
		if id == "" {
			writeError(a.log, w, http.StatusNotFound, errors.New("missing id"))
			return
		}
		switch r.Method {
		case http.MethodGet:
			item, err := col.GetByID(r.Context(), id)
			if err != nil {
				a.writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, item)
		case http.MethodPut:
			if opts.readOnly {
				writeMethodNotAllowed(w)
				return
			}
			updateResource(a, col, opts, w, r, id)
		case http.MethodDelete:
			if opts.readOnly {
				writeMethodNotAllowed(w)
				return
			}
			if err := col.Delete(r.Context(), id); err != nil {
				a.writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeMethodNotAllowed(w)
		}
	})
}

func createResource[T store.Record](a *API, col store.Collection[T], opts resourceOptions[T], w http.ResponseWriter, r *http.Request) {
	var item T
	if err := decodeJSON(r, &item); err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}
	if opts.guard != nil {
		if err := opts.guard(r.Context(), &item, ""); err != nil {
			a.writeDomainError(w, err)
			return
		}
	} else if errs := validate.Struct(item); errs != nil {
		writeError(a.log, w, http.StatusBadRequest, errors.New(validate.Describe(errs)))
		return
	}
	created, err := col.Create(r.Context(), item)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// updateResource merges the supplied JSON fields onto the stored record. The
// merged result is validated before the write is applied.
func updateResource[T store.Record](a *API, col store.Collection[T], opts resourceOptions[T], w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}
	for _, immutable := range []string{"id", "created_at", "updated_at"} {
		if _, ok := fields[immutable]; ok {
			writeError(a.log, w, http.StatusBadRequest, errors.New(immutable+" is immutable"))
			return
		}
	}

	existing, err := col.GetByID(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	merged := *existing
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&merged); err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}

	if opts.guard != nil {
		if err := opts.guard(r.Context(), &merged, id); err != nil {
			a.writeDomainError(w, err)
			return
		}
	} else if errs := validate.Struct(merged); errs != nil {
		writeError(a.log, w, http.StatusBadRequest, errors.New(validate.Describe(errs)))
		return
	}

	updated, err := col.Update(r.Context(), id, func(item *T) error {
		return json.Unmarshal(body, item)
	})
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
