package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/services"
)

const (
	paramID      = "id"
	maxBodyBytes = 1 << 20
)

// bodyError marks a request body that could not be decoded.
type bodyError struct{ err error }

func (e *bodyError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

// CRUD serves the list/get/create/update/delete routes of one resource.
type CRUD[T any] struct {
	svc *services.Resource[T]
	log *slog.Logger
}

func NewCRUD[T any](svc *services.Resource[T], log *slog.Logger) *CRUD[T] {
	return &CRUD[T]{svc: svc, log: log}
}

// RouteOptions sets the guards of a resource's write routes. A nil guard
// lets every authenticated caller through.
type RouteOptions struct {
	Create auth.Guard
	Update auth.Guard
	Delete auth.Guard
	// ListFunc, GetFunc and CreateFunc replace the default handlers.
	ListFunc   http.HandlerFunc
	GetFunc    http.HandlerFunc
	CreateFunc http.HandlerFunc
	// Member registers extra routes under /{id}.
	Member func(r chi.Router)
}

// Routes registers "/" and "/{id}" on r.
func (h *CRUD[T]) Routes(r chi.Router, authn *AuthHandler, opts RouteOptions) {
	list, get, create := opts.ListFunc, opts.GetFunc, opts.CreateFunc
	if list == nil {
		list = h.List
	}
	if get == nil {
		get = h.Get
	}
	if create == nil {
		create = h.Create
	}
	r.Get("/", list)
	r.With(guarded(authn, opts.Create)).Post("/", create)
	r.Route("/{"+paramID+"}", func(r chi.Router) {
		r.Get("/", get)
		r.With(guarded(authn, opts.Update)).Put("/", h.Update)
		r.With(guarded(authn, opts.Delete)).Delete("/", h.Delete)
		if opts.Member != nil {
			opts.Member(r)
		}
	})
}

func guarded(authn *AuthHandler, guard auth.Guard) func(http.Handler) http.Handler {
	if guard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return authn.Require(guard, NoTarget)
}

func (h *CRUD[T]) op(name string) string {
	return "handlers.CRUD(" + h.svc.Name() + ")." + name
}

func (h *CRUD[T]) List(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, h.op("List"))

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	items, err := h.svc.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (h *CRUD[T]) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, h.op("Get"))

	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (h *CRUD[T]) Create(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, h.op("Create"))

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	var payload T
	if err := decodeJSON(r, &payload); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), me, payload)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *CRUD[T]) Update(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, h.op("Update"))

	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	apply, err := overlayBody[T](w, r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, apply)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *CRUD[T]) Delete(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, h.op("Delete"))

	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("deleted", slog.Int("id", id))
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: h.svc.Name() + " deleted"})
}

// ListChildren lists the rows under the parent named by URL parameter
// parentParam.
func (h *CRUD[T]) ListChildren(parentParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(h.log, r, h.op("ListChildren"))

		parentID, err := pathID(r, parentParam)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		offset, limit, err := parsePagination(r)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		items, err := h.svc.ListChildren(r.Context(), parentID, offset, limit)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, r, http.StatusOK, items)
	}
}

// CreateChild creates a row under the parent named by URL parameter
// parentParam.
func (h *CRUD[T]) CreateChild(parentParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(h.log, r, h.op("CreateChild"))

		me, ok := caller(w, r, log)
		if !ok {
			return
		}
		parentID, err := pathID(r, parentParam)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		var payload T
		if err := decodeJSON(r, &payload); err != nil {
			writeBadRequest(w, r, err)
			return
		}
		created, err := h.svc.CreateChild(r.Context(), me, parentID, payload)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, created)
	}
}

// overlayBody reads a JSON object and returns a function that decodes it
// over an existing entity, so only the keys present in the body change.
func overlayBody[T any](w http.ResponseWriter, r *http.Request) (func(*T) error, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.New("invalid request body")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || probe == nil {
		return nil, errors.New("invalid request body: expected a JSON object")
	}
	return func(v *T) error {
		if err := json.Unmarshal(body, v); err != nil {
			return &bodyError{err: err}
		}
		return nil
	}, nil
}
