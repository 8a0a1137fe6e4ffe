package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/types"
)

const paramUserID = "userID"

// UserHandler provides HTTP handlers for accounts.
type UserHandler struct {
	users *services.UserService
	log   *slog.Logger
}

func NewUserHandler(users *services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// UserRouter registers account routes. Signup and login are public; every
// other route resolves the caller first.
func UserRouter(r chi.Router, users *services.UserService, authn *AuthHandler, log *slog.Logger) {
	h := NewUserHandler(users, log)

	r.Post("/", h.Register)
	r.Post("/token", authn.Login)

	r.Group(func(r chi.Router) {
		r.Use(authn.Authenticate)

		r.Get("/me", h.Me)
		r.With(authn.Require(auth.RequireAdmin, NoTarget)).Get("/", h.List)
		r.Route("/{"+paramUserID+"}", func(r chi.Router) {
			target := TargetUserParam(paramUserID)
			r.With(authn.Require(auth.RequireSelfOrAdmin, target)).Get("/", h.Get)
			r.With(authn.Require(auth.RequireEditUser, target)).Put("/", h.Update)
			r.With(authn.Require(auth.RequireDeleteUser, target)).Delete("/", h.Delete)
		})
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.UserHandler.Register")

	var req types.UserCreate
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("user registered", slog.Int("user_id", user.ID))
	writeJSON(w, r, http.StatusCreated, user)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r, h.log)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.UserHandler.List")

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	users, err := h.users.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.UserHandler.Get")

	id, err := pathID(r, paramUserID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.UserHandler.Update")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramUserID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req types.UserUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), me, id, req)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("user updated", slog.Int("user_id", user.ID), slog.Int("by", me.ID))
	writeJSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.UserHandler.Delete")

	id, err := pathID(r, paramUserID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("user deleted", slog.Int("user_id", id))
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "user deleted"})
}
