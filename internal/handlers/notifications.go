package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/types"
)

// NotificationHandler serves notifications and delivery settings.
type NotificationHandler struct {
	notifications *services.NotificationService
	all           *CRUD[types.Notification]
	log           *slog.Logger
}

// notificationRoutes registers the notification routes. Under /settings the
// id parameter is a user id for GET and a setting id for PUT.
func notificationRoutes(r chi.Router, svc *services.NotificationService, authn *AuthHandler, log *slog.Logger) {
	h := &NotificationHandler{notifications: svc, all: NewCRUD(svc.Resource, log), log: log}
	settings := NewCRUD(svc.Settings, log)

	r.Get("/user", h.Mine)
	r.Patch("/read-all", h.MarkAllRead)
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.MySettings)
		r.Post("/", h.CreateSetting)
		r.With(authn.Require(auth.RequireSelfOrAdmin, TargetUserParam(paramID))).Get("/{"+paramID+"}", h.UserSettings)
		r.Put("/{"+paramID+"}", h.UpdateSetting)
		r.With(guarded(authn, adminOnly)).Delete("/{"+paramID+"}", settings.Delete)
	})

	opts := staffWrites
	opts.ListFunc = h.List
	opts.GetFunc = h.Get
	opts.CreateFunc = h.Send
	opts.Member = func(r chi.Router) {
		r.Patch("/read", h.MarkRead)
	}
	h.all.Routes(r, authn, opts)
}

// List shows staff every notification and everyone else their own.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r, h.log)
	if !ok {
		return
	}
	if !me.Role.AtLeast(types.RoleEngineer) {
		h.Mine(w, r)
		return
	}
	h.all.List(w, r)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.Get")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	n, err := h.notifications.GetFor(r.Context(), me, id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, n)
}

func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.Send")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	var n types.Notification
	if err := decodeJSON(r, &n); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	created, err := h.notifications.Send(r.Context(), me, n)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// Mine lists the caller's notifications and broadcasts.
func (h *NotificationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.Mine")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	offset, limit, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	items, err := h.notifications.ForUser(r.Context(), me.ID, offset, limit)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.MarkRead")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	n, err := h.notifications.MarkRead(r.Context(), me, id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.MarkAllRead")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	count, err := h.notifications.MarkAllRead(r.Context(), me)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "notifications marked as read", Count: &count})
}

func (h *NotificationHandler) MySettings(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r, h.log)
	if !ok {
		return
	}
	h.listSettings(w, r, me.ID)
}

func (h *NotificationHandler) UserSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	h.listSettings(w, r, userID)
}

func (h *NotificationHandler) listSettings(w http.ResponseWriter, r *http.Request, userID int) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.listSettings")

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	items, err := h.notifications.SettingsFor(r.Context(), userID, offset, limit)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (h *NotificationHandler) CreateSetting(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.CreateSetting")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	var setting types.NotificationSetting
	if err := decodeJSON(r, &setting); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	created, err := h.notifications.CreateSetting(r.Context(), me, setting)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *NotificationHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.NotificationHandler.UpdateSetting")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	apply, err := overlayBody[types.NotificationSetting](w, r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	updated, err := h.notifications.UpdateSetting(r.Context(), me, id, apply)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}
