package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/types"
)

const (
	photoField    = "photo"
	maxPhotoBytes = 10 << 20
)

// ComplaintHandler serves complaint transitions and photos.
type ComplaintHandler struct {
	complaints *services.ComplaintService
	log        *slog.Logger
}

func complaintRoutes(r chi.Router, svc *services.ComplaintService, authn *AuthHandler, log *slog.Logger) {
	h := &ComplaintHandler{complaints: svc, log: log}

	r.Route("/categories", func(r chi.Router) {
		NewCRUD(svc.Categories, log).Routes(r, authn, staffWrites)
	})
	NewCRUD(svc.Resource, log).Routes(r, authn, RouteOptions{
		Update: staffOnly,
		Delete: adminOnly,
		Member: func(r chi.Router) {
			r.With(guarded(authn, staffOnly)).Patch("/assign", h.Assign)
			r.With(guarded(authn, staffOnly)).Patch("/resolve", h.Resolve)
			r.Post("/photo", h.UploadPhoto)
			r.Get("/photo", h.Photo)
		},
	})
}

// Assign takes the assignee from the assigned_to query parameter or a
// {"assigned_to": id} body.
func (h *ComplaintHandler) Assign(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.ComplaintHandler.Assign")

	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req types.ComplaintAssign
	if req.AssignedTo, err = queryInt(r, "assigned_to", 0); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if req.AssignedTo == 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, r, err)
			return
		}
	}
	if err := services.Validate(req); err != nil {
		writeServiceError(w, r, log, err)
		return
	}

	complaint, err := h.complaints.Assign(r.Context(), id, req.AssignedTo)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("complaint assigned", slog.Int("complaint_id", id), slog.Int("assigned_to", req.AssignedTo))
	writeJSON(w, r, http.StatusOK, complaint)
}

func (h *ComplaintHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.ComplaintHandler.Resolve")

	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	complaint, err := h.complaints.Resolve(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, complaint)
}

// UploadPhoto accepts a multipart image in field "photo". Only the
// complaint's author and staff may upload.
func (h *ComplaintHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.ComplaintHandler.UploadPhoto")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	complaint, err := h.complaints.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if !me.Role.AtLeast(types.RoleEngineer) && (complaint.UserID == nil || *complaint.UserID != me.ID) {
		writeServiceError(w, r, log, &auth.ForbiddenError{Reason: "only the author or staff can attach photos"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeBadRequest(w, r, errors.New("invalid multipart body"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart files", logger.Err(err))
		}
	}()

	file, header, err := r.FormFile(photoField)
	if err != nil {
		writeBadRequest(w, r, errors.New("photo is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeBadRequest(w, r, errors.New("photo must be an image"))
		return
	}

	updated, err := h.complaints.AttachPhoto(r.Context(), id, services.Photo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("complaint photo stored", slog.Int("complaint_id", id), slog.Int64("size", header.Size))
	writeJSON(w, r, http.StatusOK, updated)
}

// Photo streams the stored photo.
func (h *ComplaintHandler) Photo(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.ComplaintHandler.Photo")

	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	body, err := h.complaints.OpenPhoto(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	defer body.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeServiceError(w, r, log, err)
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		log.Warn("photo stream interrupted", logger.Err(err))
	}
}
