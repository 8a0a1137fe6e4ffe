package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/types"
)

// QualityHandler serves water-quality alerts and sanitation report
// transitions.
type QualityHandler struct {
	quality    *services.QualityService
	sanitation *services.SanitationService
	log        *slog.Logger
}

func qualityRoutes(r chi.Router, svc *services.QualityService, authn *AuthHandler, log *slog.Logger) {
	h := &QualityHandler{quality: svc, log: log}

	r.Route("/alerts", func(r chi.Router) {
		opts := staffWrites
		opts.ListFunc = h.ListAlerts
		opts.CreateFunc = h.RaiseAlert
		opts.Member = func(r chi.Router) {
			r.With(guarded(authn, staffOnly)).Patch("/acknowledge", h.Acknowledge)
		}
		NewCRUD(svc.Alerts, log).Routes(r, authn, opts)
	})
	NewCRUD(svc.Resource, log).Routes(r, authn, staffWrites)
}

func sanitationRoutes(r chi.Router, svc *services.SanitationService, authn *AuthHandler, log *slog.Logger) {
	h := &QualityHandler{sanitation: svc, log: log}
	reports := NewCRUD(svc.Reports, log)

	r.Route("/facilities", func(r chi.Router) {
		opts := staffWrites
		opts.Member = func(r chi.Router) {
			r.Get("/reports", reports.ListChildren(paramID))
			r.Post("/reports", reports.CreateChild(paramID))
		}
		NewCRUD(svc.Resource, log).Routes(r, authn, opts)
	})
	r.Route("/reports", func(r chi.Router) {
		reports.Routes(r, authn, RouteOptions{
			Update:     staffOnly,
			Delete:     adminOnly,
			CreateFunc: h.CreateReport,
			Member: func(r chi.Router) {
				r.With(guarded(authn, staffOnly)).Patch("/resolve", h.ResolveReport)
			},
		})
	})
}

// ListAlerts lists alerts; active=true keeps only active ones.
func (h *QualityHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.QualityHandler.ListAlerts")

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	activeOnly, err := queryBool(r, "active")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	alerts, err := h.quality.ListAlerts(r.Context(), activeOnly, offset, limit)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alerts)
}

func (h *QualityHandler) RaiseAlert(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.QualityHandler.RaiseAlert")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	var alert types.QualityAlert
	if err := decodeJSON(r, &alert); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	created, err := h.quality.RaiseAlert(r.Context(), me, alert)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("quality alert raised", slog.Int("alert_id", created.ID), slog.String("alert_type", created.AlertType))
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *QualityHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.QualityHandler.Acknowledge")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	alert, err := h.quality.Acknowledge(r.Context(), me, id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alert)
}

// CreateReport files a report against the facility named in the body.
func (h *QualityHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.QualityHandler.CreateReport")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	var report types.SanitationReport
	if err := decodeJSON(r, &report); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	created, err := h.sanitation.Reports.CreateChild(r.Context(), me, report.FacilityID, report)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *QualityHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	log := requestLog(h.log, r, "handlers.QualityHandler.ResolveReport")

	me, ok := caller(w, r, log)
	if !ok {
		return
	}
	id, err := pathID(r, paramID)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	report, err := h.sanitation.ResolveReport(r.Context(), me, id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}
