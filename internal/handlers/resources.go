package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/types"
)

// Services groups the domain services served under /api.
type Services struct {
	Infrastructure *services.InfrastructureService
	Assets         *services.AssetService
	Quality        *services.QualityService
	Sanitation     *services.SanitationService
	Complaints     *services.ComplaintService
	Tariffs        *services.TariffService
	Demand         *services.DemandService
	Notifications  *services.NotificationService
}

var (
	staffOnly = auth.RequireAtLeast(types.RoleEngineer)
	adminOnly = auth.Guard(auth.RequireAdmin)
)

// staffWrites is the default policy: engineers write, admins delete.
var staffWrites = RouteOptions{Create: staffOnly, Update: staffOnly, Delete: adminOnly}

// ResourceRouter registers every resource family. All routes require an
// authenticated caller.
func ResourceRouter(r chi.Router, svc Services, authn *AuthHandler, log *slog.Logger) {
	r.Use(authn.Authenticate)

	r.Route("/water-infrastructure", func(r chi.Router) {
		infrastructureRoutes(r, svc.Infrastructure, authn, log)
	})
	r.Route("/assets", func(r chi.Router) {
		assetRoutes(r, svc.Assets, authn, log)
	})
	r.Route("/water-quality", func(r chi.Router) {
		qualityRoutes(r, svc.Quality, authn, log)
	})
	r.Route("/sanitation", func(r chi.Router) {
		sanitationRoutes(r, svc.Sanitation, authn, log)
	})
	r.Route("/complaints", func(r chi.Router) {
		complaintRoutes(r, svc.Complaints, authn, log)
	})
	r.Route("/tariffs", func(r chi.Router) {
		tariffRoutes(r, svc.Tariffs, authn, log)
	})
	r.Route("/demand", func(r chi.Router) {
		demandRoutes(r, svc.Demand, authn, log)
	})
	r.Route("/notifications", func(r chi.Router) {
		notificationRoutes(r, svc.Notifications, authn, log)
	})
}

func infrastructureRoutes(r chi.Router, svc *services.InfrastructureService, authn *AuthHandler, log *slog.Logger) {
	items := NewCRUD(svc.Resource, log)
	leaks := NewCRUD(svc.Leaks, log)

	r.Route("/leaks", func(r chi.Router) {
		r.Get("/", leaks.List)
		r.Get("/{"+paramID+"}", leaks.Get)
		r.With(guarded(authn, staffOnly)).Put("/{"+paramID+"}", leaks.Update)
		r.With(guarded(authn, adminOnly)).Delete("/{"+paramID+"}", leaks.Delete)
	})

	opts := staffWrites
	opts.Member = func(r chi.Router) {
		r.Get("/leaks", leaks.ListChildren(paramID))
		r.With(guarded(authn, staffOnly)).Post("/leaks", leaks.CreateChild(paramID))
	}
	items.Routes(r, authn, opts)
}

func assetRoutes(r chi.Router, svc *services.AssetService, authn *AuthHandler, log *slog.Logger) {
	assets := NewCRUD(svc.Resource, log)
	maintenance := NewCRUD(svc.Maintenance, log)

	r.Get("/maintenance-due", func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.assets.MaintenanceDue")

		offset, limit, err := parsePagination(r)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		due, err := svc.MaintenanceDue(r.Context(), offset, limit)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, r, http.StatusOK, due)
	})
	r.Route("/maintenance", func(r chi.Router) {
		r.Get("/", maintenance.List)
		r.Get("/{"+paramID+"}", maintenance.Get)
		r.With(guarded(authn, staffOnly)).Put("/{"+paramID+"}", maintenance.Update)
		r.With(guarded(authn, adminOnly)).Delete("/{"+paramID+"}", maintenance.Delete)
	})

	opts := staffWrites
	opts.Member = func(r chi.Router) {
		r.Get("/maintenance", maintenance.ListChildren(paramID))
		r.With(guarded(authn, staffOnly)).Post("/maintenance", maintenance.CreateChild(paramID))
	}
	assets.Routes(r, authn, opts)
}

func tariffRoutes(r chi.Router, svc *services.TariffService, authn *AuthHandler, log *slog.Logger) {
	adminWrites := RouteOptions{Create: adminOnly, Update: adminOnly, Delete: adminOnly}

	r.Route("/payment-methods", func(r chi.Router) {
		NewCRUD(svc.Methods, log).Routes(r, authn, adminWrites)
	})
	r.Route("/payments", func(r chi.Router) {
		NewCRUD(svc.Payments, log).Routes(r, authn, RouteOptions{
			Update:   adminOnly,
			Delete:   adminOnly,
			ListFunc: listPayments(svc, log),
			GetFunc:  getPayment(svc, log),
		})
	})
	NewCRUD(svc.Resource, log).Routes(r, authn, adminWrites)
}

// listPayments shows citizens their own payments. Staff see every payment,
// or one user's when user_id is given.
func listPayments(svc *services.TariffService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.tariffs.ListPayments")

		me, ok := caller(w, r, log)
		if !ok {
			return
		}
		offset, limit, err := parsePagination(r)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		userID, err := queryInt(r, "user_id", 0)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		if !me.Role.AtLeast(types.RoleEngineer) {
			userID = me.ID
		}

		var payments []types.Payment
		if userID > 0 {
			payments, err = svc.PaymentsFor(r.Context(), userID, offset, limit)
		} else {
			payments, err = svc.Payments.List(r.Context(), offset, limit)
		}
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, r, http.StatusOK, payments)
	}
}

// getPayment serves one payment to its payer or to staff.
func getPayment(svc *services.TariffService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.tariffs.GetPayment")

		me, ok := caller(w, r, log)
		if !ok {
			return
		}
		id, err := pathID(r, paramID)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		payment, err := svc.PaymentFor(r.Context(), me, id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, r, http.StatusOK, payment)
	}
}

func demandRoutes(r chi.Router, svc *services.DemandService, authn *AuthHandler, log *slog.Logger) {
	r.Route("/forecasts", func(r chi.Router) {
		opts := staffWrites
		opts.ListFunc = listForecast(svc, log)
		NewCRUD(svc.Resource, log).Routes(r, authn, opts)
	})
	r.Route("/distribution-plans", func(r chi.Router) {
		NewCRUD(svc.Distribution, log).Routes(r, authn, staffWrites)
	})
	r.Route("/investment-plans", func(r chi.Router) {
		NewCRUD(svc.Investment, log).Routes(r, authn, staffWrites)
	})
}

// listForecast filters demand records by location, date_from and date_to.
func listForecast(svc *services.DemandService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(log, r, "handlers.demand.Forecast")

		offset, limit, err := parsePagination(r)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		q := services.ForecastQuery{Location: strings.TrimSpace(r.URL.Query().Get("location"))}
		if q.From, err = queryDate(r, "date_from"); err != nil {
			writeBadRequest(w, r, err)
			return
		}
		if q.To, err = queryDate(r, "date_to"); err != nil {
			writeBadRequest(w, r, err)
			return
		}

		records, err := svc.Forecast(r.Context(), q, offset, limit)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, r, http.StatusOK, records)
	}
}

// queryDate accepts RFC 3339 timestamps or plain dates. A missing value
// yields the zero time.
func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s", name)
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}
