package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// QualityService manages water-quality measurements and alerts. New alerts
// are published as EventQualityAlertRaised.
type QualityService struct {
	*Resource[types.QualityMeasurement]
	Alerts *Resource[types.QualityAlert]

	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

func NewQualityService(measurements Repository[types.QualityMeasurement], alerts Repository[types.QualityAlert], events EventPublisher, log *slog.Logger) *QualityService {
	s := &QualityService{
		Resource: NewResource("water quality measurement", measurements),
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.Alerts = NewResource("quality alert", alerts).
		WithReference("water quality measurement", func(a types.QualityAlert) int { return a.QualityID }, s.Exists)
	return s
}

// ListAlerts lists alerts, only active ones when activeOnly is set.
func (s *QualityService) ListAlerts(ctx context.Context, activeOnly bool, offset, limit int) ([]types.QualityAlert, error) {
	if activeOnly {
		return s.Alerts.List(ctx, offset, limit, store.Eq("is_active", true))
	}
	return s.Alerts.List(ctx, offset, limit)
}

// RaiseAlert stores alert and publishes it.
func (s *QualityService) RaiseAlert(ctx context.Context, caller types.User, alert types.QualityAlert) (types.QualityAlert, error) {
	created, err := s.Alerts.Create(ctx, caller, alert)
	if err != nil {
		return types.QualityAlert{}, err
	}
	publish(ctx, s.events, s.log, types.Event{
		Kind:       types.EventQualityAlertRaised,
		EntityID:   created.ID,
		Title:      created.AlertType,
		Message:    created.Message,
		Type:       "alert",
		OccurredAt: created.CreatedAt,
	})
	return created, nil
}

// Acknowledge records that caller has seen alert id.
func (s *QualityService) Acknowledge(ctx context.Context, caller types.User, id int) (types.QualityAlert, error) {
	return s.Alerts.Patch(ctx, id, map[string]any{
		"acknowledged":    true,
		"acknowledged_by": caller.ID,
		"acknowledged_at": s.now(),
	})
}

// SanitationService manages facilities and the reports filed about them.
type SanitationService struct {
	*Resource[types.SanitationFacility]
	Reports *Resource[types.SanitationReport]
	now     func() time.Time
}

func NewSanitationService(facilities Repository[types.SanitationFacility], reports Repository[types.SanitationReport]) *SanitationService {
	s := &SanitationService{
		Resource: NewResource("sanitation facility", facilities),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.Reports = NewResource("sanitation report", reports).WithParent("sanitation facility", "facility_id", s.Exists)
	return s
}

// ResolveReport closes report id on behalf of caller.
func (s *SanitationService) ResolveReport(ctx context.Context, caller types.User, id int) (types.SanitationReport, error) {
	return s.Reports.Patch(ctx, id, map[string]any{
		"is_resolved": true,
		"resolved_by": caller.ID,
		"resolved_at": s.now(),
	})
}
