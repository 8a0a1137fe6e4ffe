package services

import (
	"context"
	"time"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// InfrastructureService manages network elements and their leaks.
type InfrastructureService struct {
	*Resource[types.Infrastructure]
	Leaks *Resource[types.Leak]
}

func NewInfrastructureService(items Repository[types.Infrastructure], leaks Repository[types.Leak]) *InfrastructureService {
	s := &InfrastructureService{Resource: NewResource("water infrastructure", items)}
	s.Leaks = NewResource("leak", leaks).WithParent("water infrastructure", "infrastructure_id", s.Exists)
	return s
}

// AssetService manages assets and their maintenance history.
type AssetService struct {
	*Resource[types.Asset]
	Maintenance *Resource[types.Maintenance]
	now         func() time.Time
}

func NewAssetService(assets Repository[types.Asset], maintenance Repository[types.Maintenance]) *AssetService {
	s := &AssetService{
		Resource: NewResource("asset", assets),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.Maintenance = NewResource("maintenance record", maintenance).WithParent("asset", "asset_id", s.Exists)
	return s
}

// MaintenanceDue lists assets whose next maintenance is at or before now.
func (s *AssetService) MaintenanceDue(ctx context.Context, offset, limit int) ([]types.Asset, error) {
	return s.List(ctx, offset, limit, store.Lte("next_maintenance", s.now()))
}

// DemandService manages demand records and planning documents.
type DemandService struct {
	*Resource[types.DemandRecord]
	Distribution *Resource[types.DistributionPlan]
	Investment   *Resource[types.InvestmentPlan]
}

func NewDemandService(records Repository[types.DemandRecord], distribution Repository[types.DistributionPlan], investment Repository[types.InvestmentPlan]) *DemandService {
	return &DemandService{
		Resource:     NewResource("demand record", records),
		Distribution: NewResource("distribution plan", distribution),
		Investment:   NewResource("investment plan", investment),
	}
}

// ForecastQuery narrows Forecast. Zero values are not applied.
type ForecastQuery struct {
	Location string
	From     time.Time
	To       time.Time
}

// Forecast returns the demand history matching q, the basis of a forecast.
func (s *DemandService) Forecast(ctx context.Context, q ForecastQuery, offset, limit int) ([]types.DemandRecord, error) {
	var conds []store.Cond
	if q.Location != "" {
		conds = append(conds, store.Eq("location", q.Location))
	}
	if !q.From.IsZero() {
		conds = append(conds, store.Gte("demand_date", q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, store.Lte("demand_date", q.To))
	}
	return s.List(ctx, offset, limit, conds...)
}

// TariffService manages tariffs, payment methods and user payments.
type TariffService struct {
	*Resource[types.Tariff]
	Methods  *Resource[types.PaymentMethod]
	Payments *Resource[types.Payment]
}

func NewTariffService(tariffs Repository[types.Tariff], methods Repository[types.PaymentMethod], payments Repository[types.Payment]) *TariffService {
	s := &TariffService{
		Resource: NewResource("tariff", tariffs),
		Methods:  NewResource("payment method", methods),
	}
	s.Payments = NewResource("payment", payments).
		WithReference("tariff", func(p types.Payment) int { return p.TariffID }, s.Exists).
		WithReference("payment method", func(p types.Payment) int { return p.PaymentMethodID }, s.Methods.Exists)
	return s
}

// PaymentsFor lists the payments made by userID.
func (s *TariffService) PaymentsFor(ctx context.Context, userID, offset, limit int) ([]types.Payment, error) {
	return s.Payments.List(ctx, offset, limit, store.Eq("user_id", userID))
}

// PaymentFor returns payment id if caller made it or is staff.
func (s *TariffService) PaymentFor(ctx context.Context, caller types.User, id int) (types.Payment, error) {
	p, err := s.Payments.Get(ctx, id)
	if err != nil {
		return types.Payment{}, err
	}
	if p.UserID != caller.ID && !caller.Role.AtLeast(types.RoleEngineer) {
		return types.Payment{}, &auth.ForbiddenError{Reason: "payment belongs to another user"}
	}
	return p, nil
}
