package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

func overlay[T any](body string) func(*T) error {
	return func(v *T) error { return json.Unmarshal([]byte(body), v) }
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{0, 0, 0, DefaultLimit},
		{-5, -1, 0, DefaultLimit},
		{10, 20, 10, 20},
		{0, 10_000, 0, MaxLimit},
	}
	for _, tt := range tests {
		offset, limit := ClampLimit(tt.offset, tt.limit)
		assert.Equal(t, tt.wantOffset, offset)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestResource_CreateAppliesDefaultsAndValidates(t *testing.T) {
	ctx := context.Background()
	svc := NewAssetService(store.NewMemTable[types.Asset]("water_assets"), store.NewMemTable[types.Maintenance]("asset_maintenance"))

	created, err := svc.Create(ctx, engineer, types.Asset{Name: "Pump 7", AssetType: "pump", Location: "North"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, "operational", created.Status)
	require.NotNil(t, created.IsOperational)
	assert.True(t, *created.IsOperational)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.UpdatedAt)

	_, err = svc.Create(ctx, engineer, types.Asset{Name: "No type", Location: "x", Latitude: ptr(91.0)})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestResource_UpdateOnlyTouchesPresentFields(t *testing.T) {
	ctx := context.Background()
	svc := NewAssetService(store.NewMemTable[types.Asset]("water_assets"), store.NewMemTable[types.Maintenance]("asset_maintenance"))

	created, err := svc.Create(ctx, engineer, types.Asset{Name: "Pump 7", AssetType: "pump", Location: "North", Status: "degraded"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, overlay[types.Asset](`{"location":"South","id":99}`))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "South", updated.Location)
	assert.Equal(t, "Pump 7", updated.Name)
	assert.Equal(t, "degraded", updated.Status)
	assert.NotNil(t, updated.UpdatedAt)

	updated, err = svc.Update(ctx, created.ID, overlay[types.Asset](`{"is_operational":null}`))
	require.NoError(t, err)
	assert.True(t, *updated.IsOperational)

	_, err = svc.Update(ctx, created.ID, overlay[types.Asset](`{"name":""}`))
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = svc.Update(ctx, 404, overlay[types.Asset](`{}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResource_Children(t *testing.T) {
	ctx := context.Background()
	svc := NewInfrastructureService(store.NewMemTable[types.Infrastructure]("water_infrastructure"), store.NewMemTable[types.Leak]("water_leaks"))

	main, err := svc.Create(ctx, engineer, types.Infrastructure{Name: "Main St", Type: "pipe", Location: "Main St"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, engineer, types.Infrastructure{Name: "Reservoir", Type: "reservoir", Location: "Hill"})
	require.NoError(t, err)

	_, err = svc.Leaks.CreateChild(ctx, engineer, 77, types.Leak{LeakDetectedAt: t0})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorContains(t, err, "water infrastructure 77")

	leak, err := svc.Leaks.CreateChild(ctx, engineer, main.ID, types.Leak{InfrastructureID: other.ID, LeakDetectedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, main.ID, leak.InfrastructureID)
	assert.Equal(t, "low", leak.Severity)

	moved, err := svc.Leaks.Update(ctx, leak.ID, overlay[types.Leak](`{"infrastructure_id":2,"repaired":true}`))
	require.NoError(t, err)
	assert.Equal(t, main.ID, moved.InfrastructureID)
	assert.True(t, moved.Repaired)

	leaks, err := svc.Leaks.ListChildren(ctx, main.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, leaks, 1)

	leaks, err = svc.Leaks.ListChildren(ctx, other.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, leaks)

	_, err = svc.Leaks.ListChildren(ctx, 77, 0, 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResource_OwnerIsCaller(t *testing.T) {
	ctx := context.Background()
	svc := NewDemandService(
		store.NewMemTable[types.DemandRecord]("water_demand"),
		store.NewMemTable[types.DistributionPlan]("water_distribution_plans"),
		store.NewMemTable[types.InvestmentPlan]("investment_plans"),
	)

	plan, err := svc.Investment.Create(ctx, engineer, types.InvestmentPlan{
		PlanName:  "2027 capex",
		CreatedBy: admin.ID,
		StartDate: t0,
		EndDate:   t0.AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, engineer.ID, plan.CreatedBy)
	assert.Equal(t, "planning", plan.Status)

	_, err = svc.Distribution.Create(ctx, engineer, types.DistributionPlan{PlanName: "backwards", StartDate: t0, EndDate: t0.AddDate(0, -1, 0)})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "end_date", verrs[0].Field())
}

func TestResource_References(t *testing.T) {
	ctx := context.Background()
	svc := NewTariffService(
		store.NewMemTable[types.Tariff]("tariffs"),
		store.NewMemTable[types.PaymentMethod]("payment_methods"),
		store.NewMemTable[types.Payment]("user_payments"),
	)

	tariff, err := svc.Create(ctx, admin, types.Tariff{Name: "Residential", PricePerUnit: 1.25, StartDate: t0})
	require.NoError(t, err)
	assert.Equal(t, "cubic_meter", tariff.UnitType)

	_, err = svc.Payments.Create(ctx, citizen, types.Payment{Amount: 10, TariffID: tariff.ID, PaymentMethodID: 5})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorContains(t, err, "payment method 5")

	method, err := svc.Methods.Create(ctx, admin, types.PaymentMethod{Name: "card", IsOnline: true})
	require.NoError(t, err)

	payment, err := svc.Payments.Create(ctx, citizen, types.Payment{Amount: 10, TariffID: tariff.ID, PaymentMethodID: method.ID, UserID: admin.ID})
	require.NoError(t, err)
	assert.Equal(t, citizen.ID, payment.UserID)
	assert.Equal(t, "completed", payment.Status)
	assert.False(t, payment.PaymentDate.IsZero())

	mine, err := svc.PaymentsFor(ctx, citizen.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.PaymentsFor(ctx, admin.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestAssetService_MaintenanceDue(t *testing.T) {
	ctx := context.Background()
	svc := NewAssetService(store.NewMemTable[types.Asset]("water_assets"), store.NewMemTable[types.Maintenance]("asset_maintenance"))
	svc.now = func() time.Time { return t0 }

	for _, next := range []*time.Time{ptr(t0.Add(-time.Hour)), ptr(t0), ptr(t0.Add(time.Hour)), nil} {
		_, err := svc.Create(ctx, engineer, types.Asset{Name: "a", AssetType: "valve", Location: "x", NextMaintenance: next})
		require.NoError(t, err)
	}

	due, err := svc.MaintenanceDue(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, []int{1, 2}, []int{due[0].ID, due[1].ID})

	_, err = svc.Maintenance.CreateChild(ctx, engineer, 1, types.Maintenance{MaintenanceType: "overhaul", MaintenanceDate: t0})
	require.NoError(t, err)
	history, err := svc.Maintenance.ListChildren(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDemandService_Forecast(t *testing.T) {
	ctx := context.Background()
	svc := NewDemandService(
		store.NewMemTable[types.DemandRecord]("water_demand"),
		store.NewMemTable[types.DistributionPlan]("water_distribution_plans"),
		store.NewMemTable[types.InvestmentPlan]("investment_plans"),
	)
	for i, loc := range []string{"North", "North", "South", "North"} {
		_, err := svc.Create(ctx, engineer, types.DemandRecord{Location: loc, DemandAmount: 100, DemandDate: t0.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	got, err := svc.Forecast(ctx, ForecastQuery{Location: "North", From: t0.AddDate(0, 0, 1)}, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "residential", got[0].DemandType)

	got, err = svc.Forecast(ctx, ForecastQuery{To: t0.AddDate(0, 0, 2)}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
