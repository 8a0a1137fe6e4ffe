package server

import (
	"database/sql"

	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// Repositories are the storage backends behind the services.
type Repositories struct {
	Users services.UserRepository

	Infrastructure services.Repository[types.Infrastructure]
	Leaks          services.Repository[types.Leak]
	Assets         services.Repository[types.Asset]
	Maintenance    services.Repository[types.Maintenance]
	Measurements   services.Repository[types.QualityMeasurement]
	Alerts         services.Repository[types.QualityAlert]
	Facilities     services.Repository[types.SanitationFacility]
	Reports        services.Repository[types.SanitationReport]
	Complaints     services.Repository[types.Complaint]
	Categories     services.Repository[types.ComplaintCategory]
	Tariffs        services.Repository[types.Tariff]
	PaymentMethods services.Repository[types.PaymentMethod]
	Payments       services.Repository[types.Payment]
	Demand         services.Repository[types.DemandRecord]
	Distribution   services.Repository[types.DistributionPlan]
	Investment     services.Repository[types.InvestmentPlan]
	Notifications  services.Repository[types.Notification]
	Settings       services.Repository[types.NotificationSetting]
}

// SQLRepositories binds every repository to the migrated PostgreSQL schema.
func SQLRepositories(db *sql.DB) Repositories {
	return Repositories{
		Users:          store.NewUserRepository(db),
		Infrastructure: store.NewTable[types.Infrastructure](db, "water_infrastructure"),
		Leaks:          store.NewTable[types.Leak](db, "water_leaks"),
		Assets:         store.NewTable[types.Asset](db, "water_assets"),
		Maintenance:    store.NewTable[types.Maintenance](db, "asset_maintenance"),
		Measurements:   store.NewTable[types.QualityMeasurement](db, "water_quality"),
		Alerts:         store.NewTable[types.QualityAlert](db, "water_quality_alerts"),
		Facilities:     store.NewTable[types.SanitationFacility](db, "sanitation_facilities"),
		Reports:        store.NewTable[types.SanitationReport](db, "sanitation_reports"),
		Complaints:     store.NewTable[types.Complaint](db, "complaints"),
		Categories:     store.NewTable[types.ComplaintCategory](db, "complaint_categories"),
		Tariffs:        store.NewTable[types.Tariff](db, "tariffs"),
		PaymentMethods: store.NewTable[types.PaymentMethod](db, "payment_methods"),
		Payments:       store.NewTable[types.Payment](db, "user_payments"),
		Demand:         store.NewTable[types.DemandRecord](db, "water_demand"),
		Distribution:   store.NewTable[types.DistributionPlan](db, "water_distribution_plans"),
		Investment:     store.NewTable[types.InvestmentPlan](db, "investment_plans"),
		Notifications:  store.NewTable[types.Notification](db, "notifications"),
		Settings:       store.NewTable[types.NotificationSetting](db, "notification_settings"),
	}
}

// MemoryRepositories keeps everything in process. Data is lost on exit.
func MemoryRepositories() Repositories {
	return Repositories{
		Users:          store.NewMemoryUserRepository(),
		Infrastructure: store.NewMemTable[types.Infrastructure]("water_infrastructure"),
		Leaks:          store.NewMemTable[types.Leak]("water_leaks"),
		Assets:         store.NewMemTable[types.Asset]("water_assets"),
		Maintenance:    store.NewMemTable[types.Maintenance]("asset_maintenance"),
		Measurements:   store.NewMemTable[types.QualityMeasurement]("water_quality"),
		Alerts:         store.NewMemTable[types.QualityAlert]("water_quality_alerts"),
		Facilities:     store.NewMemTable[types.SanitationFacility]("sanitation_facilities"),
		Reports:        store.NewMemTable[types.SanitationReport]("sanitation_reports"),
		Complaints:     store.NewMemTable[types.Complaint]("complaints"),
		Categories:     store.NewMemTable[types.ComplaintCategory]("complaint_categories", "name"),
		Tariffs:        store.NewMemTable[types.Tariff]("tariffs"),
		PaymentMethods: store.NewMemTable[types.PaymentMethod]("payment_methods"),
		Payments:       store.NewMemTable[types.Payment]("user_payments"),
		Demand:         store.NewMemTable[types.DemandRecord]("water_demand"),
		Distribution:   store.NewMemTable[types.DistributionPlan]("water_distribution_plans"),
		Investment:     store.NewMemTable[types.InvestmentPlan]("investment_plans"),
		Notifications:  store.NewMemTable[types.Notification]("notifications"),
		Settings:       store.NewMemTable[types.NotificationSetting]("notification_settings"),
	}
}
