package types

import "time"

// Asset is a managed piece of equipment with a maintenance schedule.
type Asset struct {
	Record
	Name             string     `json:"name" db:"name" validate:"required,max=255"`
	AssetType        string     `json:"asset_type" db:"asset_type" validate:"required,max=100"`
	Description      *string    `json:"description" db:"description"`
	Location         string     `json:"location" db:"location" validate:"required,max=255"`
	Latitude         *float64   `json:"latitude" db:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64   `json:"longitude" db:"longitude" validate:"omitempty,gte=-180,lte=180"`
	InstallationDate *time.Time `json:"installation_date" db:"installation_date"`
	LastMaintenance  *time.Time `json:"last_maintenance" db:"last_maintenance"`
	NextMaintenance  *time.Time `json:"next_maintenance" db:"next_maintenance"`
	Status           string     `json:"status" db:"status" validate:"max=50"`
	IsOperational    *bool      `json:"is_operational" db:"is_operational"`
	AssetValue       *float64   `json:"asset_value" db:"asset_value" validate:"omitempty,gte=0"`
	DepreciationRate float64    `json:"depreciation_rate" db:"depreciation_rate" validate:"gte=0"`
}

func (a *Asset) ApplyDefaults() {
	defaultString(&a.Status, "operational")
	defaultTrue(&a.IsOperational)
}

// Maintenance records one service performed on an asset.
type Maintenance struct {
	Record
	AssetID             int        `json:"asset_id" db:"asset_id,immutable"`
	MaintenanceType     string     `json:"maintenance_type" db:"maintenance_type" validate:"required,max=100"`
	Description         *string    `json:"description" db:"description"`
	PerformedBy         *string    `json:"performed_by" db:"performed_by"`
	Cost                *float64   `json:"cost" db:"cost" validate:"omitempty,gte=0"`
	MaintenanceDate     time.Time  `json:"maintenance_date" db:"maintenance_date" validate:"required"`
	NextMaintenanceDate *time.Time `json:"next_maintenance_date" db:"next_maintenance_date"`
}

func (m *Maintenance) SetParentID(id int) {
	m.AssetID = id
}
