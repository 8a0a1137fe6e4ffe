package types

import "time"

// QualityMeasurement is one water sample taken at a location.
type QualityMeasurement struct {
	Record
	Location               string    `json:"location" db:"location" validate:"required,max=255"`
	Latitude               *float64  `json:"latitude" db:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude              *float64  `json:"longitude" db:"longitude" validate:"omitempty,gte=-180,lte=180"`
	PHLevel                *float64  `json:"ph_level" db:"ph_level" validate:"omitempty,gte=0,lte=14"`
	ChlorineLevel          *float64  `json:"chlorine_level" db:"chlorine_level" validate:"omitempty,gte=0"`
	Turbidity              *float64  `json:"turbidity" db:"turbidity" validate:"omitempty,gte=0"`
	Temperature            *float64  `json:"temperature" db:"temperature"`
	DissolvedOxygen        *float64  `json:"dissolved_oxygen" db:"dissolved_oxygen" validate:"omitempty,gte=0"`
	EColi                  *float64  `json:"e_coli" db:"e_coli" validate:"omitempty,gte=0"`
	TotalSolids            *float64  `json:"total_solids" db:"total_solids" validate:"omitempty,gte=0"`
	ChemicalOxygenDemand   *float64  `json:"chemical_oxygen_demand" db:"chemical_oxygen_demand" validate:"omitempty,gte=0"`
	BiologicalOxygenDemand *float64  `json:"biological_oxygen_demand" db:"biological_oxygen_demand" validate:"omitempty,gte=0"`
	DateMeasured           time.Time `json:"date_measured" db:"date_measured" validate:"required"`
	MeasuredBy             *string   `json:"measured_by" db:"measured_by"`
	Notes                  *string   `json:"notes" db:"notes"`
	QualityStatus          string    `json:"quality_status" db:"quality_status" validate:"omitempty,oneof=good fair poor critical"`
}

func (q *QualityMeasurement) ApplyDefaults() {
	defaultString(&q.QualityStatus, "good")
}

// QualityAlert flags a measurement that needs attention.
type QualityAlert struct {
	Record
	QualityID      int        `json:"quality_id" db:"quality_id,immutable" validate:"required,gt=0"`
	AlertType      string     `json:"alert_type" db:"alert_type" validate:"required,max=100"`
	Message        string     `json:"message" db:"message" validate:"required"`
	IsActive       *bool      `json:"is_active" db:"is_active"`
	Acknowledged   bool       `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy *int       `json:"acknowledged_by" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at" db:"acknowledged_at"`
}

func (a *QualityAlert) ApplyDefaults() {
	defaultTrue(&a.IsActive)
}
