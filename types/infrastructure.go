package types

import "time"

// Infrastructure is a physical network element: pipe, pump, reservoir, valve.
type Infrastructure struct {
	Record
	Name             string     `json:"name" db:"name" validate:"required,max=255"`
	Type             string     `json:"type" db:"type" validate:"required,max=100"`
	Location         string     `json:"location" db:"location" validate:"required,max=255"`
	Latitude         *float64   `json:"latitude" db:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64   `json:"longitude" db:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Pressure         *float64   `json:"pressure" db:"pressure"`
	Temperature      *float64   `json:"temperature" db:"temperature"`
	LeakDetected     bool       `json:"leak_detected" db:"leak_detected"`
	LastInspection   *time.Time `json:"last_inspection" db:"last_inspection"`
	ConditionStatus  string     `json:"condition_status" db:"condition_status" validate:"max=50"`
	InstallationDate *time.Time `json:"installation_date" db:"installation_date"`
}

func (i *Infrastructure) ApplyDefaults() {
	defaultString(&i.ConditionStatus, "good")
}

// Leak is a leak incident reported against one infrastructure element.
type Leak struct {
	Record
	InfrastructureID int        `json:"infrastructure_id" db:"infrastructure_id,immutable"`
	LeakDetectedAt   time.Time  `json:"leak_detected_at" db:"leak_detected_at" validate:"required"`
	Severity         string     `json:"severity" db:"severity" validate:"omitempty,oneof=low medium high critical"`
	Description      *string    `json:"description" db:"description"`
	Repaired         bool       `json:"repaired" db:"repaired"`
	RepairDate       *time.Time `json:"repair_date" db:"repair_date"`
}

func (l *Leak) ApplyDefaults() {
	defaultString(&l.Severity, "low")
}

func (l *Leak) SetParentID(id int) {
	l.InfrastructureID = id
}
