package types

import "time"

// SanitationFacility is a public toilet, treatment plant or similar site.
type SanitationFacility struct {
	Record
	Name             string     `json:"name" db:"name" validate:"required,max=255"`
	Type             string     `json:"type" db:"type" validate:"required,max=100"`
	Location         string     `json:"location" db:"location" validate:"required,max=255"`
	Latitude         *float64   `json:"latitude" db:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64   `json:"longitude" db:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Capacity         *int       `json:"capacity" db:"capacity" validate:"omitempty,gte=0"`
	IsAccessible     bool       `json:"is_accessible" db:"is_accessible"`
	IsOperational    *bool      `json:"is_operational" db:"is_operational"`
	LastMaintenance  *time.Time `json:"last_maintenance" db:"last_maintenance"`
	ConditionStatus  string     `json:"condition_status" db:"condition_status" validate:"max=50"`
	InstallationDate *time.Time `json:"installation_date" db:"installation_date"`
}

func (f *SanitationFacility) ApplyDefaults() {
	defaultString(&f.ConditionStatus, "good")
	defaultTrue(&f.IsOperational)
}

// SanitationReport is a citizen or inspector report about a facility.
type SanitationReport struct {
	Record
	FacilityID          int        `json:"facility_id" db:"facility_id,immutable"`
	ReportedBy          int        `json:"reported_by" db:"reported_by,immutable"`
	ReportDate          time.Time  `json:"report_date" db:"report_date"`
	HygieneRating       *int       `json:"hygiene_rating" db:"hygiene_rating" validate:"omitempty,min=1,max=5"`
	CleanlinessRating   *int       `json:"cleanliness_rating" db:"cleanliness_rating" validate:"omitempty,min=1,max=5"`
	AccessibilityRating *int       `json:"accessibility_rating" db:"accessibility_rating" validate:"omitempty,min=1,max=5"`
	Description         *string    `json:"description" db:"description"`
	PhotoURL            *string    `json:"photo_url" db:"photo_url"`
	IsResolved          bool       `json:"is_resolved" db:"is_resolved"`
	ResolvedBy          *int       `json:"resolved_by" db:"resolved_by"`
	ResolvedAt          *time.Time `json:"resolved_at" db:"resolved_at"`
}

func (r *SanitationReport) ApplyDefaults() {
	if r.ReportDate.IsZero() {
		r.ReportDate = time.Now().UTC()
	}
}

func (r *SanitationReport) SetParentID(id int) {
	r.FacilityID = id
}

func (r *SanitationReport) SetOwnerID(id int) {
	r.ReportedBy = id
}
