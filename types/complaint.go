package types

import "time"

// Complaint statuses.
const (
	ComplaintPending    = "pending"
	ComplaintInProgress = "in_progress"
	ComplaintResolved   = "resolved"
)

// Complaint is a service complaint filed by a user.
type Complaint struct {
	Record
	UserID      *int       `json:"user_id" db:"user_id,immutable"`
	FullName    string     `json:"full_name" db:"full_name" validate:"required,max=255"`
	Email       *string    `json:"email" db:"email" validate:"omitempty,email"`
	Phone       *string    `json:"phone" db:"phone" validate:"omitempty,max=50"`
	Category    string     `json:"category" db:"category" validate:"required,max=100"`
	Location    *string    `json:"location" db:"location"`
	Latitude    *float64   `json:"latitude" db:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64   `json:"longitude" db:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Description string     `json:"description" db:"description" validate:"required"`
	PhotoURL    *string    `json:"photo_url" db:"photo_url"`
	Priority    string     `json:"priority" db:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      string     `json:"status" db:"status" validate:"omitempty,oneof=pending in_progress resolved closed"`
	AssignedTo  *int       `json:"assigned_to" db:"assigned_to"`
	ResolvedAt  *time.Time `json:"resolved_at" db:"resolved_at"`
}

func (c *Complaint) ApplyDefaults() {
	defaultString(&c.Priority, "medium")
	defaultString(&c.Status, ComplaintPending)
}

func (c *Complaint) SetOwnerID(id int) {
	c.UserID = &id
}

// ComplaintCategory is a selectable complaint category.
type ComplaintCategory struct {
	Record
	Name        string  `json:"name" db:"name" validate:"required,max=100"`
	Description *string `json:"description" db:"description"`
	IsActive    *bool   `json:"is_active" db:"is_active"`
}

func (c *ComplaintCategory) ApplyDefaults() {
	defaultTrue(&c.IsActive)
}

// ComplaintAssign is the body of the assign transition.
type ComplaintAssign struct {
	AssignedTo int `json:"assigned_to" validate:"required,gt=0"`
}
