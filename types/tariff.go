package types

import "time"

// Tariff is a unit price for water usage over a validity window.
type Tariff struct {
	Record
	Name         string     `json:"name" db:"name" validate:"required,max=255"`
	Description  *string    `json:"description" db:"description"`
	PricePerUnit float64    `json:"price_per_unit" db:"price_per_unit" validate:"gt=0"`
	UnitType     string     `json:"unit_type" db:"unit_type" validate:"max=50"`
	IsActive     *bool      `json:"is_active" db:"is_active"`
	StartDate    time.Time  `json:"start_date" db:"start_date" validate:"required"`
	EndDate      *time.Time `json:"end_date" db:"end_date"`
}

func (t *Tariff) ApplyDefaults() {
	defaultString(&t.UnitType, "cubic_meter")
	defaultTrue(&t.IsActive)
}

// PaymentMethod is an accepted way to pay.
type PaymentMethod struct {
	Record
	Name        string  `json:"name" db:"name" validate:"required,max=100"`
	Description *string `json:"description" db:"description"`
	IsActive    *bool   `json:"is_active" db:"is_active"`
	IsOnline    bool    `json:"is_online" db:"is_online"`
}

func (m *PaymentMethod) ApplyDefaults() {
	defaultTrue(&m.IsActive)
}

// Payment is a user's payment against a tariff.
type Payment struct {
	Record
	UserID           int       `json:"user_id" db:"user_id,immutable"`
	Amount           float64   `json:"amount" db:"amount" validate:"gt=0"`
	TariffID         int       `json:"tariff_id" db:"tariff_id" validate:"required,gt=0"`
	PaymentMethodID  int       `json:"payment_method_id" db:"payment_method_id" validate:"required,gt=0"`
	PaymentDate      time.Time `json:"payment_date" db:"payment_date"`
	PaymentReference *string   `json:"payment_reference" db:"payment_reference"`
	Status           string    `json:"status" db:"status" validate:"omitempty,oneof=pending completed failed refunded"`
}

func (p *Payment) ApplyDefaults() {
	defaultString(&p.Status, "completed")
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
}

func (p *Payment) SetOwnerID(id int) {
	p.UserID = id
}
