package types

import "time"

// DemandRecord is an observed or forecast water demand figure.
type DemandRecord struct {
	Record
	Location     string    `json:"location" db:"location" validate:"required,max=255"`
	Latitude     *float64  `json:"latitude" db:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64  `json:"longitude" db:"longitude" validate:"omitempty,gte=-180,lte=180"`
	DemandAmount float64   `json:"demand_amount" db:"demand_amount" validate:"gte=0"`
	DemandDate   time.Time `json:"demand_date" db:"demand_date" validate:"required"`
	DemandType   string    `json:"demand_type" db:"demand_type" validate:"omitempty,oneof=residential commercial industrial public"`
	Forecasted   bool      `json:"forecasted" db:"forecasted"`
}

func (d *DemandRecord) ApplyDefaults() {
	defaultString(&d.DemandType, "residential")
}

// DistributionPlan splits an allocation of water across sectors.
type DistributionPlan struct {
	Record
	PlanName               string    `json:"plan_name" db:"plan_name" validate:"required,max=255"`
	Description            *string   `json:"description" db:"description"`
	StartDate              time.Time `json:"start_date" db:"start_date" validate:"required"`
	EndDate                time.Time `json:"end_date" db:"end_date" validate:"required,gtefield=StartDate"`
	TotalWaterAllocated    float64   `json:"total_water_allocated" db:"total_water_allocated" validate:"gte=0"`
	AllocatedToResidential float64   `json:"allocated_to_residential" db:"allocated_to_residential" validate:"gte=0"`
	AllocatedToCommercial  float64   `json:"allocated_to_commercial" db:"allocated_to_commercial" validate:"gte=0"`
	AllocatedToIndustrial  float64   `json:"allocated_to_industrial" db:"allocated_to_industrial" validate:"gte=0"`
	AllocatedToPublic      float64   `json:"allocated_to_public" db:"allocated_to_public" validate:"gte=0"`
	Status                 string    `json:"status" db:"status" validate:"omitempty,oneof=draft approved active completed"`
	CreatedBy              int       `json:"created_by" db:"created_by,immutable"`
}

func (p *DistributionPlan) ApplyDefaults() {
	defaultString(&p.Status, "draft")
}

func (p *DistributionPlan) SetOwnerID(id int) {
	p.CreatedBy = id
}

// InvestmentPlan budgets capital spending over a period.
type InvestmentPlan struct {
	Record
	PlanName                   string    `json:"plan_name" db:"plan_name" validate:"required,max=255"`
	Description                *string   `json:"description" db:"description"`
	TotalInvestment            float64   `json:"total_investment" db:"total_investment" validate:"gte=0"`
	AllocatedForInfrastructure float64   `json:"allocated_for_infrastructure" db:"allocated_for_infrastructure" validate:"gte=0"`
	AllocatedForEquipment      float64   `json:"allocated_for_equipment" db:"allocated_for_equipment" validate:"gte=0"`
	AllocatedForMaintenance    float64   `json:"allocated_for_maintenance" db:"allocated_for_maintenance" validate:"gte=0"`
	AllocatedForHumanResources float64   `json:"allocated_for_human_resources" db:"allocated_for_human_resources" validate:"gte=0"`
	StartDate                  time.Time `json:"start_date" db:"start_date" validate:"required"`
	EndDate                    time.Time `json:"end_date" db:"end_date" validate:"required,gtefield=StartDate"`
	Status                     string    `json:"status" db:"status" validate:"omitempty,oneof=planning approved in_progress completed"`
	CreatedBy                  int       `json:"created_by" db:"created_by,immutable"`
}

func (p *InvestmentPlan) ApplyDefaults() {
	defaultString(&p.Status, "planning")
}

func (p *InvestmentPlan) SetOwnerID(id int) {
	p.CreatedBy = id
}
