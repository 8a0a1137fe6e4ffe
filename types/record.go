package types

import "time"

// Record holds the server-assigned columns every resource row carries.
type Record struct {
	ID        int        `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

func defaultString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func defaultTrue(field **bool) {
	if *field == nil {
		v := true
		*field = &v
	}
}
