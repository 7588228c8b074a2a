package models

import (
	"fmt"
	"strings"
	"time"
)

// Invigilator represents a member of the invigilation roster.
type Invigilator struct {
	ID            string     `db:"id" json:"id"`
	PreferredName *string    `db:"preferred_name" json:"preferred_name,omitempty"`
	FullName      string     `db:"full_name" json:"full_name"`
	Email         string     `db:"email" json:"email"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Resigned      bool       `db:"resigned" json:"resigned"`
	ResignedAt    *time.Time `db:"resigned_at" json:"resigned_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	// Hydrated by the repository, not stored on the invigilators table.
	Qualifications []string           `db:"-" json:"qualifications,omitempty"`
	Restrictions   []DietRestriction  `db:"-" json:"restrictions,omitempty"`
	Availability   []AvailabilityEntry `db:"-" json:"availability,omitempty"`
}

// DisplayName resolves the name shown to operators: preferred name wins,
// falling back to the full name, then to a synthetic label.
func (i Invigilator) DisplayName() string {
	if i.PreferredName != nil {
		if name := strings.TrimSpace(*i.PreferredName); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(i.FullName); name != "" {
		return name
	}
	return fmt.Sprintf("Invigilator #%s", i.ID)
}

// RestrictionsForDiet returns the restriction codes scoped to a diet.
func (i Invigilator) RestrictionsForDiet(dietID string) []string {
	for _, r := range i.Restrictions {
		if r.DietID == dietID {
			return r.Codes
		}
	}
	return nil
}

// DietRestriction groups restriction codes under the diet they apply to.
type DietRestriction struct {
	DietID string   `json:"diet_id"`
	Codes  []string `json:"codes"`
}

// InvigilatorFilter captures filtering options for listing the roster.
type InvigilatorFilter struct {
	Search    string
	Resigned  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
