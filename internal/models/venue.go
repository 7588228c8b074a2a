package models

import "time"

// VenueType categorises a venue for capability matching.
type VenueType string

const (
	VenueTypeMainHall     VenueType = "MAIN_HALL"
	VenueTypeSeparateRoom VenueType = "SEPARATE_ROOM"
	VenueTypeClassroom    VenueType = "CLASSROOM"
)

// Venue is a room where exam sittings take place.
type Venue struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      VenueType `db:"type" json:"type"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Hydrated from the venue_capabilities table.
	Capabilities []string `db:"-" json:"capabilities,omitempty"`
}

// HasCapability reports whether the venue advertises the given code.
func (v Venue) HasCapability(code string) bool {
	for _, c := range v.Capabilities {
		if c == code {
			return true
		}
	}
	return false
}

// ProvisionRequirement records the capability codes a student needs for an
// exam sitting.
type ProvisionRequirement struct {
	ID         string    `db:"id" json:"id"`
	ExamID     string    `db:"exam_id" json:"exam_id"`
	StudentRef string    `db:"student_ref" json:"student_ref"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Codes []string `db:"-" json:"codes"`
}

// VenueFilter captures filtering options for listing venues.
type VenueFilter struct {
	Search    string
	Type      *VenueType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
