package models

import "time"

// FeeCategory classifies fee templates.
type FeeCategory string

// Known fee categories. REGULAR fees are compulsory by default.
const (
	FeeCategoryRegular   FeeCategory = "REGULAR"
	FeeCategoryExam      FeeCategory = "EXAM"
	FeeCategoryTransport FeeCategory = "TRANSPORT"
	FeeCategoryHostel    FeeCategory = "HOSTEL"
	FeeCategoryOther     FeeCategory = "OTHER"
)

// Valid reports whether the category is a known value.
func (c FeeCategory) Valid() bool {
	switch c {
	case FeeCategoryRegular, FeeCategoryExam, FeeCategoryTransport, FeeCategoryHostel, FeeCategoryOther:
		return true
	}
	return false
}

// ScholarshipType classifies scholarship templates.
type ScholarshipType string

// Known scholarship types.
const (
	ScholarshipTypeMerit   ScholarshipType = "MERIT"
	ScholarshipTypeNeed    ScholarshipType = "NEED_BASED"
	ScholarshipTypeSibling ScholarshipType = "SIBLING"
	ScholarshipTypeStaff   ScholarshipType = "STAFF_WARD"
	ScholarshipTypeOther   ScholarshipType = "OTHER"
)

// Valid reports whether the type is a known value.
func (t ScholarshipType) Valid() bool {
	switch t {
	case ScholarshipTypeMerit, ScholarshipTypeNeed, ScholarshipTypeSibling, ScholarshipTypeStaff, ScholarshipTypeOther:
		return true
	}
	return false
}

// FeeTemplate is a catalog definition of a fee kind, independent of any year
// or class. Templates are soft-deactivated, never deleted.
type FeeTemplate struct {
	ID           string      `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	Category     FeeCategory `db:"category" json:"category"`
	DisplayOrder int         `db:"display_order" json:"display_order"`
	IsActive     bool        `db:"is_active" json:"is_active"`
	CreatedBy    string      `db:"created_by" json:"created_by"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// ScholarshipTemplate is a catalog definition of a scholarship kind.
type ScholarshipTemplate struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Type          ScholarshipType `db:"type" json:"type"`
	IsAutoApplied bool            `db:"is_auto_applied" json:"is_auto_applied"`
	DisplayOrder  int             `db:"display_order" json:"display_order"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// TemplateFilter narrows template catalog listings.
type TemplateFilter struct {
	Search   string
	IsActive *bool
	Page     int
	PageSize int
}
