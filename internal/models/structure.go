package models

import (
	"database/sql/driver"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FeeItem is one fee line of a FeeStructure, derived from a FeeTemplate plus
// the class-level default amount.
type FeeItem struct {
	TemplateID                 string          `json:"template_id"`
	TemplateName               string          `json:"template_name"`
	TemplateCategory           FeeCategory     `json:"template_category"`
	Amount                     decimal.Decimal `json:"amount"`
	IsCompulsory               bool            `json:"is_compulsory"`
	IsEditableDuringEnrollment bool            `json:"is_editable_during_enrollment"`
	Order                      int             `json:"order"`
}

// FeeItems is the ordered fee line list, stored as a JSONB array.
type FeeItems []FeeItem

// Value implements driver.Valuer for JSONB storage.
func (f FeeItems) Value() (driver.Value, error) { return jsonbValue(f) }

// Scan implements sql.Scanner for JSONB storage.
func (f *FeeItems) Scan(src interface{}) error { return jsonbScan(src, f) }

// ScholarshipItem is one scholarship line of a FeeStructure.
type ScholarshipItem struct {
	TemplateID                 string          `json:"template_id"`
	TemplateName               string          `json:"template_name"`
	TemplateType               ScholarshipType `json:"template_type"`
	Amount                     decimal.Decimal `json:"amount"`
	IsAutoApplied              bool            `json:"is_auto_applied"`
	IsEditableDuringEnrollment bool            `json:"is_editable_during_enrollment"`
	Order                      int             `json:"order"`
}

// ScholarshipItems is the ordered scholarship line list, stored as JSONB.
type ScholarshipItems []ScholarshipItem

// Value implements driver.Valuer for JSONB storage.
func (s ScholarshipItems) Value() (driver.Value, error) { return jsonbValue(s) }

// Scan implements sql.Scanner for JSONB storage.
func (s *ScholarshipItems) Scan(src interface{}) error { return jsonbScan(src, s) }

// FeeTotals aggregates a structure's fee lines. Always derived, never edited.
type FeeTotals struct {
	Compulsory decimal.Decimal `json:"compulsory"`
	Optional   decimal.Decimal `json:"optional"`
	Total      decimal.Decimal `json:"total"`
}

// Value implements driver.Valuer for JSONB storage.
func (t FeeTotals) Value() (driver.Value, error) { return jsonbValue(t) }

// Scan implements sql.Scanner for JSONB storage.
func (t *FeeTotals) Scan(src interface{}) error { return jsonbScan(src, t) }

// ScholarshipTotals aggregates a structure's scholarship lines.
type ScholarshipTotals struct {
	AutoApplied decimal.Decimal `json:"auto_applied"`
	Manual      decimal.Decimal `json:"manual"`
	Total       decimal.Decimal `json:"total"`
}

// Value implements driver.Valuer for JSONB storage.
func (t ScholarshipTotals) Value() (driver.Value, error) { return jsonbValue(t) }

// Scan implements sql.Scanner for JSONB storage.
func (t *ScholarshipTotals) Scan(src interface{}) error { return jsonbScan(src, t) }

// FeeStructure is the fee and scholarship plan for one (academic year, class)
// pair, composed from active templates. Unique on that pair.
type FeeStructure struct {
	ID               string               `db:"id" json:"id"`
	AcademicYearID   string               `db:"academic_year_id" json:"academic_year_id"`
	ClassID          string               `db:"class_id" json:"class_id"`
	AcademicYear     AcademicYearSnapshot `db:"academic_year" json:"academic_year"`
	Class            ClassSnapshot        `db:"class" json:"class"`
	FeeItems         FeeItems             `db:"fee_items" json:"fee_items"`
	ScholarshipItems ScholarshipItems     `db:"scholarship_items" json:"scholarship_items"`
	FeeTotals        FeeTotals            `db:"fee_totals" json:"fee_totals"`
	ScholTotals      ScholarshipTotals    `db:"scholarship_totals" json:"scholarship_totals"`
	IsActive         bool                 `db:"is_active" json:"is_active"`
	CreatedBy        string               `db:"created_by" json:"created_by"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// RecomputeTotals rederives both totals blocks from the item lists.
func (s *FeeStructure) RecomputeTotals() {
	fees := FeeTotals{
		Compulsory: decimal.Zero,
		Optional:   decimal.Zero,
		Total:      decimal.Zero,
	}
	for _, item := range s.FeeItems {
		fees.Total = fees.Total.Add(item.Amount)
		if item.IsCompulsory {
			fees.Compulsory = fees.Compulsory.Add(item.Amount)
		} else {
			fees.Optional = fees.Optional.Add(item.Amount)
		}
	}
	s.FeeTotals = fees

	schol := ScholarshipTotals{
		AutoApplied: decimal.Zero,
		Manual:      decimal.Zero,
		Total:       decimal.Zero,
	}
	for _, item := range s.ScholarshipItems {
		schol.Total = schol.Total.Add(item.Amount)
		if item.IsAutoApplied {
			schol.AutoApplied = schol.AutoApplied.Add(item.Amount)
		} else {
			schol.Manual = schol.Manual.Add(item.Amount)
		}
	}
	s.ScholTotals = schol
}

// SortItems orders both item lists by template order, ties broken by name
// (case-sensitive).
func (s *FeeStructure) SortItems() {
	sort.SliceStable(s.FeeItems, func(i, j int) bool {
		if s.FeeItems[i].Order != s.FeeItems[j].Order {
			return s.FeeItems[i].Order < s.FeeItems[j].Order
		}
		return s.FeeItems[i].TemplateName < s.FeeItems[j].TemplateName
	})
	sort.SliceStable(s.ScholarshipItems, func(i, j int) bool {
		if s.ScholarshipItems[i].Order != s.ScholarshipItems[j].Order {
			return s.ScholarshipItems[i].Order < s.ScholarshipItems[j].Order
		}
		return s.ScholarshipItems[i].TemplateName < s.ScholarshipItems[j].TemplateName
	})
}

// FeeItemByTemplate returns the fee line for a template id.
func (s *FeeStructure) FeeItemByTemplate(templateID string) (FeeItem, bool) {
	for _, item := range s.FeeItems {
		if item.TemplateID == templateID {
			return item, true
		}
	}
	return FeeItem{}, false
}

// ScholarshipItemByTemplate returns the scholarship line for a template id.
func (s *FeeStructure) ScholarshipItemByTemplate(templateID string) (ScholarshipItem, bool) {
	for _, item := range s.ScholarshipItems {
		if item.TemplateID == templateID {
			return item, true
		}
	}
	return ScholarshipItem{}, false
}

// StructureFilter narrows fee structure listings.
type StructureFilter struct {
	AcademicYearID string
	ClassID        string
	IsActive       *bool
	Page           int
	PageSize       int
}
