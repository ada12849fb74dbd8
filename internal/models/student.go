package models

import (
	"database/sql/driver"
	"time"
)

// Student is the live student entity. Fee documents never reference it
// directly; they carry a StudentSnapshot taken at creation time.
type Student struct {
	ID           string     `db:"id" json:"id"`
	AdmissionNo  string     `db:"admission_no" json:"admission_no"`
	FullName     string     `db:"full_name" json:"full_name"`
	Gender       string     `db:"gender" json:"gender"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	GuardianName string     `db:"guardian_name" json:"guardian_name"`
	Phone        string     `db:"phone" json:"phone"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AcademicYear is the live academic year entity. At most one year is active.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Class is the live class entity.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Section   string    `db:"section" json:"section"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentSnapshot is the immutable copy of student identity embedded in fee
// documents. It is written once at document creation and never refreshed, so
// historical receipts keep the name the student had at the time.
type StudentSnapshot struct {
	ID           string `json:"id"`
	AdmissionNo  string `json:"admission_no"`
	FullName     string `json:"full_name"`
	GuardianName string `json:"guardian_name,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (s StudentSnapshot) Value() (driver.Value, error) { return jsonbValue(s) }

// Scan implements sql.Scanner for JSONB storage.
func (s *StudentSnapshot) Scan(src interface{}) error { return jsonbScan(src, s) }

// SnapshotStudent copies the live entity's identity fields.
func SnapshotStudent(s *Student) StudentSnapshot {
	return StudentSnapshot{
		ID:           s.ID,
		AdmissionNo:  s.AdmissionNo,
		FullName:     s.FullName,
		GuardianName: s.GuardianName,
	}
}

// AcademicYearSnapshot is the immutable academic year copy embedded in fee
// documents.
type AcademicYearSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Value implements driver.Valuer for JSONB storage.
func (s AcademicYearSnapshot) Value() (driver.Value, error) { return jsonbValue(s) }

// Scan implements sql.Scanner for JSONB storage.
func (s *AcademicYearSnapshot) Scan(src interface{}) error { return jsonbScan(src, s) }

// SnapshotAcademicYear copies the live entity's identity fields.
func SnapshotAcademicYear(y *AcademicYear) AcademicYearSnapshot {
	return AcademicYearSnapshot{ID: y.ID, Name: y.Name}
}

// ClassSnapshot is the immutable class copy embedded in fee documents.
type ClassSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Section string `json:"section,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (s ClassSnapshot) Value() (driver.Value, error) { return jsonbValue(s) }

// Scan implements sql.Scanner for JSONB storage.
func (s *ClassSnapshot) Scan(src interface{}) error { return jsonbScan(src, s) }

// SnapshotClass copies the live entity's identity fields.
func SnapshotClass(c *Class) ClassSnapshot {
	return ClassSnapshot{ID: c.ID, Name: c.Name, Section: c.Section}
}
