package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CaseSeverity splits cases into minor and major offences.
type CaseSeverity string

const (
	SeverityMinor CaseSeverity = "minor"
	SeverityMajor CaseSeverity = "major"
)

// ParseCaseSeverity accepts the severity in any letter case. Empty input yields
// an empty severity meaning "any".
func ParseCaseSeverity(raw string) (CaseSeverity, error) {
	switch s := CaseSeverity(strings.ToLower(strings.TrimSpace(raw))); s {
	case "", SeverityMinor, SeverityMajor:
		return s, nil
	default:
		return "", fmt.Errorf("unknown case severity %q", raw)
	}
}

// SubjectType is the category of person a case is filed against.
type SubjectType string

const (
	SubjectStudent SubjectType = "student"
	SubjectFaculty SubjectType = "faculty"
	SubjectStaff   SubjectType = "staff"
)

// ParseSubjectType accepts the subject type in any letter case. Empty input yields
// an empty type meaning "any".
func ParseSubjectType(raw string) (SubjectType, error) {
	switch s := SubjectType(strings.ToLower(strings.TrimSpace(raw))); s {
	case "", SubjectStudent, SubjectFaculty, SubjectStaff:
		return s, nil
	default:
		return "", fmt.Errorf("unknown subject type %q", raw)
	}
}

// LifecycleState is derived from the lifecycle columns, never stored.
type LifecycleState string

const (
	StateActive   LifecycleState = "ACTIVE"
	StateArchived LifecycleState = "ARCHIVED"
	StatePurged   LifecycleState = "PURGED"
)

// CaseStatusOpen is the status every new case starts with.
const CaseStatusOpen = "open"

// Case is a disciplinary case record.
type Case struct {
	ID               string       `db:"id" json:"id"`
	Severity         CaseSeverity `db:"severity" json:"severity"`
	SubjectType      SubjectType  `db:"subject_type" json:"subjectType"`
	SubjectFirstName string       `db:"subject_first_name" json:"subjectFirstName"`
	SubjectLastName  string       `db:"subject_last_name" json:"subjectLastName"`
	ProgramOrDept    string       `db:"program_or_dept" json:"programOrDept"`
	Section          *string      `db:"section" json:"section,omitempty"`
	OffenseCategory  string       `db:"offense_category" json:"offenseCategory"`
	OffenseType      string       `db:"offense_type" json:"offenseType"`
	Description      string       `db:"description" json:"description"`
	DateReported     time.Time    `db:"date_reported" json:"dateReported"`
	Status           string       `db:"status" json:"status"`
	Remarks          *string      `db:"remarks" json:"remarks,omitempty"`
	CreatedBy        string       `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
	IsDeleted        bool         `db:"is_deleted" json:"isDeleted"`
	DeletedAt        *time.Time   `db:"deleted_at" json:"deletedAt,omitempty"`
	DeletedBy        *string      `db:"deleted_by" json:"deletedBy,omitempty"`
}

// State reports whether the case is active or archived.
func (c *Case) State() LifecycleState {
	if c.IsDeleted {
		return StateArchived
	}
	return StateActive
}

// SubjectName joins the subject's first and last name.
func (c *Case) SubjectName() string {
	return strings.TrimSpace(c.SubjectFirstName + " " + c.SubjectLastName)
}

// LifecycleConsistent reports whether the deletion flag and its metadata agree.
func (c *Case) LifecycleConsistent() bool {
	if c.IsDeleted {
		return c.DeletedAt != nil && c.DeletedBy != nil
	}
	return c.DeletedAt == nil && c.DeletedBy == nil
}

// SearchField names a text column group that case search may match.
type SearchField string

const (
	SearchByName        SearchField = "name"
	SearchByOffense     SearchField = "offense"
	SearchByDescription SearchField = "description"
	SearchByProgram     SearchField = "program"
)

// Columns returns the cases columns the field expands to.
func (f SearchField) Columns() []string {
	switch f {
	case SearchByName:
		return []string{"subject_first_name", "subject_last_name"}
	case SearchByOffense:
		return []string{"offense_type", "offense_category"}
	case SearchByDescription:
		return []string{"description"}
	case SearchByProgram:
		return []string{"program_or_dept"}
	default:
		return nil
	}
}

// ParseSearchFields validates configured search fields, dropping duplicates.
// An empty list falls back to searching by name.
func ParseSearchFields(raw []string) ([]SearchField, error) {
	fields := make([]SearchField, 0, len(raw))
	seen := make(map[SearchField]struct{}, len(raw))
	for _, r := range raw {
		f := SearchField(strings.ToLower(strings.TrimSpace(r)))
		if len(f.Columns()) == 0 {
			return nil, fmt.Errorf("unknown search field %q", r)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		fields = append(fields, SearchByName)
	}
	return fields, nil
}

// CaseFilter narrows active case listings.
type CaseFilter struct {
	SubjectType  SubjectType
	Severity     CaseSeverity
	Search       string
	SearchFields []SearchField
	Page         int
	PageSize     int
}

// Offset converts the 1-indexed page into a row offset. It saturates at
// math.MaxInt instead of overflowing for absurd page numbers.
func (f CaseFilter) Offset() int {
	if f.Page <= 1 || f.PageSize <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}
