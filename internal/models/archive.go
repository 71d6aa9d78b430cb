package models

import "time"

// ArchiveBand classifies how close an archived case is to being purged.
type ArchiveBand string

const (
	BandSafe     ArchiveBand = "safe"
	BandWarning  ArchiveBand = "warning"
	BandCritical ArchiveBand = "critical"
)

const (
	warningBandDays  = 30
	criticalBandDays = 7
)

// BandFor maps remaining days to a band: above 30 safe, 8..30 warning, 0..7 critical.
func BandFor(daysRemaining int) ArchiveBand {
	switch {
	case daysRemaining > warningBandDays:
		return BandSafe
	case daysRemaining > criticalBandDays:
		return BandWarning
	default:
		return BandCritical
	}
}

// DaysRemaining is the retention countdown for a case deleted at deletedAt,
// counting whole elapsed days and never going below zero.
func DaysRemaining(deletedAt, now time.Time, retentionDays int) int {
	elapsed := now.Sub(deletedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := retentionDays - int(elapsed/(24*time.Hour))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ArchivedCaseView is an archived case with its computed countdown.
type ArchivedCaseView struct {
	Case
	DaysRemaining int         `json:"daysRemaining"`
	Band          ArchiveBand `json:"band"`
	PurgeEligible bool        `json:"purgeEligible"`
}

// NewArchivedCaseView computes countdown fields for an archived case.
func NewArchivedCaseView(c Case, retentionDays int, now time.Time) ArchivedCaseView {
	view := ArchivedCaseView{Case: c, DaysRemaining: retentionDays, Band: BandFor(retentionDays)}
	if c.DeletedAt != nil {
		view.DaysRemaining = DaysRemaining(*c.DeletedAt, now, retentionDays)
		view.Band = BandFor(view.DaysRemaining)
		view.PurgeEligible = !now.Before(c.DeletedAt.Add(RetentionWindow(retentionDays)))
	}
	return view
}

// RetentionWindow converts retention days into a duration.
func RetentionWindow(retentionDays int) time.Duration {
	return time.Duration(retentionDays) * 24 * time.Hour
}

// ArchiveFilter narrows archive listings.
type ArchiveFilter struct {
	SubjectType SubjectType
	Severity    CaseSeverity
}

// ArchiveStats aggregates archive counts for dashboards.
type ArchiveStats struct {
	Total         int       `db:"total" json:"total"`
	Safe          int       `db:"safe" json:"safe"`
	Warning       int       `db:"warning" json:"warning"`
	Critical      int       `db:"critical" json:"critical"`
	RetentionDays int       `db:"-" json:"retentionDays"`
	GeneratedAt   time.Time `db:"-" json:"generatedAt"`
}
