package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	sev, err := ParseCaseSeverity(" Major ")
	require.NoError(t, err)
	require.Equal(t, SeverityMajor, sev)
	_, err = ParseCaseSeverity("severe")
	require.Error(t, err)

	st, err := ParseSubjectType("FACULTY")
	require.NoError(t, err)
	require.Equal(t, SubjectFaculty, st)
	st, err = ParseSubjectType("")
	require.NoError(t, err)
	require.Empty(t, st)
	_, err = ParseSubjectType("parent")
	require.Error(t, err)

	entity, err := ParseBackupEntity("")
	require.NoError(t, err)
	require.Equal(t, BackupEntityCase, entity)
	_, err = ParseBackupEntity("users; DROP TABLE cases")
	require.Error(t, err)
}

func TestParseSearchFields(t *testing.T) {
	fields, err := ParseSearchFields([]string{"name", "Offense", "name"})
	require.NoError(t, err)
	require.Equal(t, []SearchField{SearchByName, SearchByOffense}, fields)

	fields, err = ParseSearchFields(nil)
	require.NoError(t, err)
	require.Equal(t, []SearchField{SearchByName}, fields)

	_, err = ParseSearchFields([]string{"password_hash"})
	require.Error(t, err)
}

func TestCaseLifecycleConsistency(t *testing.T) {
	now := time.Now()
	actor := "admin-1"
	c := Case{}
	require.True(t, c.LifecycleConsistent())
	require.Equal(t, StateActive, c.State())

	c.IsDeleted = true
	require.False(t, c.LifecycleConsistent())
	c.DeletedAt = &now
	c.DeletedBy = &actor
	require.True(t, c.LifecycleConsistent())
	require.Equal(t, StateArchived, c.State())
}

func TestCaseFilterOffset(t *testing.T) {
	require.Equal(t, 0, CaseFilter{Page: 1, PageSize: 50}.Offset())
	require.Equal(t, 0, CaseFilter{Page: 0, PageSize: 50}.Offset())
	require.Equal(t, 100, CaseFilter{Page: 3, PageSize: 50}.Offset())
	require.Equal(t, math.MaxInt, CaseFilter{Page: 200000000000000000, PageSize: 50}.Offset())
}

func TestDaysRemainingAndBands(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		age      time.Duration
		days     int
		band     ArchiveBand
		eligible bool
	}{
		{0, 60, BandSafe, false},
		{29*24*time.Hour + time.Hour, 31, BandSafe, false},
		{30 * 24 * time.Hour, 30, BandWarning, false},
		{52 * 24 * time.Hour, 8, BandWarning, false},
		{53 * 24 * time.Hour, 7, BandCritical, false},
		{59*24*time.Hour + 23*time.Hour, 1, BandCritical, false},
		{60 * 24 * time.Hour, 0, BandCritical, true},
		{90 * 24 * time.Hour, 0, BandCritical, true},
	}
	for _, tc := range cases {
		deletedAt := now.Add(-tc.age)
		actor := "admin-1"
		view := NewArchivedCaseView(Case{IsDeleted: true, DeletedAt: &deletedAt, DeletedBy: &actor}, 60, now)
		require.Equal(t, tc.days, view.DaysRemaining, "age %s", tc.age)
		require.Equal(t, tc.band, view.Band, "age %s", tc.age)
		require.Equal(t, tc.eligible, view.PurgeEligible, "age %s", tc.age)
	}
}
