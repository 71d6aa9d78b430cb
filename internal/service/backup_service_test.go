package service

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/storage"
)

func newBackupFixture(t *testing.T) (*BackupService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewBackupService(store, nil)
	svc.now = fixedClock(time.Date(2024, 5, 12, 3, 0, 0, 0, time.UTC))
	return svc, store
}

func archivedCase() *models.Case {
	deletedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	by := "officer-1"
	return &models.Case{
		ID:               "5f0c6c1e-0000-4000-8000-000000000001",
		Severity:         models.SeverityMajor,
		SubjectType:      models.SubjectFaculty,
		SubjectFirstName: "Maria",
		SubjectLastName:  "Santos",
		Description:      "Unexcused absence",
		IsDeleted:        true,
		DeletedAt:        &deletedAt,
		DeletedBy:        &by,
	}
}

func TestBackupServiceExportWritesVerifiedArtifact(t *testing.T) {
	svc, store := newBackupFixture(t)
	c := archivedCase()
	attachments := []models.Attachment{{ID: "a1", CaseID: c.ID, Filename: "memo.pdf", SizeBytes: 42, SHA256: "abc"}}

	name, err := svc.Export(c, attachments, models.PurgeScheduled, models.SystemActorID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "cases/2024/05/case_"+c.ID+"_20240512T030000.000Z_"), name)
	assert.True(t, strings.HasSuffix(name, ".json"))

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	raw, err := io.ReadAll(file)
	require.NoError(t, err)

	var backup models.CaseBackup
	require.NoError(t, json.Unmarshal(raw, &backup))
	assert.Equal(t, models.BackupSchemaVersion, backup.SchemaVersion)
	assert.Equal(t, models.BackupEntityCase, backup.Entity)
	assert.Equal(t, c.ID, backup.Case.ID)
	assert.Equal(t, "Unexcused absence", backup.Case.Description)
	assert.Equal(t, "officer-1", *backup.DeletedBy)
	assert.Equal(t, models.SystemActorID, backup.PurgedBy)
	require.Len(t, backup.Attachments, 1)
	assert.Equal(t, "memo.pdf", backup.Attachments[0].Filename)

	artifacts, err := svc.List("", officer)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, name, artifacts[0].Name)
	assert.Equal(t, int64(len(raw)), artifacts[0].SizeBytes)
}

func TestBackupServiceRetriesNameCollision(t *testing.T) {
	svc, _ := newBackupFixture(t)
	suffixes := []string{"same", "same", "fresh"}
	svc.suffix = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}
	c := archivedCase()

	first, err := svc.Export(c, nil, models.PurgeManual, "officer-1")
	require.NoError(t, err)
	second, err := svc.Export(c, nil, models.PurgeManual, "officer-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "_fresh.json"))
}

type brokenBackupStorage struct {
	saveErr error
	size    int64
}

func (b *brokenBackupStorage) SaveExclusive(filename string, data []byte) (string, error) {
	if b.saveErr != nil {
		return "", b.saveErr
	}
	return filename, nil
}

func (b *brokenBackupStorage) Stat(filename string) (*storage.FileInfo, error) {
	return &storage.FileInfo{Name: filename, SizeBytes: b.size}, nil
}

func (b *brokenBackupStorage) List(dir string) ([]storage.FileInfo, error) {
	return nil, nil
}

func TestBackupServiceExportFailsClosed(t *testing.T) {
	svc := NewBackupService(&brokenBackupStorage{saveErr: errors.New("no space left on device")}, nil)
	_, err := svc.Export(archivedCase(), nil, models.PurgeScheduled, models.SystemActorID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportFailure.Code, appErrors.FromError(err).Code)

	svc = NewBackupService(&brokenBackupStorage{size: 0}, nil)
	_, err = svc.Export(archivedCase(), nil, models.PurgeScheduled, models.SystemActorID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportFailure.Code, appErrors.FromError(err).Code)

	_, err = NewBackupService(nil, nil).Export(archivedCase(), nil, models.PurgeScheduled, models.SystemActorID)
	assert.Equal(t, appErrors.ErrExportFailure.Code, appErrors.FromError(err).Code)
}

func TestBackupServiceListRules(t *testing.T) {
	svc, _ := newBackupFixture(t)

	_, err := svc.List("cases", committee)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.List("users", officer)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	artifacts, err := svc.List("cases", officer)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}
