package models

import (
	"fmt"
	"strings"
	"time"
)

// PurgeMode tells scheduled and manual purges apart in artifacts and audits.
type PurgeMode string

const (
	PurgeScheduled PurgeMode = "scheduled"
	PurgeManual    PurgeMode = "manual"
)

// PurgeFailure describes one case the purge could not remove.
type PurgeFailure struct {
	CaseID string `json:"caseId"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// PurgeReport summarises a scheduled purge run. Skipped counts cases that left
// the eligible set between selection and lock (restored or re-archived). A dry
// run only counts eligible cases in Count.
type PurgeReport struct {
	DryRun     bool           `json:"dryRun"`
	Count      int            `json:"count"`
	Errors     int            `json:"errors"`
	Skipped    int            `json:"skipped"`
	Failures   []PurgeFailure `json:"failures,omitempty"`
	Artifacts  []string       `json:"artifacts,omitempty"`
	Cutoff     time.Time      `json:"cutoff"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// BackupEntity is the closed set of record kinds that may be exported.
type BackupEntity string

const (
	BackupEntityCase BackupEntity = "cases"
)

// ParseBackupEntity validates an entity name. Empty input selects cases.
func ParseBackupEntity(raw string) (BackupEntity, error) {
	switch e := BackupEntity(strings.ToLower(strings.TrimSpace(raw))); e {
	case "":
		return BackupEntityCase, nil
	case BackupEntityCase:
		return e, nil
	default:
		return "", fmt.Errorf("unknown backup entity %q", raw)
	}
}

// BackupSchemaVersion is bumped whenever CaseBackup changes shape.
const BackupSchemaVersion = 1

// CaseBackup is the content of a backup artifact written before a case is purged.
type CaseBackup struct {
	SchemaVersion int          `json:"schemaVersion"`
	Entity        BackupEntity `json:"entity"`
	Mode          PurgeMode    `json:"mode"`
	Case          Case         `json:"case"`
	Attachments   []Attachment `json:"attachments"`
	DeletedAt     *time.Time   `json:"deletedAt"`
	DeletedBy     *string      `json:"deletedBy"`
	PurgedAt      time.Time    `json:"purgedAt"`
	PurgedBy      string       `json:"purgedBy"`
}

// BackupArtifact references a written backup file.
type BackupArtifact struct {
	Entity     BackupEntity `json:"entity"`
	Name       string       `json:"name"`
	SizeBytes  int64        `json:"sizeBytes"`
	ModifiedAt time.Time    `json:"modifiedAt"`
}
