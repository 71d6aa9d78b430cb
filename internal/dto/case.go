package dto

import (
	"time"

	"github.com/noah-isme/watch-api/internal/models"
)

// CreateCaseRequest is the payload for filing a new case.
type CreateCaseRequest struct {
	Severity         string     `json:"severity" validate:"required,oneof=minor major"`
	SubjectType      string     `json:"subjectType" validate:"required,oneof=student faculty staff"`
	SubjectFirstName string     `json:"subjectFirstName" validate:"required,max=100"`
	SubjectLastName  string     `json:"subjectLastName" validate:"required,max=100"`
	ProgramOrDept    string     `json:"programOrDept" validate:"required,max=150"`
	Section          *string    `json:"section" validate:"omitempty,max=50"`
	OffenseCategory  string     `json:"offenseCategory" validate:"required,max=100"`
	OffenseType      string     `json:"offenseType" validate:"required,max=150"`
	Description      string     `json:"description" validate:"required"`
	DateReported     *time.Time `json:"dateReported"`
	Remarks          *string    `json:"remarks"`
}

// ListCasesQuery carries query parameters for active case listings.
type ListCasesQuery struct {
	Type     string `form:"type"`
	Severity string `form:"severity"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Search   string `form:"search"`
}

// CaseListResult is one page of active cases.
type CaseListResult struct {
	Items      []models.Case
	Pagination models.Pagination
}

// PurgeCaseRequest guards manual purges. ConfirmCaseID must repeat the path id.
type PurgeCaseRequest struct {
	Confirm       bool   `json:"confirm" form:"confirm"`
	ConfirmCaseID string `json:"confirmCaseId" form:"confirmCaseId"`
}

// LifecycleResponse acknowledges a delete, restore or purge.
type LifecycleResponse struct {
	ID       string                `json:"id"`
	State    models.LifecycleState `json:"state"`
	Artifact string                `json:"artifact,omitempty"`
	Message  string                `json:"message"`
}

// CronPurgeResponse is the summary returned to the external purge trigger.
type CronPurgeResponse struct {
	Success  bool                  `json:"success"`
	Count    int                   `json:"count"`
	Errors   int                   `json:"errors"`
	Skipped  int                   `json:"skipped"`
	DryRun   bool                  `json:"dryRun,omitempty"`
	Message  string                `json:"message"`
	Failures []models.PurgeFailure `json:"failures,omitempty"`
}
