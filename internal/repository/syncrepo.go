package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/model"
)

// SyncLogRepository appends and finalizes sync audit rows.
type SyncLogRepository interface {
	// Create inserts a pending row and returns its id.
	Create(ctx context.Context, userID uuid.UUID, deviceID string, syncType model.SyncType) (uuid.UUID, error)
	// Start transitions pending -> in_progress.
	Start(ctx context.Context, id uuid.UUID) error
	// Finish records the terminal status, counters and completion time.
	Finish(ctx context.Context, id uuid.UUID, status model.SyncStatus, total, processed, failed int, errMsg string) error
	// ListByUser returns a user's sync history, most recent first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.SyncLog, error)
}

// ListFilter bounds a snapshot query: optional site scope (nil = unrestricted),
// optional delta cutoff, and a record cap. Results are ordered most recently
// updated first.
type ListFilter struct {
	SiteIDs []uuid.UUID
	Since   *time.Time
	Limit   int
}

// SiteRepository reads and writes gathering site records.
type SiteRepository interface {
	List(ctx context.Context, f ListFilter) ([]model.Site, error)
	// Create persists one site in its own transaction. Last write wins.
	Create(ctx context.Context, s *model.Site) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AssessmentRepository reads assessment campaigns (read-only in this subsystem).
type AssessmentRepository interface {
	// ListAssigned returns assessments assigned to the user, bounded by f.
	ListAssigned(ctx context.Context, userID uuid.UUID, f ListFilter) ([]model.Assessment, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ResponseRepository stores uploaded assessment responses.
type ResponseRepository interface {
	ListByRespondent(ctx context.Context, userID uuid.UUID, f ListFilter) ([]model.AssessmentResponse, error)
	// Create persists one response in its own transaction.
	Create(ctx context.Context, r *model.AssessmentResponse) error
}

// ReportRepository stores uploaded field reports.
type ReportRepository interface {
	List(ctx context.Context, f ListFilter) ([]model.FieldReport, error)
	// Create persists one report in its own transaction.
	Create(ctx context.Context, r *model.FieldReport) error
}
