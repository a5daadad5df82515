package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/cache"
	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
	"github.com/unityaid/mobile-sync/internal/repository"
	"github.com/unityaid/mobile-sync/internal/scope"
)

// Record type names accepted in sync requests.
const (
	TypeSites       = "sites"
	TypeAssessments = "assessments"
	TypeResponses   = "assessment_responses"
	TypeReports     = "field_reports"
)

// SyncLimits bounds snapshot and upload sizes to keep mobile payloads small.
// Caps trade completeness for payload size; huge datasets are paged by the
// client re-syncing, not by this engine.
type SyncLimits struct {
	MaxSites       int
	MaxAssessments int
	MaxReports     int
	MaxUploadItems int
}

// DefaultSyncLimits mirror the limits the mobile clients were built around.
func DefaultSyncLimits() SyncLimits {
	return SyncLimits{MaxSites: 100, MaxAssessments: 50, MaxReports: 100, MaxUploadItems: 100}
}

// SyncEngine orchestrates snapshots and bulk uploads for field devices.
type SyncEngine interface {
	// InitialSync returns a capped, role-scoped snapshot of the requested types.
	InitialSync(ctx context.Context, user *model.User, deviceID string, types []string) (*model.SyncSnapshot, error)
	// IncrementalSync returns records updated strictly after since.
	IncrementalSync(ctx context.Context, user *model.User, deviceID, since string, types []string) (*model.SyncSnapshot, error)
	// BulkUpload persists offline-collected records with per-item isolation.
	BulkUpload(ctx context.Context, user *model.User, deviceID, dataType string, items []json.RawMessage) (*model.BulkResult, error)
	// History lists the user's sync audit trail, newest first.
	History(ctx context.Context, user *model.User, limit int) ([]model.SyncLog, error)
}

type SyncEngineImpl struct {
	logs        repository.SyncLogRepository
	sites       repository.SiteRepository
	assessments repository.AssessmentRepository
	responses   repository.ResponseRepository
	reports     repository.ReportRepository
	invalidator cache.Invalidator
	limits      SyncLimits
}

// NewSyncEngine constructs a SyncEngine over the record repositories.
func NewSyncEngine(
	logs repository.SyncLogRepository,
	sites repository.SiteRepository,
	assessments repository.AssessmentRepository,
	responses repository.ResponseRepository,
	reports repository.ReportRepository,
	invalidator cache.Invalidator,
	limits SyncLimits,
) *SyncEngineImpl {
	if limits.MaxUploadItems <= 0 {
		limits = DefaultSyncLimits()
	}
	return &SyncEngineImpl{
		logs: logs, sites: sites, assessments: assessments,
		responses: responses, reports: reports,
		invalidator: invalidator, limits: limits,
	}
}

// InitialSync builds a full snapshot bounded by the per-type caps.
func (s *SyncEngineImpl) InitialSync(ctx context.Context, user *model.User, deviceID string, types []string) (*model.SyncSnapshot, error) {
	return s.snapshot(ctx, user, deviceID, model.SyncInitial, nil, types)
}

// IncrementalSync builds a delta snapshot of records updated after since.
// since must be RFC 3339.
func (s *SyncEngineImpl) IncrementalSync(ctx context.Context, user *model.User, deviceID, since string, types []string) (*model.SyncSnapshot, error) {
	if since == "" {
		return nil, fmt.Errorf("%w: last_sync_date required", errs.ErrValidation)
	}
	cutoff, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable last_sync_date %q", errs.ErrValidation, since)
	}
	return s.snapshot(ctx, user, deviceID, model.SyncIncremental, &cutoff, types)
}

func normalizeTypes(types []string) ([]string, error) {
	if len(types) == 0 {
		return []string{TypeSites, TypeAssessments, TypeReports}, nil
	}
	for _, t := range types {
		switch t {
		case TypeSites, TypeAssessments, TypeResponses, TypeReports:
		default:
			return nil, fmt.Errorf("%w: unknown data type %q", errs.ErrValidation, t)
		}
	}
	return types, nil
}

// snapshot is the shared initial/incremental path: pending -> in_progress
// audit row, scoped capped reads per type, then a terminal audit update. On
// any read error the log is finalized as failed and no partial snapshot is
// returned.
func (s *SyncEngineImpl) snapshot(ctx context.Context, user *model.User, deviceID string, syncType model.SyncType, since *time.Time, types []string) (*model.SyncSnapshot, error) {
	types, err := normalizeTypes(types)
	if err != nil {
		return nil, err
	}

	logID, err := s.logs.Create(ctx, user.ID, deviceID, syncType)
	if err != nil {
		return nil, fmt.Errorf("sync log: %w", err)
	}
	if err := s.logs.Start(ctx, logID); err != nil {
		return nil, fmt.Errorf("sync log: %w", err)
	}

	snap, total, err := s.collect(ctx, user, since, types)
	if err != nil {
		_ = s.logs.Finish(ctx, logID, model.SyncFailed, 0, 0, 0, err.Error())
		return nil, err
	}

	snap.Metadata = model.SyncMetadata{
		SyncID:      logID,
		Timestamp:   time.Now().UTC(),
		DataVersion: s.invalidator.DataVersion(types...),
	}
	if err := s.logs.Finish(ctx, logID, model.SyncCompleted, total, total, 0, ""); err != nil {
		return nil, fmt.Errorf("sync log: %w", err)
	}
	return snap, nil
}

func (s *SyncEngineImpl) collect(ctx context.Context, user *model.User, since *time.Time, types []string) (*model.SyncSnapshot, int, error) {
	sc := scope.AccessibleSiteIDs(user)
	snap := &model.SyncSnapshot{}
	total := 0

	for _, t := range types {
		switch t {
		case TypeSites:
			if sc.Empty() {
				snap.Sites = []model.Site{}
				continue
			}
			recs, err := s.sites.List(ctx, repository.ListFilter{SiteIDs: sc.IDs(), Since: since, Limit: s.limits.MaxSites})
			if err != nil {
				return nil, 0, fmt.Errorf("sites: %w", err)
			}
			snap.Sites = recs
			total += len(recs)
		case TypeAssessments:
			recs, err := s.assessments.ListAssigned(ctx, user.ID, repository.ListFilter{Since: since, Limit: s.limits.MaxAssessments})
			if err != nil {
				return nil, 0, fmt.Errorf("assessments: %w", err)
			}
			snap.Assessments = recs
			total += len(recs)
		case TypeResponses:
			recs, err := s.responses.ListByRespondent(ctx, user.ID, repository.ListFilter{Since: since, Limit: s.limits.MaxReports})
			if err != nil {
				return nil, 0, fmt.Errorf("responses: %w", err)
			}
			snap.Responses = recs
			total += len(recs)
		case TypeReports:
			if sc.Empty() {
				snap.Reports = []model.FieldReport{}
				continue
			}
			recs, err := s.reports.List(ctx, repository.ListFilter{SiteIDs: sc.IDs(), Since: since, Limit: s.limits.MaxReports})
			if err != nil {
				return nil, 0, fmt.Errorf("reports: %w", err)
			}
			snap.Reports = recs
			total += len(recs)
		}
	}
	return snap, total, nil
}

// BulkUpload persists each item independently: one repo call (one implicit
// transaction) per item, so one bad record never poisons the batch. Errors
// are keyed by the client temp id; successes are reported through the
// temp id -> real id map.
func (s *SyncEngineImpl) BulkUpload(ctx context.Context, user *model.User, deviceID, dataType string, items []json.RawMessage) (*model.BulkResult, error) {
	switch dataType {
	case TypeSites, TypeResponses, TypeReports:
	default:
		return nil, fmt.Errorf("%w: data_type must be one of sites, assessment_responses, field_reports", errs.ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty items", errs.ErrValidation)
	}
	if len(items) > s.limits.MaxUploadItems {
		return nil, fmt.Errorf("%w: %d items over limit %d", errs.ErrPayloadTooLarge, len(items), s.limits.MaxUploadItems)
	}

	logID, err := s.logs.Create(ctx, user.ID, deviceID, model.SyncUpload)
	if err != nil {
		return nil, fmt.Errorf("sync log: %w", err)
	}
	if err := s.logs.Start(ctx, logID); err != nil {
		return nil, fmt.Errorf("sync log: %w", err)
	}

	res := &model.BulkResult{
		SyncID:    logID,
		Errors:    []model.ItemError{},
		TempIDMap: map[string]string{},
	}
	for i, raw := range items {
		tempID, realID, err := s.uploadOne(ctx, user, dataType, raw)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, model.ItemError{TempID: tempID, Index: i, Reason: err.Error()})
			continue
		}
		res.Processed++
		if tempID != "" {
			res.TempIDMap[tempID] = realID.String()
		}
	}

	status := model.SyncCompleted
	switch {
	case res.Failed > 0 && res.Processed > 0:
		status = model.SyncPartial
	case res.Failed > 0:
		status = model.SyncFailed
	}
	if err := s.logs.Finish(ctx, logID, status, len(items), res.Processed, res.Failed, ""); err != nil {
		return nil, fmt.Errorf("sync log: %w", err)
	}
	if res.Processed > 0 {
		s.invalidator.InvalidateType(dataType)
		s.invalidator.InvalidateUser(user.ID)
	}
	return res, nil
}

// uploadOne validates and persists a single record. Last write wins on id.
func (s *SyncEngineImpl) uploadOne(ctx context.Context, user *model.User, dataType string, raw json.RawMessage) (tempID string, realID uuid.UUID, err error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", uuid.Nil, err
	}

	switch dataType {
	case TypeSites:
		var up siteUpload
		if err := json.Unmarshal(raw, &up); err != nil {
			return "", uuid.Nil, fmt.Errorf("malformed item: %v", err)
		}
		if err := up.validate(); err != nil {
			return up.TempID, uuid.Nil, err
		}
		status := up.OperationalStatus
		if status == "" {
			status = "active"
		}
		site := &model.Site{
			ID: id, Name: up.Name, NameAr: up.NameAr, Description: up.Description,
			SiteType: up.SiteType, OperationalStatus: status, Location: up.Location,
			TotalPopulation: up.TotalPopulation, TotalHouseholds: up.TotalHouseholds,
			ContactPerson: up.ContactPerson, ContactPhone: up.ContactPhone,
		}
		if err := s.sites.Create(ctx, site); err != nil {
			return up.TempID, uuid.Nil, err
		}
		return up.TempID, id, nil

	case TypeResponses:
		var up responseUpload
		if err := json.Unmarshal(raw, &up); err != nil {
			return "", uuid.Nil, fmt.Errorf("malformed item: %v", err)
		}
		if err := up.validate(); err != nil {
			return up.TempID, uuid.Nil, err
		}
		assessmentID, siteID, err := s.resolveResponseRefs(ctx, &up)
		if err != nil {
			return up.TempID, uuid.Nil, err
		}
		resp := &model.AssessmentResponse{
			ID: id, AssessmentID: assessmentID, SiteID: siteID, RespondentID: user.ID,
			Data: up.Data, GPSLocation: up.GPSLocation, Submitted: up.Submitted,
		}
		if up.Submitted {
			now := time.Now().UTC()
			resp.SubmittedAt = &now
		}
		if err := s.responses.Create(ctx, resp); err != nil {
			return up.TempID, uuid.Nil, err
		}
		return up.TempID, id, nil

	default: // TypeReports
		var up reportUpload
		if err := json.Unmarshal(raw, &up); err != nil {
			return "", uuid.Nil, fmt.Errorf("malformed item: %v", err)
		}
		if err := up.validate(); err != nil {
			return up.TempID, uuid.Nil, err
		}
		siteID, err := s.resolveSiteRef(ctx, up.SiteID)
		if err != nil {
			return up.TempID, uuid.Nil, err
		}
		reportType := up.ReportType
		if reportType == "" {
			reportType = "text"
		}
		priority := up.Priority
		if priority == "" {
			priority = "medium"
		}
		report := &model.FieldReport{
			ID: id, SiteID: siteID, ReporterID: user.ID, Title: up.Title,
			TextContent: up.TextContent, ReportType: reportType, Priority: priority,
			Status: "pending",
		}
		if err := s.reports.Create(ctx, report); err != nil {
			return up.TempID, uuid.Nil, err
		}
		return up.TempID, id, nil
	}
}

func (s *SyncEngineImpl) resolveSiteRef(ctx context.Context, ref string) (uuid.UUID, error) {
	id, err := uuid.FromString(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("site: not a valid id")
	}
	ok, err := s.sites.Exists(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("site: unknown reference %s", ref)
	}
	return id, nil
}

func (s *SyncEngineImpl) resolveResponseRefs(ctx context.Context, up *responseUpload) (assessmentID, siteID uuid.UUID, err error) {
	assessmentID, err = uuid.FromString(up.AssessmentID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("assessment: not a valid id")
	}
	ok, err := s.assessments.Exists(ctx, assessmentID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("assessment: unknown reference %s", up.AssessmentID)
	}
	siteID, err = s.resolveSiteRef(ctx, up.SiteID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return assessmentID, siteID, nil
}

// History exposes the read-only sync audit trail.
func (s *SyncEngineImpl) History(ctx context.Context, user *model.User, limit int) ([]model.SyncLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	logs, err := s.logs.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.SyncLog{}
	}
	return logs, nil
}
