package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
	"github.com/unityaid/mobile-sync/internal/repository"
)

// listClauses renders the shared scope/since/limit tail of a snapshot query.
// scopeCol is the column the site scope applies to ("" disables scoping).
func listClauses(f repository.ListFilter, scopeCol string, args []any) (string, []any) {
	var b strings.Builder
	if scopeCol != "" && f.SiteIDs != nil {
		args = append(args, f.SiteIDs)
		fmt.Fprintf(&b, " AND %s = ANY($%d)", scopeCol, len(args))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		fmt.Fprintf(&b, " AND updated_at > $%d", len(args))
	}
	b.WriteString(" ORDER BY updated_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// SiteRepo implements SiteRepository using PostgreSQL.
type SiteRepo struct{ db *DB }

// NewSiteRepo constructs a site repository.
func NewSiteRepo(db *DB) *SiteRepo { return &SiteRepo{db: db} }

const siteCols = `id, name, name_ar, description, site_type, operational_status,
location, total_population, total_households, contact_person, contact_phone,
created_at, updated_at`

// List returns scoped sites, most recently updated first.
func (r *SiteRepo) List(ctx context.Context, f repository.ListFilter) ([]model.Site, error) {
	q := `SELECT ` + siteCols + ` FROM sites WHERE true`
	tail, args := listClauses(f, "id", nil)
	rows, err := r.db.Pool.Query(ctx, q+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Site
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.NameAr, &s.Description, &s.SiteType,
			&s.OperationalStatus, &s.Location, &s.TotalPopulation, &s.TotalHouseholds,
			&s.ContactPerson, &s.ContactPhone, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists one site. A plain single-row INSERT carries its own
// transaction, which is exactly the per-item isolation bulk upload needs.
func (r *SiteRepo) Create(ctx context.Context, s *model.Site) error {
	const q = `
INSERT INTO sites (id, name, name_ar, description, site_type, operational_status,
                   location, total_population, total_households, contact_person, contact_phone)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	name=EXCLUDED.name, name_ar=EXCLUDED.name_ar, description=EXCLUDED.description,
	site_type=EXCLUDED.site_type, operational_status=EXCLUDED.operational_status,
	location=EXCLUDED.location, total_population=EXCLUDED.total_population,
	total_households=EXCLUDED.total_households, contact_person=EXCLUDED.contact_person,
	contact_phone=EXCLUDED.contact_phone, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.Name, s.NameAr, s.Description, s.SiteType,
		s.OperationalStatus, s.Location, s.TotalPopulation, s.TotalHouseholds,
		s.ContactPerson, s.ContactPhone)
	return err
}

// Exists reports whether a site id resolves.
func (r *SiteRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sites WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

// AssessmentRepo implements AssessmentRepository using PostgreSQL.
type AssessmentRepo struct{ db *DB }

// NewAssessmentRepo constructs an assessment repository.
func NewAssessmentRepo(db *DB) *AssessmentRepo { return &AssessmentRepo{db: db} }

// ListAssigned returns active assessments assigned to the user.
func (r *AssessmentRepo) ListAssigned(ctx context.Context, userID uuid.UUID, f repository.ListFilter) ([]model.Assessment, error) {
	q := `
SELECT id, title, assessment_type, status, kobo_form_id, start_date, end_date,
       created_by, created_at, updated_at
FROM assessments
WHERE status='active' AND id IN (SELECT assessment_id FROM assessment_assignees WHERE user_id=$1)`
	tail, args := listClauses(f, "", []any{userID})
	rows, err := r.db.Pool.Query(ctx, q+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Title, &a.AssessmentType, &a.Status, &a.KoboFormID,
			&a.StartDate, &a.EndDate, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Exists reports whether an assessment id resolves.
func (r *AssessmentRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM assessments WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

// ResponseRepo implements ResponseRepository using PostgreSQL.
type ResponseRepo struct{ db *DB }

// NewResponseRepo constructs an assessment response repository.
func NewResponseRepo(db *DB) *ResponseRepo { return &ResponseRepo{db: db} }

// ListByRespondent returns the user's own responses.
func (r *ResponseRepo) ListByRespondent(ctx context.Context, userID uuid.UUID, f repository.ListFilter) ([]model.AssessmentResponse, error) {
	q := `
SELECT id, assessment_id, site_id, respondent_id, data, gps_location,
       is_submitted, submitted_at, created_at, updated_at
FROM assessment_responses
WHERE respondent_id=$1`
	tail, args := listClauses(f, "site_id", []any{userID})
	rows, err := r.db.Pool.Query(ctx, q+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssessmentResponse
	for rows.Next() {
		var resp model.AssessmentResponse
		if err := rows.Scan(&resp.ID, &resp.AssessmentID, &resp.SiteID, &resp.RespondentID,
			&resp.Data, &resp.GPSLocation, &resp.Submitted, &resp.SubmittedAt,
			&resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// Create persists one response in its own transaction. Last write wins on id.
func (r *ResponseRepo) Create(ctx context.Context, resp *model.AssessmentResponse) error {
	const q = `
INSERT INTO assessment_responses (id, assessment_id, site_id, respondent_id, data,
                                  gps_location, is_submitted, submitted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	data=EXCLUDED.data, gps_location=EXCLUDED.gps_location,
	is_submitted=EXCLUDED.is_submitted, submitted_at=EXCLUDED.submitted_at,
	updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, resp.ID, resp.AssessmentID, resp.SiteID, resp.RespondentID,
		resp.Data, resp.GPSLocation, resp.Submitted, resp.SubmittedAt)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: unresolvable reference", errs.ErrValidation)
	}
	return err
}

// ReportRepo implements ReportRepository using PostgreSQL.
type ReportRepo struct{ db *DB }

// NewReportRepo constructs a field report repository.
func NewReportRepo(db *DB) *ReportRepo { return &ReportRepo{db: db} }

// List returns scoped field reports, most recently updated first.
func (r *ReportRepo) List(ctx context.Context, f repository.ListFilter) ([]model.FieldReport, error) {
	q := `
SELECT id, site_id, reporter_id, title, text_content, report_type, priority, status,
       created_at, updated_at
FROM field_reports
WHERE true`
	tail, args := listClauses(f, "site_id", nil)
	rows, err := r.db.Pool.Query(ctx, q+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FieldReport
	for rows.Next() {
		var fr model.FieldReport
		if err := rows.Scan(&fr.ID, &fr.SiteID, &fr.ReporterID, &fr.Title, &fr.TextContent,
			&fr.ReportType, &fr.Priority, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// Create persists one report in its own transaction. Last write wins on id.
func (r *ReportRepo) Create(ctx context.Context, fr *model.FieldReport) error {
	const q = `
INSERT INTO field_reports (id, site_id, reporter_id, title, text_content, report_type, priority, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	title=EXCLUDED.title, text_content=EXCLUDED.text_content,
	report_type=EXCLUDED.report_type, priority=EXCLUDED.priority,
	status=EXCLUDED.status, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, fr.ID, fr.SiteID, fr.ReporterID, fr.Title,
		fr.TextContent, fr.ReportType, fr.Priority, fr.Status)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: unresolvable reference", errs.ErrValidation)
	}
	return err
}
