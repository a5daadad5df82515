package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/cache"
	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
	"github.com/unityaid/mobile-sync/internal/repository"
)

type fakeSyncLogs struct {
	logs map[uuid.UUID]*model.SyncLog

	createErr error
}

var _ repository.SyncLogRepository = (*fakeSyncLogs)(nil)

func (f *fakeSyncLogs) Create(_ context.Context, userID uuid.UUID, deviceID string, syncType model.SyncType) (uuid.UUID, error) {
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	if f.logs == nil {
		f.logs = map[uuid.UUID]*model.SyncLog{}
	}
	id := uuid.Must(uuid.NewV4())
	f.logs[id] = &model.SyncLog{
		ID: id, UserID: userID, DeviceID: deviceID,
		SyncType: syncType, Status: model.SyncPending, StartedAt: time.Now(),
	}
	return id, nil
}
func (f *fakeSyncLogs) Start(_ context.Context, id uuid.UUID) error {
	l, ok := f.logs[id]
	if !ok || l.Status != model.SyncPending {
		return errs.ErrNotFound
	}
	l.Status = model.SyncInProgress
	return nil
}
func (f *fakeSyncLogs) Finish(_ context.Context, id uuid.UUID, status model.SyncStatus, total, processed, failed int, errMsg string) error {
	l, ok := f.logs[id]
	if !ok || l.Status != model.SyncInProgress {
		return errs.ErrNotFound
	}
	now := time.Now()
	l.Status, l.TotalItems, l.ProcessedItems, l.FailedItems = status, total, processed, failed
	l.ErrorMessage, l.CompletedAt = errMsg, &now
	return nil
}
func (f *fakeSyncLogs) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]model.SyncLog, error) {
	var out []model.SyncLog
	for _, l := range f.logs {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSyncLogs) byType(syncType model.SyncType) *model.SyncLog {
	for _, l := range f.logs {
		if l.SyncType == syncType {
			return l
		}
	}
	return nil
}

type fakeSites struct {
	sites   []model.Site
	listErr error

	created    []*model.Site
	createErrs map[string]error // keyed by site name
}

var _ repository.SiteRepository = (*fakeSites)(nil)

func (f *fakeSites) List(_ context.Context, fl repository.ListFilter) ([]model.Site, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.sites
	if fl.SiteIDs != nil {
		allowed := map[uuid.UUID]bool{}
		for _, id := range fl.SiteIDs {
			allowed[id] = true
		}
		var scoped []model.Site
		for _, s := range out {
			if allowed[s.ID] {
				scoped = append(scoped, s)
			}
		}
		out = scoped
	}
	if fl.Since != nil {
		var fresh []model.Site
		for _, s := range out {
			if s.UpdatedAt.After(*fl.Since) {
				fresh = append(fresh, s)
			}
		}
		out = fresh
	}
	if fl.Limit > 0 && len(out) > fl.Limit {
		out = out[:fl.Limit]
	}
	return out, nil
}
func (f *fakeSites) Create(_ context.Context, s *model.Site) error {
	if err := f.createErrs[s.Name]; err != nil {
		return err
	}
	c := *s
	f.created = append(f.created, &c)
	return nil
}
func (f *fakeSites) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	for _, s := range f.sites {
		if s.ID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeAssessments struct {
	assigned []model.Assessment
}

var _ repository.AssessmentRepository = (*fakeAssessments)(nil)

func (f *fakeAssessments) ListAssigned(_ context.Context, _ uuid.UUID, fl repository.ListFilter) ([]model.Assessment, error) {
	out := f.assigned
	if fl.Limit > 0 && len(out) > fl.Limit {
		out = out[:fl.Limit]
	}
	return out, nil
}
func (f *fakeAssessments) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	for _, a := range f.assigned {
		if a.ID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeResponses struct {
	created []*model.AssessmentResponse
}

var _ repository.ResponseRepository = (*fakeResponses)(nil)

func (f *fakeResponses) ListByRespondent(context.Context, uuid.UUID, repository.ListFilter) ([]model.AssessmentResponse, error) {
	return nil, nil
}
func (f *fakeResponses) Create(_ context.Context, r *model.AssessmentResponse) error {
	c := *r
	f.created = append(f.created, &c)
	return nil
}

type fakeReports struct {
	reports []model.FieldReport
	created []*model.FieldReport
}

var _ repository.ReportRepository = (*fakeReports)(nil)

func (f *fakeReports) List(_ context.Context, fl repository.ListFilter) ([]model.FieldReport, error) {
	out := f.reports
	if fl.Limit > 0 && len(out) > fl.Limit {
		out = out[:fl.Limit]
	}
	return out, nil
}
func (f *fakeReports) Create(_ context.Context, r *model.FieldReport) error {
	c := *r
	f.created = append(f.created, &c)
	return nil
}

type engineFixture struct {
	logs        *fakeSyncLogs
	sites       *fakeSites
	assessments *fakeAssessments
	responses   *fakeResponses
	reports     *fakeReports
	engine      *SyncEngineImpl
}

func newEngine() *engineFixture {
	f := &engineFixture{
		logs:        &fakeSyncLogs{},
		sites:       &fakeSites{},
		assessments: &fakeAssessments{},
		responses:   &fakeResponses{},
		reports:     &fakeReports{},
	}
	f.engine = NewSyncEngine(f.logs, f.sites, f.assessments, f.responses, f.reports,
		cache.NewMemory(), SyncLimits{MaxSites: 3, MaxAssessments: 2, MaxReports: 3, MaxUploadItems: 4})
	return f
}

func adminUser() *model.User {
	return &model.User{ID: uuid.Must(uuid.NewV4()), Role: model.RoleAdmin, Active: true}
}

func makeSites(n int) []model.Site {
	out := make([]model.Site, n)
	now := time.Now()
	for i := range out {
		out[i] = model.Site{
			ID: uuid.Must(uuid.NewV4()), Name: fmt.Sprintf("site-%d", i),
			SiteType: "gathering_site", OperationalStatus: "active",
			UpdatedAt: now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestSyncEngine_InitialSync_CapsAndAudit(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.sites = makeSites(5)
	ctx := context.Background()

	snap, err := f.engine.InitialSync(ctx, adminUser(), "dev-1", []string{TypeSites})
	if err != nil {
		t.Fatalf("InitialSync: %v", err)
	}
	if len(snap.Sites) != 3 {
		t.Fatalf("cap not applied: got %d sites", len(snap.Sites))
	}
	if snap.Metadata.SyncID == uuid.Nil || snap.Metadata.DataVersion == "" {
		t.Fatalf("metadata not populated: %+v", snap.Metadata)
	}
	l := f.logs.byType(model.SyncInitial)
	if l == nil || l.Status != model.SyncCompleted {
		t.Fatalf("audit row not completed: %+v", l)
	}
}

// Two identical requests against unchanged data yield the same records.
func TestSyncEngine_InitialSync_Deterministic(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.sites = makeSites(2)
	ctx := context.Background()
	u := adminUser()

	a, err := f.engine.InitialSync(ctx, u, "dev-1", []string{TypeSites})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := f.engine.InitialSync(ctx, u, "dev-1", []string{TypeSites})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(a.Sites) != len(b.Sites) || a.Sites[0].ID != b.Sites[0].ID {
		t.Fatalf("snapshots differ for unchanged data")
	}
}

func TestSyncEngine_InitialSync_UnknownType(t *testing.T) {
	t.Parallel()
	f := newEngine()
	_, err := f.engine.InitialSync(context.Background(), adminUser(), "dev-1", []string{"gadgets"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

// Roles with no site grants get an empty, well-formed snapshot.
func TestSyncEngine_InitialSync_ScopedRoleEmpty(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.sites = makeSites(2)
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Role: model.RoleNGOUser, Active: true}

	snap, err := f.engine.InitialSync(context.Background(), u, "dev-1", []string{TypeSites, TypeReports})
	if err != nil {
		t.Fatalf("InitialSync: %v", err)
	}
	if len(snap.Sites) != 0 || len(snap.Reports) != 0 {
		t.Fatalf("ngo_user must see nothing, got %d sites %d reports", len(snap.Sites), len(snap.Reports))
	}
}

func TestSyncEngine_InitialSync_SiteOfficialScope(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.sites = makeSites(3)
	granted := f.sites.sites[1].ID
	u := &model.User{
		ID: uuid.Must(uuid.NewV4()), Role: model.RoleSiteOfficial, Active: true,
		AssignedSiteIDs: []uuid.UUID{granted},
	}

	snap, err := f.engine.InitialSync(context.Background(), u, "dev-1", []string{TypeSites})
	if err != nil {
		t.Fatalf("InitialSync: %v", err)
	}
	if len(snap.Sites) != 1 || snap.Sites[0].ID != granted {
		t.Fatalf("want only the granted site, got %d", len(snap.Sites))
	}
}

func TestSyncEngine_InitialSync_ReadFailureFinalizesFailed(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.listErr = errors.New("db down")

	_, err := f.engine.InitialSync(context.Background(), adminUser(), "dev-1", []string{TypeSites})
	if err == nil {
		t.Fatalf("want error")
	}
	l := f.logs.byType(model.SyncInitial)
	if l == nil || l.Status != model.SyncFailed || l.ErrorMessage == "" {
		t.Fatalf("audit row not failed: %+v", l)
	}
}

func TestSyncEngine_IncrementalSync_SinceHandling(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.sites = makeSites(3)
	ctx := context.Background()
	u := adminUser()

	if _, err := f.engine.IncrementalSync(ctx, u, "dev-1", "", []string{TypeSites}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("missing since: want ErrValidation, got %v", err)
	}
	if _, err := f.engine.IncrementalSync(ctx, u, "dev-1", "yesterday", []string{TypeSites}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("garbage since: want ErrValidation, got %v", err)
	}

	// cutoff between site updates: only fresher records come back
	cutoff := time.Now().Add(-90 * time.Second).Format(time.RFC3339)
	snap, err := f.engine.IncrementalSync(ctx, u, "dev-1", cutoff, []string{TypeSites})
	if err != nil {
		t.Fatalf("IncrementalSync: %v", err)
	}
	if len(snap.Sites) != 2 {
		t.Fatalf("want 2 fresh sites, got %d", len(snap.Sites))
	}
}

func siteItem(tempID, name string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"temp_id": tempID, "name": name, "site_type": "gathering_site",
		"location": map[string]any{"type": "Point", "coordinates": []float64{35.5, 33.9}},
	})
	return b
}

func TestSyncEngine_BulkUpload_PartialIsolation(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.createErrs = map[string]error{"bad": errors.New("constraint")}
	ctx := context.Background()
	u := adminUser()

	// t2 fails in the repo, t3 fails validation (no name)
	items := []json.RawMessage{
		siteItem("t1", "alpha"),
		siteItem("t2", "bad"),
		json.RawMessage(`{"temp_id":"t3"}`),
		siteItem("t4", "delta"),
	}
	res, err := f.engine.BulkUpload(ctx, u, "dev-1", TypeSites, items)
	if err != nil {
		t.Fatalf("BulkUpload: %v", err)
	}
	if res.Processed != 2 || res.Failed != 2 {
		t.Fatalf("want 2/2, got processed=%d failed=%d", res.Processed, res.Failed)
	}
	if res.Processed+res.Failed != len(items) {
		t.Fatalf("counts must cover every item")
	}
	if len(res.Errors) != 2 || res.Errors[0].TempID != "t2" || res.Errors[1].TempID != "t3" {
		t.Fatalf("errors not keyed per item: %+v", res.Errors)
	}
	if _, ok := res.TempIDMap["t1"]; !ok {
		t.Fatalf("temp id map missing t1: %v", res.TempIDMap)
	}
	if len(f.sites.created) != 2 {
		t.Fatalf("want 2 persisted sites, got %d", len(f.sites.created))
	}
	l := f.logs.byType(model.SyncUpload)
	if l == nil || l.Status != model.SyncPartial {
		t.Fatalf("audit row not partial: %+v", l)
	}
}

func TestSyncEngine_BulkUpload_StatusMatrix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	u := adminUser()

	f := newEngine()
	if res, err := f.engine.BulkUpload(ctx, u, "dev-1", TypeSites, []json.RawMessage{siteItem("t1", "a")}); err != nil || res.Failed != 0 {
		t.Fatalf("all-good: %v %+v", err, res)
	}
	if l := f.logs.byType(model.SyncUpload); l.Status != model.SyncCompleted {
		t.Fatalf("want completed, got %s", l.Status)
	}

	f = newEngine()
	if res, err := f.engine.BulkUpload(ctx, u, "dev-1", TypeSites, []json.RawMessage{json.RawMessage(`{"temp_id":"x"}`)}); err != nil || res.Processed != 0 {
		t.Fatalf("all-bad: %v %+v", err, res)
	}
	if l := f.logs.byType(model.SyncUpload); l.Status != model.SyncFailed {
		t.Fatalf("want failed, got %s", l.Status)
	}
}

func TestSyncEngine_BulkUpload_RequestValidation(t *testing.T) {
	t.Parallel()
	f := newEngine()
	ctx := context.Background()
	u := adminUser()

	if _, err := f.engine.BulkUpload(ctx, u, "dev-1", "assessments", []json.RawMessage{siteItem("t", "a")}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("read-only type: want ErrValidation, got %v", err)
	}
	if _, err := f.engine.BulkUpload(ctx, u, "dev-1", TypeSites, nil); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty items: want ErrValidation, got %v", err)
	}

	over := make([]json.RawMessage, 5) // limit is 4 in the fixture
	for i := range over {
		over[i] = siteItem(fmt.Sprintf("t%d", i), "s")
	}
	if _, err := f.engine.BulkUpload(ctx, u, "dev-1", TypeSites, over); !errors.Is(err, errs.ErrPayloadTooLarge) {
		t.Fatalf("over limit: want ErrPayloadTooLarge, got %v", err)
	}
	// nothing may be persisted when the whole request is rejected
	if len(f.sites.created) != 0 {
		t.Fatalf("rejected request persisted %d items", len(f.sites.created))
	}
}

func TestSyncEngine_BulkUpload_ReportRefs(t *testing.T) {
	t.Parallel()
	f := newEngine()
	f.sites.sites = makeSites(1)
	siteID := f.sites.sites[0].ID
	ctx := context.Background()
	u := adminUser()

	good, _ := json.Marshal(map[string]any{"temp_id": "r1", "site": siteID.String(), "title": "water shortage"})
	dangling, _ := json.Marshal(map[string]any{"temp_id": "r2", "site": uuid.Must(uuid.NewV4()).String(), "title": "x"})

	res, err := f.engine.BulkUpload(ctx, u, "dev-1", TypeReports, []json.RawMessage{good, dangling})
	if err != nil {
		t.Fatalf("BulkUpload: %v", err)
	}
	if res.Processed != 1 || res.Failed != 1 {
		t.Fatalf("want 1/1, got %+v", res)
	}
	if len(f.reports.created) != 1 || f.reports.created[0].SiteID != siteID {
		t.Fatalf("report not linked to site")
	}
	if f.reports.created[0].Status != "pending" || f.reports.created[0].Priority != "medium" {
		t.Fatalf("defaults not applied: %+v", f.reports.created[0])
	}
}

func TestSyncEngine_History_Caps(t *testing.T) {
	t.Parallel()
	f := newEngine()
	u := adminUser()
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		id, _ := f.logs.Create(ctx, u.ID, "dev-1", model.SyncInitial)
		_ = f.logs.Start(ctx, id)
		_ = f.logs.Finish(ctx, id, model.SyncCompleted, 0, 0, 0, "")
	}

	logs, err := f.engine.History(ctx, u, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(logs) != 20 {
		t.Fatalf("default cap: want 20, got %d", len(logs))
	}
	logs, _ = f.engine.History(ctx, u, 1000)
	if len(logs) != 20 {
		t.Fatalf("over-cap request must fall back to default, got %d", len(logs))
	}
}
