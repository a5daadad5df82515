// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role identifies a user's position in the platform's access matrix.
type Role string

const (
	RolePublic       Role = "public"
	RoleSiteOfficial Role = "site_official"
	RoleNGOUser      Role = "ngo_user"
	RoleUNUser       Role = "un_user"
	RoleClusterLead  Role = "cluster_lead"
	RoleAdmin        Role = "admin"
)

// Platform is the mobile device platform reported at login.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Valid reports whether the platform is one of the supported values.
func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

/// User represents an account as seen by this subsystem: read-only identity
// plus the token epoch used to keep a single access credential live per user.
type User struct {
	ID              uuid.UUID
	Email           string
	Username        string
	PwdHash         []byte
	SaltAuth        []byte
	Role            Role
	Organization    string
	PhoneNumber     string
	PreferredLang   string
	Verified        bool
	Active          bool
	TokenEpoch      int64
	AssignedSiteIDs []uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeviceDescriptor is the client-reported device identity sent with login.
type DeviceDescriptor struct {
	DeviceID    string   `json:"device_id"`
	Platform    Platform `json:"platform"`
	PushToken   string   `json:"push_token,omitempty"`
	AppVersion  string   `json:"app_version,omitempty"`
	OSVersion   string   `json:"os_version,omitempty"`
	DeviceModel string   `json:"device_model,omitempty"`
}

// Device is a registered mobile device. One row per (user, device_id).
type Device struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	DeviceID    string    `json:"device_id"`
	Platform    Platform  `json:"platform"`
	PushToken   string    `json:"push_token,omitempty"`
	AppVersion  string    `json:"app_version,omitempty"`
	OSVersion   string    `json:"os_version,omitempty"`
	DeviceModel string    `json:"device_model,omitempty"`
	Active      bool      `json:"is_active"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshToken is a rotate-on-use credential bound to (user, device).
// Valid iff !Revoked && now < ExpiresAt && presented device == DeviceID.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	DeviceID  uuid.UUID // devices.id, not the client-reported string
	TokenHash string    // SHA-256 hex digest of the opaque token value
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry.
func (t *RefreshToken) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }

// Tokens collects the credentials returned from login/refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
}

// SyncType labels the kind of synchronization recorded in a SyncLog.
type SyncType string

const (
	SyncInitial     SyncType = "initial"
	SyncIncremental SyncType = "incremental"
	SyncUpload      SyncType = "upload"
)

// SyncStatus is the SyncLog lifecycle state:
// pending -> in_progress -> {completed|failed|partial}.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
	SyncPartial    SyncStatus = "partial"
)

// Terminal reports whether the status ends the sync lifecycle.
func (s SyncStatus) Terminal() bool {
	return s == SyncCompleted || s == SyncFailed || s == SyncPartial
}

// SyncLog is an append-only audit record of one sync operation.
type SyncLog struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	DeviceID       string     `json:"device_id"`
	SyncType       SyncType   `json:"sync_type"`
	Status         SyncStatus `json:"status"`
	TotalItems     int        `json:"total_items"`
	ProcessedItems int        `json:"processed_items"`
	FailedItems    int        `json:"failed_items"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Progress returns the processed share in percent for operator inspection.
func (l *SyncLog) Progress() float64 {
	if l.TotalItems == 0 {
		return 0
	}
	return float64(l.ProcessedItems) / float64(l.TotalItems) * 100
}

// Location is a GeoJSON-like point: coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Site is a gathering site record consumed and produced during sync.
type Site struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	NameAr            string    `json:"name_ar,omitempty"`
	Description       string    `json:"description,omitempty"`
	SiteType          string    `json:"site_type"`
	OperationalStatus string    `json:"operational_status"`
	Location          *Location `json:"location,omitempty"`
	TotalPopulation   int       `json:"total_population"`
	TotalHouseholds   int       `json:"total_households"`
	ContactPerson     string    `json:"contact_person,omitempty"`
	ContactPhone      string    `json:"contact_phone,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Assessment is a data-collection campaign pulled during sync (read-only here).
type Assessment struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	AssessmentType string      `json:"assessment_type"`
	Status         string      `json:"status"`
	KoboFormID     string      `json:"kobo_form_id,omitempty"`
	StartDate      *time.Time  `json:"start_date,omitempty"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	CreatedBy      uuid.UUID   `json:"created_by"`
	TargetSiteIDs  []uuid.UUID `json:"target_site_ids,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AssessmentResponse is a filled-in assessment uploaded from a device.
type AssessmentResponse struct {
	ID           uuid.UUID      `json:"id"`
	AssessmentID uuid.UUID      `json:"assessment"`
	SiteID       uuid.UUID      `json:"site"`
	RespondentID uuid.UUID      `json:"respondent"`
	Data         map[string]any `json:"data,omitempty"`
	GPSLocation  *Location      `json:"gps_location,omitempty"`
	Submitted    bool           `json:"is_submitted"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FieldReport is a field observation uploaded from a device.
type FieldReport struct {
	ID          uuid.UUID `json:"id"`
	SiteID      uuid.UUID `json:"site"`
	ReporterID  uuid.UUID `json:"reporter"`
	Title       string    `json:"title"`
	TextContent string    `json:"text_content,omitempty"`
	ReportType  string    `json:"report_type"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncMetadata stamps every snapshot returned to a client.
type SyncMetadata struct {
	SyncID      uuid.UUID `json:"sync_id"`
	Timestamp   time.Time `json:"timestamp"`
	DataVersion string    `json:"data_version"`
}

// SyncSnapshot is a transient, bounded bundle of scoped records.
type SyncSnapshot struct {
	Sites       []Site               `json:"sites,omitempty"`
	Assessments []Assessment         `json:"assessments,omitempty"`
	Responses   []AssessmentResponse `json:"assessment_responses,omitempty"`
	Reports     []FieldReport        `json:"field_reports,omitempty"`
	Metadata    SyncMetadata         `json:"sync_metadata"`
}

// ItemError reports a single failed record from a bulk upload, keyed by the
// client-supplied temporary id when one was sent.
type ItemError struct {
	TempID string `json:"temp_id,omitempty"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BulkResult is the outcome of a bulk upload: per-item failures plus the
// temp id -> persisted id map offline clients use to reconcile references.
type BulkResult struct {
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Errors    []ItemError       `json:"per_item_errors"`
	SyncID    uuid.UUID         `json:"sync_id"`
	TempIDMap map[string]string `json:"temp_id_map"`
}
