package models

import (
	"time"

	"gorm.io/gorm"
)

// Provider identifiers for integrations.
const (
	ProviderGoogleCalendar = "google_calendar"
)

// Artifact types written by the sync engine.
const (
	ArtifactTypeMeeting = "meeting"
)

// AI processing states for artifacts.
const (
	AIStatusPending = "pending"
)

// Sync log states.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

// Contact sync job states.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Integration stores one user's OAuth credential set for an external provider
type Integration struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string         `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_user_provider"`
	Provider     string         `json:"provider" gorm:"type:varchar(64);not null;uniqueIndex:idx_user_provider"`
	AccessToken  string         `json:"-" gorm:"type:text;not null"`
	RefreshToken string         `json:"-" gorm:"type:text"`
	ExpiresAt    *time.Time     `json:"expires_at"`
	Metadata     string         `json:"metadata" gorm:"type:json"`
	Active       bool           `json:"active" gorm:"default:true;index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Integration
func (Integration) TableName() string {
	return "integrations"
}

// Usable reports whether the stored credentials can still produce a valid
// access token. An expired token with no refresh token cannot be refreshed.
func (i *Integration) Usable(now time.Time) bool {
	if i.RefreshToken != "" {
		return true
	}
	return i.ExpiresAt == nil || i.ExpiresAt.After(now)
}

// Contact is a relationship record owned by the contact store. The sync
// engine reads it only to build the matching universe.
type Contact struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID           string         `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Name             string         `json:"name" gorm:"type:varchar(255)"`
	Email            string         `json:"email" gorm:"type:varchar(255)"`
	AdditionalEmails string         `json:"additional_emails" gorm:"type:json"`
	IsSelf           bool           `json:"is_self" gorm:"default:false"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Emails []ContactEmail `json:"emails,omitempty" gorm:"foreignKey:ContactID"`
}

// TableName specifies the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}

// ContactEmail is one row of the per-email join table, the third source of
// addresses for a contact alongside the primary field and the JSON list.
type ContactEmail struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID uint      `json:"contact_id" gorm:"not null;index"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ContactEmail
func (ContactEmail) TableName() string {
	return "contact_emails"
}

// Goal is read-only here; it gates the best-effort session action enqueue.
type Goal struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID uint      `json:"contact_id" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	Status    string    `json:"status" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Goal
func (Goal) TableName() string {
	return "goals"
}

// Artifact is a durable record of an interaction attached to a contact.
// At most one artifact exists per (contact, type, provider event).
type Artifact struct {
	ID              uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID       uint           `json:"contact_id" gorm:"not null;uniqueIndex:idx_contact_type_event"`
	UserID          string         `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Type            string         `json:"type" gorm:"type:varchar(50);not null;uniqueIndex:idx_contact_type_event"`
	Title           string         `json:"title" gorm:"type:varchar(512)"`
	Content         string         `json:"content" gorm:"type:text"`
	Metadata        string         `json:"metadata" gorm:"type:json"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);uniqueIndex:idx_contact_type_event"`
	OccurredAt      time.Time      `json:"occurred_at" gorm:"index"`
	AIStatus        string         `json:"ai_status" gorm:"type:varchar(50)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Artifact
func (Artifact) TableName() string {
	return "artifacts"
}

// SyncLog is an append-only record of one sync run for one user. It is
// written exactly twice: created in_progress at run start, finalized once
// with counts and errors at run end.
type SyncLog struct {
	ID               uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID            string     `json:"run_id" gorm:"type:varchar(64);index"`
	UserID           string     `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Status           string     `json:"status" gorm:"type:varchar(50);not null"`
	EventsFetched    int        `json:"events_fetched"`
	EventsMatched    int        `json:"events_matched"`
	ArtifactsCreated int        `json:"artifacts_created"`
	ArtifactsUpdated int        `json:"artifacts_updated"`
	Errors           string     `json:"errors" gorm:"type:text"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
}

// TableName specifies the table name for SyncLog
func (SyncLog) TableName() string {
	return "sync_logs"
}

// SessionAction is a deferred follow-up task surfaced later by a separate
// scheduling mechanism. The sync engine only inserts them in a pending state
// with no session assigned.
type SessionAction struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID  uint      `json:"contact_id" gorm:"not null;index"`
	ArtifactID uint      `json:"artifact_id" gorm:"not null;index"`
	GoalID     uint      `json:"goal_id"`
	SessionID  *uint     `json:"session_id"`
	Action     string    `json:"action" gorm:"type:varchar(100);not null"`
	Status     string    `json:"status" gorm:"type:varchar(50);not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for SessionAction
func (SessionAction) TableName() string {
	return "session_actions"
}

// ContactSyncJob is a queued request to backfill meetings for one contact,
// typically enqueued when a new email address is attached to it.
type ContactSyncJob struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID       uint       `json:"contact_id" gorm:"not null;index"`
	UserID          string     `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Status          string     `json:"status" gorm:"type:varchar(50);not null;index"`
	LookbackDays    int        `json:"lookback_days"`
	LookforwardDays int        `json:"lookforward_days"`
	Trigger         string     `json:"trigger" gorm:"type:json"`
	Result          string     `json:"result" gorm:"type:text"`
	ErrorMsg        string     `json:"error_msg" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ProcessedAt     *time.Time `json:"processed_at"`
}

// TableName specifies the table name for ContactSyncJob
func (ContactSyncJob) TableName() string {
	return "contact_sync_jobs"
}
