package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"calendar-sync-go/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetIntegration returns the integration for (user, provider), or nil when
// none exists.
func (r *Repository) GetIntegration(userID, provider string) (*models.Integration, error) {
	var integration models.Integration
	result := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&integration)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get integration: %w", result.Error)
	}
	return &integration, nil
}

// ListActiveIntegrations returns every active integration for a provider.
func (r *Repository) ListActiveIntegrations(provider string) ([]models.Integration, error) {
	var integrations []models.Integration
	result := r.db.Where("provider = ? AND active = ?", provider, true).Find(&integrations)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", result.Error)
	}
	return integrations, nil
}

// UpdateTokens persists a rotated token pair. An empty refresh token keeps
// the stored one, since the provider only reissues it occasionally.
func (r *Repository) UpdateTokens(integrationID uint, accessToken, refreshToken string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	if expiresAt != nil {
		updates["expires_at"] = *expiresAt
	}
	result := r.db.Model(&models.Integration{}).Where("id = ?", integrationID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	return nil
}

// ListMatchableContacts returns a user's contacts with their email join rows
// preloaded. Self-contacts are excluded in the query itself so large contact
// sets never load rows the matcher would discard anyway.
func (r *Repository) ListMatchableContacts(userID string) ([]models.Contact, error) {
	var contacts []models.Contact
	result := r.db.Preload("Emails").
		Where("user_id = ? AND is_self = ?", userID, false).
		Find(&contacts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", result.Error)
	}
	return contacts, nil
}

// GetContact returns one contact with email rows preloaded, or nil when it
// does not exist.
func (r *Repository) GetContact(contactID uint) (*models.Contact, error) {
	var contact models.Contact
	result := r.db.Preload("Emails").First(&contact, contactID)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get contact: %w", result.Error)
	}
	return &contact, nil
}

// FindMeetingArtifact looks up an artifact by its reconciliation key.
func (r *Repository) FindMeetingArtifact(contactID uint, providerEventID string) (*models.Artifact, error) {
	var artifact models.Artifact
	result := r.db.Where("contact_id = ? AND type = ? AND provider_event_id = ?",
		contactID, models.ArtifactTypeMeeting, providerEventID).First(&artifact)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find artifact: %w", result.Error)
	}
	return &artifact, nil
}

func (r *Repository) CreateArtifact(artifact *models.Artifact) error {
	if err := r.db.Create(artifact).Error; err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

func (r *Repository) UpdateArtifact(artifact *models.Artifact) error {
	if err := r.db.Save(artifact).Error; err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	return nil
}

func (r *Repository) GetArtifact(artifactID uint) (*models.Artifact, error) {
	var artifact models.Artifact
	result := r.db.First(&artifact, artifactID)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", result.Error)
	}
	return &artifact, nil
}

// FindGoal returns the contact's goal, or nil when it has none.
func (r *Repository) FindGoal(contactID uint) (*models.Goal, error) {
	var goal models.Goal
	result := r.db.Where("contact_id = ?", contactID).First(&goal)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find goal: %w", result.Error)
	}
	return &goal, nil
}

func (r *Repository) CreateSessionAction(action *models.SessionAction) error {
	if err := r.db.Create(action).Error; err != nil {
		return fmt.Errorf("failed to create session action: %w", err)
	}
	return nil
}

func (r *Repository) CreateSyncLog(log *models.SyncLog) error {
	if err := r.db.Create(log).Error; err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

func (r *Repository) FinalizeSyncLog(log *models.SyncLog) error {
	if err := r.db.Save(log).Error; err != nil {
		return fmt.Errorf("failed to finalize sync log: %w", err)
	}
	return nil
}

func (r *Repository) CreateContactSyncJob(job *models.ContactSyncJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create contact sync job: %w", err)
	}
	return nil
}

// ListPendingJobs returns the oldest pending jobs, bounded to one page.
func (r *Repository) ListPendingJobs(limit int) ([]models.ContactSyncJob, error) {
	var jobs []models.ContactSyncJob
	result := r.db.Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", result.Error)
	}
	return jobs, nil
}

func (r *Repository) UpdateJob(job *models.ContactSyncJob) error {
	if err := r.db.Save(job).Error; err != nil {
		return fmt.Errorf("failed to update contact sync job: %w", err)
	}
	return nil
}

func (r *Repository) CountPendingJobs() (int64, error) {
	var count int64
	result := r.db.Model(&models.ContactSyncJob{}).
		Where("status = ?", models.JobStatusPending).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", result.Error)
	}
	return count, nil
}
