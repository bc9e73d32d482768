package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"calendar-sync-go/internal/calendar"
	"calendar-sync-go/internal/metrics"
	"calendar-sync-go/internal/models"
)

// one registry-backed metrics instance for the whole test binary
var testMetrics = metrics.NewMetrics()

// memStore is an in-memory stand-in for the repository. It backs the
// orchestrator, the contact index, the reconciler, and the job queue, and
// must be safe for the orchestrator's intra-batch goroutines.
type memStore struct {
	mu sync.Mutex

	integrations []models.Integration
	contacts     []models.Contact
	artifacts    []models.Artifact
	goals        []models.Goal
	actions      []models.SessionAction
	syncLogs     []*models.SyncLog
	jobs         []models.ContactSyncJob

	jobStatusHistory map[uint][]string

	listIntegrationsErr error
	contactsErrFor      string
	nextArtifactID      uint
}

func newMemStore() *memStore {
	return &memStore{jobStatusHistory: make(map[uint][]string), nextArtifactID: 1}
}

func (s *memStore) ListActiveIntegrations(provider string) ([]models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listIntegrationsErr != nil {
		return nil, s.listIntegrationsErr
	}
	var out []models.Integration
	for _, integration := range s.integrations {
		if integration.Provider == provider && integration.Active {
			out = append(out, integration)
		}
	}
	return out, nil
}

func (s *memStore) GetIntegration(userID, provider string) (*models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.integrations {
		if s.integrations[i].UserID == userID && s.integrations[i].Provider == provider {
			copied := s.integrations[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListMatchableContacts(userID string) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contactsErrFor == userID {
		return nil, errors.New("contact query failed")
	}
	var out []models.Contact
	for _, contact := range s.contacts {
		if contact.UserID == userID && !contact.IsSelf {
			out = append(out, contact)
		}
	}
	return out, nil
}

func (s *memStore) GetContact(contactID uint) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.contacts {
		if s.contacts[i].ID == contactID {
			copied := s.contacts[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindMeetingArtifact(contactID uint, providerEventID string) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.artifacts {
		a := &s.artifacts[i]
		if a.ContactID == contactID && a.Type == models.ArtifactTypeMeeting && a.ProviderEventID == providerEventID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateArtifact(artifact *models.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact.ID = s.nextArtifactID
	s.nextArtifactID++
	s.artifacts = append(s.artifacts, *artifact)
	return nil
}

func (s *memStore) UpdateArtifact(artifact *models.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.artifacts {
		if s.artifacts[i].ID == artifact.ID {
			s.artifacts[i] = *artifact
			return nil
		}
	}
	return errors.New("artifact not found")
}

func (s *memStore) GetArtifact(artifactID uint) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.artifacts {
		if s.artifacts[i].ID == artifactID {
			copied := s.artifacts[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindGoal(contactID uint) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ContactID == contactID {
			copied := s.goals[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateSessionAction(action *models.SessionAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, *action)
	return nil
}

func (s *memStore) CreateSyncLog(log *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLogs = append(s.syncLogs, log)
	return nil
}

func (s *memStore) FinalizeSyncLog(log *models.SyncLog) error {
	return nil
}

func (s *memStore) ListPendingJobs(limit int) ([]models.ContactSyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.ContactSyncJob
	for _, job := range s.jobs {
		if job.Status == models.JobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memStore) UpdateJob(job *models.ContactSyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatusHistory[job.ID] = append(s.jobStatusHistory[job.ID], job.Status)
	for i := range s.jobs {
		if s.jobs[i].ID == job.ID {
			s.jobs[i] = *job
			return nil
		}
	}
	return errors.New("job not found")
}

func (s *memStore) CountPendingJobs() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, job := range s.jobs {
		if job.Status == models.JobStatusPending {
			count++
		}
	}
	return count, nil
}

// fakeLister serves canned events per user and records requested windows.
type fakeLister struct {
	mu      sync.Mutex
	events  map[string][]models.CalendarEvent
	errFor  string
	windows map[string][]calendar.Window
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		events:  make(map[string][]models.CalendarEvent),
		windows: make(map[string][]calendar.Window),
	}
}

func (f *fakeLister) ListEvents(ctx context.Context, integration *models.Integration, window calendar.Window) ([]models.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[integration.UserID] = append(f.windows[integration.UserID], window)
	if f.errFor == integration.UserID {
		return nil, errors.New("provider unavailable")
	}
	return f.events[integration.UserID], nil
}

func futureExpiry() *time.Time {
	t := time.Now().Add(time.Hour)
	return &t
}

func activeIntegration(id uint, userID string) models.Integration {
	return models.Integration{
		ID:           id,
		UserID:       userID,
		Provider:     models.ProviderGoogleCalendar,
		AccessToken:  "access",
		RefreshToken: "refresh",
		Active:       true,
		ExpiresAt:    futureExpiry(),
	}
}
