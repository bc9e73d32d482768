package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"calendar-sync-go/internal/calendar"
	"calendar-sync-go/internal/config"
	"calendar-sync-go/internal/contacts"
	"calendar-sync-go/internal/matcher"
	"calendar-sync-go/internal/metrics"
	"calendar-sync-go/internal/models"
	"calendar-sync-go/internal/reconciler"
)

// JobStore is the slice of the record store the job processor needs.
type JobStore interface {
	ListPendingJobs(limit int) ([]models.ContactSyncJob, error)
	UpdateJob(job *models.ContactSyncJob) error
	CountPendingJobs() (int64, error)
	GetContact(contactID uint) (*models.Contact, error)
	GetIntegration(userID, provider string) (*models.Integration, error)
}

// JobDetail is one job's outcome within a drain pass.
type JobDetail struct {
	JobID            uint   `json:"job_id"`
	ContactID        uint   `json:"contact_id"`
	Status           string `json:"status"`
	EventsFetched    int    `json:"events_fetched"`
	ArtifactsCreated int    `json:"artifacts_created"`
	ArtifactsUpdated int    `json:"artifacts_updated"`
	Message          string `json:"message,omitempty"`
}

// JobRunResult summarizes one drain pass over the contact sync job queue.
type JobRunResult struct {
	Processed int         `json:"processed"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Details   []JobDetail `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// JobProcessor drains per-contact backfill jobs. Each pass takes one bounded
// page of the oldest pending jobs and leaves the rest for the next
// invocation rather than looping until empty.
type JobProcessor struct {
	store      JobStore
	client     calendar.EventLister
	reconciler *reconciler.Reconciler
	metrics    *metrics.Metrics
	cfg        config.JobsConfig

	now   func() time.Time
	sleep func(time.Duration)
}

// NewJobProcessor creates a contact sync job processor
func NewJobProcessor(store JobStore, client calendar.EventLister, rec *reconciler.Reconciler, m *metrics.Metrics, cfg config.JobsConfig) *JobProcessor {
	return &JobProcessor{
		store:      store,
		client:     client,
		reconciler: rec,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// ProcessPending drains one page of pending jobs oldest-first. It returns an
// error only when the queue itself cannot be read.
func (p *JobProcessor) ProcessPending(ctx context.Context) (*JobRunResult, error) {
	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	jobs, err := p.store.ListPendingJobs(batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	result := &JobRunResult{Details: []JobDetail{}, Timestamp: p.now()}

	for i := range jobs {
		detail := p.processJob(ctx, &jobs[i])
		result.Processed++
		if detail.Status == models.JobStatusCompleted {
			result.Completed++
			p.metrics.JobsProcessed.Inc()
		} else {
			result.Failed++
			p.metrics.JobsFailed.Inc()
		}
		result.Details = append(result.Details, detail)

		if i < len(jobs)-1 {
			p.sleep(p.cfg.JobDelay)
		}
	}

	if pending, err := p.store.CountPendingJobs(); err == nil {
		p.metrics.PendingJobs.Set(float64(pending))
	}

	logrus.WithFields(logrus.Fields{
		"processed": result.Processed,
		"completed": result.Completed,
		"failed":    result.Failed,
	}).Info("Contact sync job drain finished")

	return result, nil
}

// processJob runs one job to a terminal state. The job is flipped to
// processing before any external call so a crash mid-run leaves visible
// evidence instead of silently reprocessing.
func (p *JobProcessor) processJob(ctx context.Context, job *models.ContactSyncJob) JobDetail {
	detail := JobDetail{JobID: job.ID, ContactID: job.ContactID}

	job.Status = models.JobStatusProcessing
	if err := p.store.UpdateJob(job); err != nil {
		detail.Status = models.JobStatusFailed
		detail.Message = err.Error()
		return detail
	}

	contact, integration, err := p.resolveJob(job)
	if err != nil {
		return p.failJob(job, detail, err)
	}

	lookback := job.LookbackDays
	if lookback <= 0 {
		lookback = presets[ModeManual].LookbackDays
	}
	lookforward := job.LookforwardDays
	if lookforward <= 0 {
		lookforward = presets[ModeManual].LookforwardDays
	}

	start := p.now()
	events, err := p.client.ListEvents(ctx, integration, calendar.Window{
		Start:        start.AddDate(0, 0, -lookback),
		End:          start.AddDate(0, 0, lookforward),
		SingleEvents: true,
	})
	if err != nil {
		return p.failJob(job, detail, err)
	}

	// Match against this contact's addresses only; the full per-user index
	// is deliberately skipped here.
	index := make(map[string]models.Contact)
	for _, email := range contacts.EmailsFor(contact) {
		index[email] = *contact
	}
	eventMatches := matcher.Match(events, index)

	recResult := p.reconciler.Reconcile(job.UserID, events, eventMatches)
	p.metrics.ArtifactsCreated.Add(float64(recResult.Created))
	p.metrics.ArtifactsUpdated.Add(float64(recResult.Updated))

	detail.Status = models.JobStatusCompleted
	detail.EventsFetched = len(events)
	detail.ArtifactsCreated = recResult.Created
	detail.ArtifactsUpdated = recResult.Updated

	summary := map[string]interface{}{
		"events_fetched":    len(events),
		"events_matched":    len(eventMatches),
		"artifacts_created": recResult.Created,
		"artifacts_updated": recResult.Updated,
	}
	if len(recResult.Errors) > 0 {
		summary["event_errors"] = recResult.Errors
	}

	processed := p.now()
	job.Status = models.JobStatusCompleted
	job.ProcessedAt = &processed
	if data, err := json.Marshal(summary); err == nil {
		job.Result = string(data)
	}
	if err := p.store.UpdateJob(job); err != nil {
		logrus.WithField("job_id", job.ID).Errorf("Failed to finalize job: %v", err)
	}

	return detail
}

// resolveJob loads the job's contact and a usable integration, failing fast
// before any artifacts are touched.
func (p *JobProcessor) resolveJob(job *models.ContactSyncJob) (*models.Contact, *models.Integration, error) {
	contact, err := p.store.GetContact(job.ContactID)
	if err != nil {
		return nil, nil, err
	}
	if contact == nil {
		return nil, nil, fmt.Errorf("contact %d not found", job.ContactID)
	}

	integration, err := p.store.GetIntegration(job.UserID, models.ProviderGoogleCalendar)
	if err != nil {
		return nil, nil, err
	}
	if integration == nil || !integration.Active {
		return nil, nil, fmt.Errorf("no active calendar integration for user %s", job.UserID)
	}
	if !integration.Usable(p.now()) {
		return nil, nil, fmt.Errorf("integration for user %s has an expired token and no refresh token", job.UserID)
	}

	return contact, integration, nil
}

// failJob moves a job to its failed terminal state.
func (p *JobProcessor) failJob(job *models.ContactSyncJob, detail JobDetail, cause error) JobDetail {
	detail.Status = models.JobStatusFailed
	detail.Message = cause.Error()

	processed := p.now()
	job.Status = models.JobStatusFailed
	job.ErrorMsg = cause.Error()
	job.ProcessedAt = &processed
	if err := p.store.UpdateJob(job); err != nil {
		logrus.WithField("job_id", job.ID).Errorf("Failed to mark job failed: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"contact_id": job.ContactID,
	}).Warnf("Contact sync job failed: %v", cause)

	return detail
}
