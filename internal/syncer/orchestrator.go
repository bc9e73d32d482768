package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"calendar-sync-go/internal/calendar"
	"calendar-sync-go/internal/config"
	"calendar-sync-go/internal/contacts"
	"calendar-sync-go/internal/matcher"
	"calendar-sync-go/internal/metrics"
	"calendar-sync-go/internal/models"
	"calendar-sync-go/internal/reconciler"
)

// Sync modes select a window preset.
const (
	ModeNightly    = "nightly"
	ModeOnboarding = "onboarding"
	ModeManual     = "manual"
	ModeHistorical = "historical"
)

// Per-user outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// WindowConfig is the resolved sync window for a run.
type WindowConfig struct {
	Mode            string `json:"mode"`
	LookbackDays    int    `json:"lookback_days"`
	LookforwardDays int    `json:"lookforward_days"`
}

var presets = map[string]WindowConfig{
	ModeNightly:    {Mode: ModeNightly, LookbackDays: 7, LookforwardDays: 30},
	ModeOnboarding: {Mode: ModeOnboarding, LookbackDays: 365, LookforwardDays: 90},
	ModeManual:     {Mode: ModeManual, LookbackDays: 30, LookforwardDays: 60},
	ModeHistorical: {Mode: ModeHistorical, LookbackDays: 730, LookforwardDays: 30},
}

// ResolveWindow returns the window for a mode with optional day overrides.
func ResolveWindow(mode string, lookbackDays, lookforwardDays int) (WindowConfig, error) {
	if mode == "" {
		mode = ModeManual
	}
	window, ok := presets[mode]
	if !ok {
		return WindowConfig{}, fmt.Errorf("unknown sync mode %q", mode)
	}
	if lookbackDays > 0 {
		window.LookbackDays = lookbackDays
	}
	if lookforwardDays > 0 {
		window.LookforwardDays = lookforwardDays
	}
	return window, nil
}

// Options selects what one orchestrated run covers.
type Options struct {
	Mode            string
	LookbackDays    int
	LookforwardDays int
	UserID          string
}

// Store is the slice of the record store the orchestrator itself touches.
// The repository also serves the contact index and the reconciler through
// their own interfaces.
type Store interface {
	ListActiveIntegrations(provider string) ([]models.Integration, error)
	GetIntegration(userID, provider string) (*models.Integration, error)
	CreateSyncLog(log *models.SyncLog) error
	FinalizeSyncLog(log *models.SyncLog) error
}

// UserDetail is one user's outcome within a run.
type UserDetail struct {
	UserID           string `json:"user_id"`
	Status           string `json:"status"`
	EventsFetched    int    `json:"events_fetched"`
	EventsMatched    int    `json:"events_matched"`
	ArtifactsCreated int    `json:"artifacts_created"`
	ArtifactsUpdated int    `json:"artifacts_updated"`
	Message          string `json:"message,omitempty"`
}

// Summary aggregates a run's outcomes.
type Summary struct {
	TotalUsers   int `json:"totalUsers"`
	SuccessCount int `json:"successCount"`
	ErrorCount   int `json:"errorCount"`
	SkippedCount int `json:"skippedCount"`
}

// RunResult is returned to the invoker. Details and Errors are truncated to
// the configured bounds so the response body stays small for large tenants.
type RunResult struct {
	RunID     string       `json:"run_id"`
	Summary   Summary      `json:"summary"`
	Details   []UserDetail `json:"details"`
	Errors    []string     `json:"errors"`
	Config    WindowConfig `json:"config"`
	Timestamp time.Time    `json:"timestamp"`
}

// Orchestrator drives a full calendar sync across every user with an active
// integration.
type Orchestrator struct {
	store        Store
	contactStore contacts.Store
	client       calendar.EventLister
	reconciler   *reconciler.Reconciler
	metrics      *metrics.Metrics
	cfg          config.SyncConfig

	now   func() time.Time
	sleep func(time.Duration)
}

// NewOrchestrator creates a batch orchestrator
func NewOrchestrator(store Store, contactStore contacts.Store, client calendar.EventLister, rec *reconciler.Reconciler, m *metrics.Metrics, cfg config.SyncConfig) *Orchestrator {
	return &Orchestrator{
		store:        store,
		contactStore: contactStore,
		client:       client,
		reconciler:   rec,
		metrics:      m,
		cfg:          cfg,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Run executes one orchestrated sync. It returns an error only when the run
// cannot be set up at all; per-user failures are data in the result.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	window, err := ResolveWindow(opts.Mode, opts.LookbackDays, opts.LookforwardDays)
	if err != nil {
		return nil, err
	}

	integrations, err := o.store.ListActiveIntegrations(models.ProviderGoogleCalendar)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch integrations: %w", err)
	}

	if opts.UserID != "" {
		filtered := integrations[:0]
		for _, integration := range integrations {
			if integration.UserID == opts.UserID {
				filtered = append(filtered, integration)
			}
		}
		integrations = filtered
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		Config:    window,
		Details:   []UserDetail{},
		Errors:    []string{},
		Timestamp: o.now(),
	}
	result.Summary.TotalUsers = len(integrations)
	o.metrics.SyncRuns.Inc()

	logrus.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"mode":   window.Mode,
		"users":  len(integrations),
	}).Info("Starting calendar sync run")

	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(integrations); start += batchSize {
		end := start + batchSize
		if end > len(integrations) {
			end = len(integrations)
		}
		batch := integrations[start:end]

		details := make([]UserDetail, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// Stagger provider calls inside the batch to stay under
				// the rate limit.
				o.sleep(time.Duration(i) * o.cfg.UserDelay)
				details[i] = o.syncUser(ctx, result.RunID, &batch[i], window)
			}(i)
		}
		wg.Wait()

		for _, detail := range details {
			o.record(result, detail)
		}

		if end < len(integrations) {
			o.sleep(o.cfg.BatchDelay)
		}
	}

	logrus.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"success": result.Summary.SuccessCount,
		"errors":  result.Summary.ErrorCount,
		"skipped": result.Summary.SkippedCount,
	}).Info("Calendar sync run finished")

	return result, nil
}

// record folds one user detail into the summary, respecting the bounds on
// the detail and error lists.
func (o *Orchestrator) record(result *RunResult, detail UserDetail) {
	switch detail.Status {
	case StatusSuccess:
		result.Summary.SuccessCount++
		o.metrics.UsersSynced.Inc()
	case StatusSkipped:
		result.Summary.SkippedCount++
		o.metrics.UsersSkipped.Inc()
	default:
		result.Summary.ErrorCount++
		o.metrics.UsersErrored.Inc()
		if len(result.Errors) < o.cfg.MaxErrors {
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: %s", detail.UserID, detail.Message))
		}
	}
	if len(result.Details) < o.cfg.MaxDetails {
		result.Details = append(result.Details, detail)
	}
}

// syncUser runs the fetch→match→reconcile→log pipeline for one user. Every
// failure is contained here; nothing escapes to abort the batch.
func (o *Orchestrator) syncUser(ctx context.Context, runID string, integration *models.Integration, window WindowConfig) (detail UserDetail) {
	detail = UserDetail{UserID: integration.UserID}

	defer func() {
		if r := recover(); r != nil {
			detail.Status = StatusError
			detail.Message = fmt.Sprintf("panic: %v", r)
			logrus.WithField("user_id", integration.UserID).Errorf("Recovered panic in user sync: %v", r)
		}
	}()

	started := o.now()
	defer func() {
		o.metrics.UserSyncDuration.Observe(o.now().Sub(started).Seconds())
	}()

	if !integration.Usable(o.now()) {
		detail.Status = StatusSkipped
		detail.Message = "access token expired and no refresh token stored"
		logrus.WithField("user_id", integration.UserID).Warn("Skipping user with unusable integration")
		return detail
	}

	syncLog := &models.SyncLog{
		RunID:     runID,
		UserID:    integration.UserID,
		Status:    models.SyncStatusInProgress,
		StartedAt: started,
	}
	if err := o.store.CreateSyncLog(syncLog); err != nil {
		detail.Status = StatusError
		detail.Message = err.Error()
		return detail
	}

	index, err := contacts.BuildEmailIndex(o.contactStore, integration.UserID)
	if err != nil {
		return o.failUser(syncLog, detail, err)
	}

	events, err := o.client.ListEvents(ctx, integration, calendar.Window{
		Start:        started.AddDate(0, 0, -window.LookbackDays),
		End:          started.AddDate(0, 0, window.LookforwardDays),
		MaxResults:   o.cfg.MaxResults,
		SingleEvents: true,
	})
	if err != nil {
		return o.failUser(syncLog, detail, err)
	}
	o.metrics.EventsFetched.Add(float64(len(events)))

	eventMatches := matcher.Match(events, index)
	recResult := o.reconciler.Reconcile(integration.UserID, events, eventMatches)
	o.metrics.ArtifactsCreated.Add(float64(recResult.Created))
	o.metrics.ArtifactsUpdated.Add(float64(recResult.Updated))

	detail.Status = StatusSuccess
	detail.EventsFetched = len(events)
	detail.EventsMatched = len(eventMatches)
	detail.ArtifactsCreated = recResult.Created
	detail.ArtifactsUpdated = recResult.Updated

	completed := o.now()
	syncLog.Status = models.SyncStatusCompleted
	syncLog.EventsFetched = len(events)
	syncLog.EventsMatched = len(eventMatches)
	syncLog.ArtifactsCreated = recResult.Created
	syncLog.ArtifactsUpdated = recResult.Updated
	syncLog.CompletedAt = &completed
	if len(recResult.Errors) > 0 {
		if data, err := json.Marshal(recResult.Errors); err == nil {
			syncLog.Errors = string(data)
		}
	}
	if err := o.store.FinalizeSyncLog(syncLog); err != nil {
		logrus.WithField("user_id", integration.UserID).Errorf("Failed to finalize sync log: %v", err)
	}

	return detail
}

// failUser finalizes the sync log for a failed user run and fills the detail.
func (o *Orchestrator) failUser(syncLog *models.SyncLog, detail UserDetail, cause error) UserDetail {
	detail.Status = StatusError
	detail.Message = cause.Error()

	completed := o.now()
	syncLog.Status = models.SyncStatusFailed
	if data, err := json.Marshal([]string{cause.Error()}); err == nil {
		syncLog.Errors = string(data)
	}
	syncLog.CompletedAt = &completed
	if err := o.store.FinalizeSyncLog(syncLog); err != nil {
		logrus.WithField("user_id", syncLog.UserID).Errorf("Failed to finalize sync log: %v", err)
	}
	return detail
}
