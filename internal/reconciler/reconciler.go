package reconciler

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"calendar-sync-go/internal/models"
)

// ActionAddMeetingNotes is the follow-up enqueued for freshly created
// meetings that arrived without any notes.
const ActionAddMeetingNotes = "add_meeting_notes"

const defaultContent = "Meeting synced from calendar"

const actionStatusPending = "pending"

// Store is the slice of the artifact store the reconciler writes through.
type Store interface {
	FindMeetingArtifact(contactID uint, providerEventID string) (*models.Artifact, error)
	CreateArtifact(artifact *models.Artifact) error
	UpdateArtifact(artifact *models.Artifact) error
	GetArtifact(artifactID uint) (*models.Artifact, error)
	FindGoal(contactID uint) (*models.Goal, error)
	CreateSessionAction(action *models.SessionAction) error
}

// Result summarizes one reconciliation pass. Errors are keyed by the
// provider event ID that failed.
type Result struct {
	Created int
	Updated int
	Errors  map[string]string
}

// Reconciler creates or updates meeting artifacts for matched events.
type Reconciler struct {
	store Store
	now   func() time.Time
}

// New creates a reconciler
func New(store Store) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// Reconcile writes one artifact per matched event. The first match owns the
// artifact: a meeting is attributed to a single contact even when several
// invited contacts matched. A failure on one event is recorded and the rest
// of the batch still runs.
func (r *Reconciler) Reconcile(userID string, events []models.CalendarEvent, matches map[string][]models.ContactMatch) Result {
	result := Result{Errors: make(map[string]string)}

	for _, event := range events {
		eventMatches, ok := matches[event.ID]
		if !ok || len(eventMatches) == 0 {
			continue
		}
		owner := eventMatches[0]

		created, err := r.reconcileEvent(userID, &event, &owner)
		if err != nil {
			result.Errors[event.ID] = err.Error()
			logrus.WithFields(logrus.Fields{
				"user_id":  userID,
				"event_id": event.ID,
			}).Errorf("Failed to reconcile event: %v", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	return result
}

// reconcileEvent upserts the artifact keyed by (contact, meeting, provider
// event ID). Reports whether a new artifact was created.
func (r *Reconciler) reconcileEvent(userID string, event *models.CalendarEvent, owner *models.ContactMatch) (bool, error) {
	metadata := r.buildMetadata(event)

	title := event.Title
	if title == "" {
		title = "Untitled meeting"
	}
	content := event.Description
	if content == "" {
		content = defaultContent
	}

	existing, err := r.store.FindMeetingArtifact(owner.ContactID, event.ID)
	if err != nil {
		return false, err
	}

	if existing != nil {
		existing.Title = title
		existing.Content = content
		existing.Metadata = metadata
		existing.OccurredAt = event.Start.Time()
		// ai_status belongs to the processing pipeline, never reset here
		if err := r.store.UpdateArtifact(existing); err != nil {
			return false, err
		}
		return false, nil
	}

	artifact := &models.Artifact{
		ContactID:       owner.ContactID,
		UserID:          userID,
		Type:            models.ArtifactTypeMeeting,
		Title:           title,
		Content:         content,
		Metadata:        metadata,
		ProviderEventID: event.ID,
		OccurredAt:      event.Start.Time(),
		AIStatus:        models.AIStatusPending,
	}
	if err := r.store.CreateArtifact(artifact); err != nil {
		return false, err
	}

	if event.Description == "" {
		r.enqueueNotesAction(owner.ContactID, artifact.ID)
	}

	return true, nil
}

// enqueueNotesAction creates the "add meeting notes" follow-up for a new
// artifact. Best-effort enrichment: failures are logged and swallowed, the
// artifact write already succeeded.
func (r *Reconciler) enqueueNotesAction(contactID, artifactID uint) {
	goal, err := r.store.FindGoal(contactID)
	if err != nil || goal == nil {
		if err != nil {
			logrus.Warnf("Skipping notes action, goal lookup failed for contact %d: %v", contactID, err)
		}
		return
	}

	artifact, err := r.store.GetArtifact(artifactID)
	if err != nil || artifact == nil {
		if err != nil {
			logrus.Warnf("Skipping notes action, artifact lookup failed for %d: %v", artifactID, err)
		}
		return
	}

	action := &models.SessionAction{
		ContactID:  contactID,
		ArtifactID: artifact.ID,
		GoalID:     goal.ID,
		Action:     ActionAddMeetingNotes,
		Status:     actionStatusPending,
	}
	if err := r.store.CreateSessionAction(action); err != nil {
		logrus.Warnf("Failed to create notes action for artifact %d: %v", artifactID, err)
	}
}

// buildMetadata flattens the provider event into the artifact's metadata
// blob. The blob keeps everything the store schema has no column for.
func (r *Reconciler) buildMetadata(event *models.CalendarEvent) string {
	var attendeeNames, attendeeEmails []string
	for _, attendee := range event.Attendees {
		if attendee.DisplayName != "" {
			attendeeNames = append(attendeeNames, attendee.DisplayName)
		}
		attendeeEmails = append(attendeeEmails, attendee.Email)
	}

	blob := map[string]interface{}{
		"google_calendar_id": event.ID,
		"title":              event.Title,
		"attendee_names":     attendeeNames,
		"attendee_emails":    attendeeEmails,
		"location":           event.Location,
		"html_link":          event.HTMLLink,
		"hangout_link":       event.HangoutLink,
		"recurring_event_id": event.RecurringEventID,
		"last_synced_at":     r.now().UTC().Format(time.RFC3339),
	}
	if event.Organizer != nil {
		blob["organizer_email"] = event.Organizer.Email
	}
	if minutes := event.DurationMinutes(); minutes != nil {
		blob["duration_minutes"] = *minutes
	}

	data, err := json.Marshal(blob)
	if err != nil {
		logrus.Warnf("Failed to marshal event metadata for %s: %v", event.ID, err)
		return "{}"
	}
	return string(data)
}
