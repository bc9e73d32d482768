package reconciler

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-sync-go/internal/models"
)

type fakeStore struct {
	artifacts []models.Artifact
	actions   []models.SessionAction
	goals     map[uint]*models.Goal
	nextID    uint

	failCreateFor  string
	failGoalLookup bool
	failAction     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{goals: make(map[uint]*models.Goal), nextID: 1}
}

func (f *fakeStore) FindMeetingArtifact(contactID uint, providerEventID string) (*models.Artifact, error) {
	for i := range f.artifacts {
		a := &f.artifacts[i]
		if a.ContactID == contactID && a.Type == models.ArtifactTypeMeeting && a.ProviderEventID == providerEventID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateArtifact(artifact *models.Artifact) error {
	if f.failCreateFor != "" && artifact.ProviderEventID == f.failCreateFor {
		return errors.New("insert failed")
	}
	artifact.ID = f.nextID
	f.nextID++
	f.artifacts = append(f.artifacts, *artifact)
	return nil
}

func (f *fakeStore) UpdateArtifact(artifact *models.Artifact) error {
	for i := range f.artifacts {
		if f.artifacts[i].ID == artifact.ID {
			f.artifacts[i] = *artifact
			return nil
		}
	}
	return errors.New("artifact not found")
}

func (f *fakeStore) GetArtifact(artifactID uint) (*models.Artifact, error) {
	for i := range f.artifacts {
		if f.artifacts[i].ID == artifactID {
			copied := f.artifacts[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindGoal(contactID uint) (*models.Goal, error) {
	if f.failGoalLookup {
		return nil, errors.New("goal lookup failed")
	}
	return f.goals[contactID], nil
}

func (f *fakeStore) CreateSessionAction(action *models.SessionAction) error {
	if f.failAction {
		return errors.New("action insert failed")
	}
	f.actions = append(f.actions, *action)
	return nil
}

func timedEvent(id string, start, end time.Time) models.CalendarEvent {
	return models.CalendarEvent{
		ID:    id,
		Title: "Coffee chat",
		Start: models.EventTime{DateTime: start, HasTime: true},
		End:   models.EventTime{DateTime: end, HasTime: true},
		Attendees: []models.Attendee{
			{Email: "a@x.com", DisplayName: "Ana"},
		},
	}
}

func matchesFor(eventID string, contactID uint) map[string][]models.ContactMatch {
	return map[string][]models.ContactMatch{
		eventID: {{
			ContactID:     contactID,
			Contact:       models.Contact{ID: contactID},
			MatchedEmails: []string{"a@x.com"},
			Confidence:    1.0,
		}},
	}
}

func TestReconcileCreatesArtifactWithMetadata(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{timedEvent("evt1", start, start.Add(30*time.Minute))}

	result := rec.Reconcile("user-1", events, matchesFor("evt1", 5))

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Errors)
	require.Len(t, store.artifacts, 1)

	artifact := store.artifacts[0]
	assert.Equal(t, uint(5), artifact.ContactID)
	assert.Equal(t, models.ArtifactTypeMeeting, artifact.Type)
	assert.Equal(t, models.AIStatusPending, artifact.AIStatus)
	assert.Equal(t, "evt1", artifact.ProviderEventID)
	assert.Equal(t, start, artifact.OccurredAt)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(artifact.Metadata), &metadata))
	assert.Equal(t, "evt1", metadata["google_calendar_id"])
	assert.Equal(t, float64(30), metadata["duration_minutes"])
	assert.NotEmpty(t, metadata["last_synced_at"])
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{timedEvent("evt1", start, start.Add(30*time.Minute))}
	matches := matchesFor("evt1", 5)

	first := rec.Reconcile("user-1", events, matches)
	second := rec.Reconcile("user-1", events, matches)

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Len(t, store.artifacts, 1)
}

func TestReconcileUpdateKeepsAIStatus(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{timedEvent("evt1", start, start.Add(time.Hour))}
	matches := matchesFor("evt1", 5)

	rec.Reconcile("user-1", events, matches)

	// another pipeline moved the artifact past pending
	store.artifacts[0].AIStatus = "processed"

	events[0].Title = "Renamed"
	rec.Reconcile("user-1", events, matches)

	assert.Equal(t, "processed", store.artifacts[0].AIStatus)
	assert.Equal(t, "Renamed", store.artifacts[0].Title)
}

func TestReconcileNoDurationForAllDayEvents(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	events := []models.CalendarEvent{{
		ID:        "evt1",
		Start:     models.EventTime{Date: "2024-01-01"},
		End:       models.EventTime{Date: "2024-01-02"},
		Attendees: []models.Attendee{{Email: "a@x.com"}},
	}}

	result := rec.Reconcile("user-1", events, matchesFor("evt1", 5))

	assert.Equal(t, 1, result.Created)
	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(store.artifacts[0].Metadata), &metadata))
	assert.NotContains(t, metadata, "duration_minutes")
}

func TestReconcileIsolatesPerEventErrors(t *testing.T) {
	store := newFakeStore()
	store.failCreateFor = "evt2"
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{
		timedEvent("evt1", start, start.Add(time.Hour)),
		timedEvent("evt2", start, start.Add(time.Hour)),
		timedEvent("evt3", start, start.Add(time.Hour)),
	}
	matches := map[string][]models.ContactMatch{}
	for i, id := range []string{"evt1", "evt2", "evt3"} {
		matches[id] = matchesFor(id, uint(i+1))[id]
	}

	result := rec.Reconcile("user-1", events, matches)

	assert.Equal(t, 2, result.Created)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors, "evt2")
}

func TestReconcileSkipsUnmatchedEvents(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{timedEvent("evt1", start, start.Add(time.Hour))}

	result := rec.Reconcile("user-1", events, map[string][]models.ContactMatch{})

	assert.Equal(t, 0, result.Created)
	assert.Empty(t, store.artifacts)
}

func TestNotesActionCreatedForNewArtifactWithGoal(t *testing.T) {
	store := newFakeStore()
	store.goals[5] = &models.Goal{ID: 9, ContactID: 5}
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{timedEvent("evt1", start, start.Add(time.Hour))}
	matches := matchesFor("evt1", 5)

	rec.Reconcile("user-1", events, matches)

	require.Len(t, store.actions, 1)
	action := store.actions[0]
	assert.Equal(t, ActionAddMeetingNotes, action.Action)
	assert.Equal(t, "pending", action.Status)
	assert.Equal(t, uint(9), action.GoalID)
	assert.Nil(t, action.SessionID)

	// updates never enqueue another one
	rec.Reconcile("user-1", events, matches)
	assert.Len(t, store.actions, 1)
}

func TestNotesActionSkippedWithoutGoal(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rec.Reconcile("user-1", []models.CalendarEvent{timedEvent("evt1", start, start.Add(time.Hour))}, matchesFor("evt1", 5))

	assert.Empty(t, store.actions)
}

func TestNotesActionSkippedWhenEventHasNotes(t *testing.T) {
	store := newFakeStore()
	store.goals[5] = &models.Goal{ID: 9, ContactID: 5}
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	event := timedEvent("evt1", start, start.Add(time.Hour))
	event.Description = "agenda attached"

	rec.Reconcile("user-1", []models.CalendarEvent{event}, matchesFor("evt1", 5))

	assert.Empty(t, store.actions)
	assert.Equal(t, "agenda attached", store.artifacts[0].Content)
}

func TestNotesActionFailureDoesNotFailArtifact(t *testing.T) {
	store := newFakeStore()
	store.goals[5] = &models.Goal{ID: 9, ContactID: 5}
	store.failAction = true
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	result := rec.Reconcile("user-1", []models.CalendarEvent{timedEvent("evt1", start, start.Add(time.Hour))}, matchesFor("evt1", 5))

	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)
	assert.Len(t, store.artifacts, 1)
}

func TestMultipleMatchesFirstContactOwnsArtifact(t *testing.T) {
	store := newFakeStore()
	rec := New(store)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{timedEvent("evt1", start, start.Add(time.Hour))}
	matches := map[string][]models.ContactMatch{
		"evt1": {
			{ContactID: 3, Confidence: 1.0},
			{ContactID: 8, Confidence: 1.0},
		},
	}

	rec.Reconcile("user-1", events, matches)

	require.Len(t, store.artifacts, 1)
	assert.Equal(t, uint(3), store.artifacts[0].ContactID)
}
