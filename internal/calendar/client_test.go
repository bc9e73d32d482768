package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
)

type staticTokenSource struct {
	token *oauth2.Token
	err   error
}

func (s *staticTokenSource) Token() (*oauth2.Token, error) {
	return s.token, s.err
}

type recordingSaver struct {
	calls         int
	integrationID uint
	accessToken   string
	refreshToken  string
	expiresAt     *time.Time
	err           error
}

func (r *recordingSaver) UpdateTokens(integrationID uint, accessToken, refreshToken string, expiresAt *time.Time) error {
	r.calls++
	r.integrationID = integrationID
	r.accessToken = accessToken
	r.refreshToken = refreshToken
	r.expiresAt = expiresAt
	return r.err
}

func TestNotifyTokenSourcePersistsRotatedToken(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	rotated := &oauth2.Token{AccessToken: "new", RefreshToken: "refresh", Expiry: expiry}
	saver := &recordingSaver{}

	source := &notifyTokenSource{
		src:           &staticTokenSource{token: rotated},
		current:       &oauth2.Token{AccessToken: "old", RefreshToken: "refresh"},
		integrationID: 42,
		saver:         saver,
	}

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", token.AccessToken)
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, uint(42), saver.integrationID)
	assert.Equal(t, "new", saver.accessToken)
	// refresh token unchanged, so not rewritten
	assert.Empty(t, saver.refreshToken)
	require.NotNil(t, saver.expiresAt)
	assert.Equal(t, expiry, *saver.expiresAt)

	// a second fetch of the same token does not persist again
	_, err = source.Token()
	require.NoError(t, err)
	assert.Equal(t, 1, saver.calls)
}

func TestNotifyTokenSourcePersistsReissuedRefreshToken(t *testing.T) {
	rotated := &oauth2.Token{AccessToken: "new", RefreshToken: "new-refresh"}
	saver := &recordingSaver{}

	source := &notifyTokenSource{
		src:     &staticTokenSource{token: rotated},
		current: &oauth2.Token{AccessToken: "old", RefreshToken: "old-refresh"},
		saver:   saver,
	}

	_, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", saver.refreshToken)
}

func TestNotifyTokenSourceFailsWhenPersistFails(t *testing.T) {
	saver := &recordingSaver{err: errors.New("store down")}

	source := &notifyTokenSource{
		src:     &staticTokenSource{token: &oauth2.Token{AccessToken: "new"}},
		current: &oauth2.Token{AccessToken: "old"},
		saver:   saver,
	}

	_, err := source.Token()
	assert.Error(t, err)
}

func TestNotifyTokenSourcePropagatesSourceError(t *testing.T) {
	source := &notifyTokenSource{
		src:     &staticTokenSource{err: errors.New("refresh rejected")},
		current: &oauth2.Token{AccessToken: "old"},
		saver:   &recordingSaver{},
	}

	_, err := source.Token()
	assert.Error(t, err)
}

func TestNormalizeEvent(t *testing.T) {
	item := &gcal.Event{
		Id:               "evt1",
		Summary:          "Planning",
		Location:         "Room 4",
		HtmlLink:         "https://calendar.google.com/event?eid=evt1",
		HangoutLink:      "https://meet.google.com/abc",
		RecurringEventId: "series-1",
		Status:           "confirmed",
		Start:            &gcal.EventDateTime{DateTime: "2024-01-01T10:00:00Z"},
		End:              &gcal.EventDateTime{DateTime: "2024-01-01T10:30:00Z"},
		Attendees: []*gcal.EventAttendee{
			{Email: " a@x.com ", DisplayName: "Ana", ResponseStatus: "accepted"},
			{Email: ""},
			nil,
		},
		Organizer: &gcal.EventOrganizer{Email: "org@x.com", DisplayName: "Org"},
	}

	event := normalizeEvent(item)

	assert.Equal(t, "evt1", event.ID)
	assert.Equal(t, "Planning", event.Title)
	assert.Equal(t, "series-1", event.RecurringEventID)
	require.Len(t, event.Attendees, 1)
	assert.Equal(t, "a@x.com", event.Attendees[0].Email)
	require.NotNil(t, event.Organizer)
	assert.True(t, event.Organizer.Organizer)
	assert.True(t, event.Start.HasTime)
	minutes := event.DurationMinutes()
	require.NotNil(t, minutes)
	assert.Equal(t, 30, *minutes)
}

func TestNormalizeEventToleratesMissingFields(t *testing.T) {
	event := normalizeEvent(&gcal.Event{Id: "bare"})

	assert.Equal(t, "bare", event.ID)
	assert.Empty(t, event.Attendees)
	assert.Nil(t, event.Organizer)
	assert.True(t, event.Start.IsZero())
	assert.Nil(t, event.DurationMinutes())
}

func TestNormalizeEventAllDay(t *testing.T) {
	event := normalizeEvent(&gcal.Event{
		Id:    "evt1",
		Start: &gcal.EventDateTime{Date: "2024-01-01"},
		End:   &gcal.EventDateTime{Date: "2024-01-02"},
	})

	assert.False(t, event.Start.HasTime)
	assert.Equal(t, "2024-01-01", event.Start.Date)
	assert.Nil(t, event.DurationMinutes())
}
