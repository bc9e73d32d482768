package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calendar-sync-go/internal/config"
	"calendar-sync-go/internal/models"
)

// TokenSaver persists rotated OAuth tokens back to the credential store.
type TokenSaver interface {
	UpdateTokens(integrationID uint, accessToken, refreshToken string, expiresAt *time.Time) error
}

// Window bounds one event-listing request.
type Window struct {
	Start           time.Time
	End             time.Time
	MaxResults      int64
	IncludeDeclined bool
	SingleEvents    bool
}

// EventLister is the provider-facing contract consumed by the sync engine.
type EventLister interface {
	ListEvents(ctx context.Context, integration *models.Integration, window Window) ([]models.CalendarEvent, error)
}

// Client lists Google Calendar events for a stored integration.
type Client struct {
	clientID     string
	clientSecret string
	saver        TokenSaver
}

// NewClient creates a Google Calendar client
func NewClient(cfg *config.GoogleConfig, saver TokenSaver) *Client {
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		saver:        saver,
	}
}

// notifyTokenSource wraps an oauth2.TokenSource and persists any rotated
// token before the provider call proceeds. A failed persist fails the call:
// crashing after a refresh but before the write would force a redundant
// refresh on the next run.
type notifyTokenSource struct {
	src           oauth2.TokenSource
	current       *oauth2.Token
	integrationID uint
	saver         TokenSaver
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.current.AccessToken {
		refresh := ""
		if token.RefreshToken != s.current.RefreshToken {
			refresh = token.RefreshToken
		}
		var expiry *time.Time
		if !token.Expiry.IsZero() {
			expiry = &token.Expiry
		}
		if err := s.saver.UpdateTokens(s.integrationID, token.AccessToken, refresh, expiry); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		logrus.WithField("integration_id", s.integrationID).Info("Persisted rotated calendar token")
		s.current = token
	}
	return token, nil
}

// ListEvents fetches events in the window from the user's primary calendar
// and returns them normalized. Events without attendees carry no
// relationship signal and are dropped; cancelled events are dropped unless
// explicitly requested.
func (c *Client) ListEvents(ctx context.Context, integration *models.Integration, window Window) ([]models.CalendarEvent, error) {
	service, err := c.newService(ctx, integration)
	if err != nil {
		return nil, err
	}

	maxResults := window.MaxResults
	if maxResults <= 0 {
		maxResults = 250
	}

	var events []models.CalendarEvent
	pageToken := ""
	for {
		call := service.Events.List("primary").
			TimeMin(window.Start.Format(time.RFC3339)).
			TimeMax(window.End.Format(time.RFC3339)).
			MaxResults(maxResults).
			SingleEvents(window.SingleEvents).
			ShowDeleted(window.IncludeDeclined)
		if window.SingleEvents {
			call = call.OrderBy("startTime")
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list calendar events: %w", err)
		}

		for _, item := range response.Items {
			event := normalizeEvent(item)
			if len(event.Attendees) == 0 {
				continue
			}
			if event.Status == models.EventStatusCancelled && !window.IncludeDeclined {
				continue
			}
			events = append(events, event)
		}

		pageToken = response.NextPageToken
		if pageToken == "" || int64(len(events)) >= maxResults {
			break
		}
	}

	return events, nil
}

// newService builds an authenticated Calendar service whose token source
// writes rotated credentials back through the saver.
func (c *Client) newService(ctx context.Context, integration *models.Integration) (*gcal.Service, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Scopes:       []string{gcal.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		AccessToken:  integration.AccessToken,
		RefreshToken: integration.RefreshToken,
		TokenType:    "Bearer",
	}
	if integration.ExpiresAt != nil {
		token.Expiry = *integration.ExpiresAt
	}

	source := &notifyTokenSource{
		src:           oauthConfig.TokenSource(ctx, token),
		current:       token,
		integrationID: integration.ID,
		saver:         c.saver,
	}

	service, err := gcal.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

// normalizeEvent maps a provider event into the internal shape. Any field
// may be absent on the provider side.
func normalizeEvent(item *gcal.Event) models.CalendarEvent {
	event := models.CalendarEvent{
		ID:               item.Id,
		Title:            item.Summary,
		Description:      item.Description,
		Location:         item.Location,
		HTMLLink:         item.HtmlLink,
		HangoutLink:      item.HangoutLink,
		RecurringEventID: item.RecurringEventId,
		Status:           item.Status,
		Start:            normalizeEventTime(item.Start),
		End:              normalizeEventTime(item.End),
	}

	for _, attendee := range item.Attendees {
		if attendee == nil || attendee.Email == "" {
			continue
		}
		event.Attendees = append(event.Attendees, models.Attendee{
			Email:          strings.TrimSpace(attendee.Email),
			DisplayName:    attendee.DisplayName,
			ResponseStatus: attendee.ResponseStatus,
			Self:           attendee.Self,
			Organizer:      attendee.Organizer,
		})
	}

	if item.Organizer != nil && item.Organizer.Email != "" {
		event.Organizer = &models.Attendee{
			Email:       item.Organizer.Email,
			DisplayName: item.Organizer.DisplayName,
			Organizer:   true,
		}
	}

	return event
}

func normalizeEventTime(t *gcal.EventDateTime) models.EventTime {
	if t == nil {
		return models.EventTime{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return models.EventTime{DateTime: parsed, HasTime: true}
		}
	}
	return models.EventTime{Date: t.Date}
}
