package models

import "time"

// Event lifecycle statuses as reported by the provider.
const (
	EventStatusConfirmed = "confirmed"
	EventStatusCancelled = "cancelled"
)

// EventTime is either a date-only value (all-day events) or a timestamp.
type EventTime struct {
	Date     string    `json:"date,omitempty"`
	DateTime time.Time `json:"date_time,omitempty"`
	HasTime  bool      `json:"has_time"`
}

// IsZero reports whether the provider supplied no timing at all.
func (t EventTime) IsZero() bool {
	return !t.HasTime && t.Date == ""
}

// Time returns the best available instant for ordering and timestamps.
// Date-only values resolve to midnight UTC of that day.
func (t EventTime) Time() time.Time {
	if t.HasTime {
		return t.DateTime
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Attendee is one invitee on a calendar event.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	ResponseStatus string `json:"response_status,omitempty"`
	Self           bool   `json:"self,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
}

// CalendarEvent is the provider-independent shape of a fetched event.
// Every field other than ID may be absent.
type CalendarEvent struct {
	ID               string     `json:"id"`
	Title            string     `json:"title,omitempty"`
	Description      string     `json:"description,omitempty"`
	Start            EventTime  `json:"start"`
	End              EventTime  `json:"end"`
	Attendees        []Attendee `json:"attendees,omitempty"`
	Organizer        *Attendee  `json:"organizer,omitempty"`
	Location         string     `json:"location,omitempty"`
	HTMLLink         string     `json:"html_link,omitempty"`
	HangoutLink      string     `json:"hangout_link,omitempty"`
	RecurringEventID string     `json:"recurring_event_id,omitempty"`
	Status           string     `json:"status,omitempty"`
}

// DurationMinutes returns the event length in minutes, or nil when either
// end is date-only or missing.
func (e *CalendarEvent) DurationMinutes() *int {
	if !e.Start.HasTime || !e.End.HasTime {
		return nil
	}
	minutes := int(e.End.DateTime.Sub(e.Start.DateTime).Minutes())
	return &minutes
}

// ContactMatch links one event to one contact via matched attendee emails.
// Confidence is fixed at 1.0: matching is exact, never fuzzy.
type ContactMatch struct {
	ContactID     uint     `json:"contact_id"`
	Contact       Contact  `json:"contact"`
	MatchedEmails []string `json:"matched_emails"`
	Confidence    float64  `json:"confidence"`
}
