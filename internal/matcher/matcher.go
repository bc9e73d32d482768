package matcher

import (
	"strings"

	"calendar-sync-go/internal/models"
)

// ExactMatchConfidence is the only confidence value this matcher produces.
// The field exists so a probabilistic matcher could slot in later; today
// matching is exact or nothing.
const ExactMatchConfidence = 1.0

// Match scans every event's attendees against the email index and returns
// matches keyed by event ID. Lookups are case-insensitive. A contact appears
// at most once per event regardless of how many of its addresses were
// invited, and events with no matching attendee are omitted entirely.
func Match(events []models.CalendarEvent, index map[string]models.Contact) map[string][]models.ContactMatch {
	results := make(map[string][]models.ContactMatch)

	for _, event := range events {
		var matches []models.ContactMatch
		matchedContacts := make(map[uint]int)

		for _, attendee := range event.Attendees {
			email := strings.ToLower(strings.TrimSpace(attendee.Email))
			if email == "" {
				continue
			}
			contact, ok := index[email]
			if !ok {
				continue
			}
			if i, dup := matchedContacts[contact.ID]; dup {
				matches[i].MatchedEmails = append(matches[i].MatchedEmails, email)
				continue
			}
			matchedContacts[contact.ID] = len(matches)
			matches = append(matches, models.ContactMatch{
				ContactID:     contact.ID,
				Contact:       contact,
				MatchedEmails: []string{email},
				Confidence:    ExactMatchConfidence,
			})
		}

		if len(matches) > 0 {
			results[event.ID] = matches
		}
	}

	return results
}
