package contacts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"calendar-sync-go/internal/models"
)

// Store is the slice of the contact store the index builder needs. The
// implementation must exclude self-contacts in the query itself.
type Store interface {
	ListMatchableContacts(userID string) ([]models.Contact, error)
}

// BuildEmailIndex loads a user's contacts and returns a lowercased
// email→contact lookup. Addresses are unioned from the primary field, the
// additional-emails list, and the per-email join rows; the last source
// written wins if they ever disagree on an address.
func BuildEmailIndex(store Store, userID string) (map[string]models.Contact, error) {
	contactList, err := store.ListMatchableContacts(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to build contact index: %w", err)
	}

	index := make(map[string]models.Contact)
	for _, contact := range contactList {
		for _, email := range EmailsFor(&contact) {
			index[email] = contact
		}
	}
	return index, nil
}

// EmailsFor returns every known address of a contact, lowercased and
// deduplicated, from all three sources.
func EmailsFor(contact *models.Contact) []string {
	seen := make(map[string]bool)
	var emails []string

	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || seen[email] {
			return
		}
		seen[email] = true
		emails = append(emails, email)
	}

	add(contact.Email)

	if contact.AdditionalEmails != "" {
		var additional []string
		if err := json.Unmarshal([]byte(contact.AdditionalEmails), &additional); err != nil {
			logrus.WithField("contact_id", contact.ID).Warnf("Skipping malformed additional_emails: %v", err)
		} else {
			for _, email := range additional {
				add(email)
			}
		}
	}

	for _, row := range contact.Emails {
		add(row.Email)
	}

	return emails
}
