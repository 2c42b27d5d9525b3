// Package entity defines the core domain entities and validation logic for the
// relay. It contains the fundamental business objects such as Update and Draft,
// along with their validation rules and domain-specific errors.
package entity

import "time"

// Update represents one feed entry normalized for delivery. Content is the
// sanitized plain-text body; Summary and Language are filled by the translation
// stage for the channel being delivered to.
type Update struct {
	GUID        string
	FeedName    string
	FeedURL     string
	Title       string
	Link        string
	Content     string
	Summary     string
	Language    string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// DedupeKey returns the identity used to spot already-delivered entries.
// Feeds without GUIDs fall back to the entry link.
func (u *Update) DedupeKey() string {
	if u.GUID != "" {
		return u.GUID
	}
	return u.Link
}

// Validate checks the fields a deliverable update must carry.
// Returns a ValidationError naming the offending field.
func (u *Update) Validate() error {
	if u.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if u.Link == "" {
		return &ValidationError{Field: "link", Message: "link is required"}
	}
	if err := ValidateURL(u.Link); err != nil {
		return err
	}
	return nil
}
