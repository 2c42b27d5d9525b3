package entity

import "time"

// Draft is a delivery that could not be published, parked durably for
// operator review. FailureKind carries the classified fault kind as text so
// the entity stays free of resilience imports.
type Draft struct {
	ID          int64
	GUID        string
	Channel     string
	Title       string
	Link        string
	Body        string
	FailureKind string
	CreatedAt   time.Time
}

// Validate checks the fields a parked draft must carry.
func (d *Draft) Validate() error {
	if d.Channel == "" {
		return &ValidationError{Field: "channel", Message: "channel is required"}
	}
	if d.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if d.Link != "" {
		if err := ValidateURL(d.Link); err != nil {
			return err
		}
	}
	return nil
}
