package entity

import "time"

// Delivery records one update delivered to one channel. The (DedupeKey,
// Channel) pair is unique in storage, so a re-fetched entry is spotted by
// looking up recently delivered keys.
type Delivery struct {
	ID          int64
	DedupeKey   string
	Channel     string
	FeedName    string
	Title       string
	Link        string
	DeliveredAt time.Time
}

// Validate checks the fields a delivery record must carry.
func (d *Delivery) Validate() error {
	if d.DedupeKey == "" {
		return &ValidationError{Field: "dedupe_key", Message: "dedupe key is required"}
	}
	if d.Channel == "" {
		return &ValidationError{Field: "channel", Message: "channel is required"}
	}
	return nil
}
