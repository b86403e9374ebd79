package domain

import "time"

// EventAction names what happened to the listing inventory.
type EventAction string

const (
	EventCreated            EventAction = "created"
	EventUpdated            EventAction = "updated"
	EventDeleted            EventAction = "deleted"
	EventImported           EventAction = "imported"
	EventMemosMatched       EventAction = "memos_matched"
	EventImagesChanged      EventAction = "images_changed"
	EventCollectionsChanged EventAction = "collections_changed"
)

// Known reports whether a is an action consumers understand.
func (a EventAction) Known() bool {
	switch a {
	case EventCreated, EventUpdated, EventDeleted, EventImported,
		EventMemosMatched, EventImagesChanged, EventCollectionsChanged:
		return true
	}
	return false
}

// ListingEvent is published whenever the inventory changes
type ListingEvent struct {
	Action     EventAction `json:"action"`
	ListingIDs []uint      `json:"listing_ids,omitempty"`
	Count      int         `json:"count,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewListingEvent stamps an event with the current time.
func NewListingEvent(action EventAction, ids ...uint) ListingEvent {
	return ListingEvent{
		Action:     action,
		ListingIDs: ids,
		Count:      len(ids),
		OccurredAt: time.Now(),
	}
}
