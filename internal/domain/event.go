package domain

// EventKind enumerates messages pushed to subscribers.
type EventKind string

const (
	EventInitialCount EventKind = "initialCount"
	EventNewRecords   EventKind = "newRecords"
)

// Event is the envelope written on a subscriber connection.
type Event struct {
	Kind EventKind `json:"type"`
	Data any       `json:"data"`
}

// InitialCount carries the recent-activity count sent once per connection.
type InitialCount struct {
	Count int `json:"count"`
}

// NewRecords carries a capped slice of a delta plus the true inserted count.
type NewRecords struct {
	Records       []Record `json:"records"`
	TotalNewCount int      `json:"totalNewCount"`
}

// NewInitialCountEvent builds the registration-time event.
func NewInitialCountEvent(count int) Event {
	return Event{Kind: EventInitialCount, Data: InitialCount{Count: count}}
}

// NewRecordsEvent builds a delta event keeping at most limit records.
// A non-positive limit keeps all of them.
func NewRecordsEvent(delta Delta, limit int) Event {
	records := delta.Records
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	payload := make([]Record, len(records))
	copy(payload, records)

	return Event{
		Kind: EventNewRecords,
		Data: NewRecords{Records: payload, TotalNewCount: delta.Total()},
	}
}
