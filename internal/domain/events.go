package domain

import "time"

// ChangeKind is the event class of one change-feed notification.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	ChangeAny    ChangeKind = "any" // subscription-side wildcard, never published
)

// ChangeEvent is one row-level change notification on the feed. Delivery is
// at-least-once with no ordering guarantee across rows; consumers treat it
// as an invalidation signal, not as event replay.
type ChangeEvent struct {
	Schema     string         `json:"schema"`
	Table      string         `json:"table"`
	Kind       ChangeKind     `json:"kind"`
	Row        map[string]any `json:"row,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
