package models

import "time"

// EntityType names the kind of domain record a change refers to.
// The set is closed: only the values declared below are ever produced.
type EntityType string

const (
	// EntityTask is a row of the "tasks" table.
	EntityTask EntityType = "task"
	// EntityNotification is a row of the "notifications" table.
	EntityNotification EntityType = "notification"
	// EntityContact is a row of the "contacts" table.
	EntityContact EntityType = "contact"
)

// Action is the kind of row-level change.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Row is a single database row as delivered by the change feed.
type Row map[string]any

// ChangeEvent is the canonical record fanned out to subscribers and
// replicated to other tabs.
type ChangeEvent struct {
	// EntityType is derived from the source table.
	EntityType EntityType `json:"entity_type"`

	// Action is the lowercased change-feed event type.
	Action Action `json:"action"`

	// Payload is the affected row: the new row for insert/update, the
	// previous row for delete. It must be JSON-serializable to cross tabs.
	Payload any `json:"payload"`

	// OccurredAt is the moment the event was normalized.
	OccurredAt time.Time `json:"occurred_at"`

	// OriginTabID identifies the tab that first observed the event from the
	// backend. It is never empty on a delivered event.
	OriginTabID string `json:"origin_tab_id"`
}

// Valid reports whether t is one of the declared entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTask, EntityNotification, EntityContact:
		return true
	}
	return false
}

// Valid reports whether a is insert, update or delete.
func (a Action) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}
