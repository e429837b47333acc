package realtime

import (
	"slices"
	"strings"
	"time"

	"github.com/MKhiriev/tabsync/models"
)

// tableEntities is the closed set of tables this layer understands.
var tableEntities = map[string]models.EntityType{
	"tasks":         models.EntityTask,
	"notifications": models.EntityNotification,
	"contacts":      models.EntityContact,
}

// EntityTypeForTable maps a table name to its entity type. ok is false for
// tables outside the closed set.
func EntityTypeForTable(table string) (models.EntityType, bool) {
	entity, ok := tableEntities[table]
	return entity, ok
}

// KnownTables returns the recognised table names in sorted order.
func KnownTables() []string {
	tables := make([]string, 0, len(tableEntities))
	for table := range tableEntities {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	return tables
}

// Normalizer maps raw change notifications to [models.ChangeEvent].
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer stamping events with the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize builds the canonical event for a change on table.
//
// The caller must have checked table with [EntityTypeForTable]; an unknown
// table yields an empty EntityType rather than a guess.
func (n *Normalizer) Normalize(table, eventType string, newRow, oldRow models.Row, originTabID string) models.ChangeEvent {
	entity := tableEntities[table]

	var payload models.Row
	if newRow != nil {
		payload = newRow
	} else {
		payload = oldRow
	}

	return models.ChangeEvent{
		EntityType:  entity,
		Action:      models.Action(strings.ToLower(eventType)),
		Payload:     payload,
		OccurredAt:  n.now().UTC(),
		OriginTabID: originTabID,
	}
}
