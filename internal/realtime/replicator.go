package realtime

import (
	"encoding/json"
	"sync"

	"github.com/MKhiriev/tabsync/internal/broadcast"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
)

// CrossTabReplicator copies events between the local [EventBus] and the
// other tabs of the session.
//
// Only events this tab originated are sent, and only after every local
// subscriber has received them. Events received from the medium are
// published locally and, because their origin is another tab, never sent
// again: an event crosses the medium at most once.
type CrossTabReplicator struct {
	tabID  string
	medium broadcast.Medium
	bus    *EventBus

	unsubscribe func()
	closeOnce   sync.Once

	logger *logger.Logger
}

// NewCrossTabReplicator attaches to bus and medium. The medium must already
// be open; the replicator takes ownership and closes it in Close.
func NewCrossTabReplicator(tabID string, medium broadcast.Medium, bus *EventBus, log *logger.Logger) (*CrossTabReplicator, error) {
	if medium == nil {
		return nil, ErrNoBroadcastMedium
	}
	if tabID == "" {
		return nil, ErrEmptyTabID
	}

	r := &CrossTabReplicator{
		tabID:  tabID,
		medium: medium,
		bus:    bus,
		logger: log.Component("cross_tab_replicator"),
	}

	medium.OnMessage(r.receive)
	r.unsubscribe = bus.Observe(r.forward)

	return r, nil
}

// forward sends locally originated events to the other tabs.
func (r *CrossTabReplicator) forward(event models.ChangeEvent) {
	if event.OriginTabID != r.tabID {
		return
	}
	r.send(event)
}

// BroadcastToTabs sends event to the other tabs without publishing it
// locally. The origin is always this tab's id, whatever the caller set.
func (r *CrossTabReplicator) BroadcastToTabs(event models.ChangeEvent) {
	if event.OriginTabID != "" && event.OriginTabID != r.tabID {
		r.logger.Warn().
			Str("origin_tab_id", event.OriginTabID).
			Str("entity_type", string(event.EntityType)).
			Msg("foreign origin replaced on manual broadcast")
	}
	event.OriginTabID = r.tabID
	r.send(event)
}

func (r *CrossTabReplicator) send(event models.ChangeEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("entity_type", string(event.EntityType)).
			Str("action", string(event.Action)).
			Msg("event is not serializable, cross-tab send dropped")
		return
	}

	if err = r.medium.Send(message); err != nil {
		r.logger.Warn().
			Err(err).
			Str("entity_type", string(event.EntityType)).
			Msg("cross-tab send failed")
	}
}

// receive handles a message from another tab.
func (r *CrossTabReplicator) receive(message []byte) {
	var event models.ChangeEvent
	if err := json.Unmarshal(message, &event); err != nil {
		r.logger.Warn().Err(err).Msg("malformed cross-tab message dropped")
		return
	}

	if event.OriginTabID == "" {
		r.logger.Warn().Msg("cross-tab message without origin dropped")
		return
	}
	if event.OriginTabID == r.tabID {
		return
	}

	r.bus.Publish(event)
}

// Close detaches from the bus and closes the medium. Only the first call has
// an effect.
func (r *CrossTabReplicator) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.unsubscribe()
		r.medium.OnMessage(nil)
		err = r.medium.Close()
	})
	return err
}
