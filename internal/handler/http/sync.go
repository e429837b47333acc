package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/models"
)

// eventStreamBuffer is how many events a slow stream client may lag behind
// before events are dropped for it.
const eventStreamBuffer = 64

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	if _, err := utils.WriteJSON(w, h.session.Status(), http.StatusOK); err != nil {
		log.Err(err).Msg("writing sync status failed")
	}
}

// streamEvents follows the session as server-sent events. The first frame is
// the current status; every delivered change follows as a "change" frame.
// The subscription lives exactly as long as the request.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	if _, ok := w.(http.Flusher); !ok {
		log.Error().Err(ErrStreamingUnsupported).Msg("cannot stream events")
		http.Error(w, ErrStreamingUnsupported.Error(), statusFromError(ErrStreamingUnsupported))
		return
	}

	events := make(chan models.ChangeEvent, eventStreamBuffer)
	unsubscribe := h.session.Subscribe(func(event models.ChangeEvent) {
		select {
		case events <- event:
		default:
			log.Warn().
				Str("entity_type", string(event.EntityType)).
				Str("action", string(event.Action)).
				Msg("event stream is lagging, event dropped")
		}
	})
	defer unsubscribe()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := utils.WriteSSE(w, "status", h.session.Status()); err != nil {
		log.Err(err).Msg("writing initial status failed")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	log.Debug().Msg("event stream opened")
	defer log.Debug().Msg("event stream closed")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if err := utils.WriteSSE(w, "change", event); err != nil {
				log.Err(err).Msg("writing change event failed")
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	}
}

func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var event models.ChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Err(err).Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	if !event.EntityType.Valid() || !event.Action.Valid() {
		log.Warn().
			Str("entity_type", string(event.EntityType)).
			Str("action", string(event.Action)).
			Msg("rejected broadcast of invalid event")
		http.Error(w, ErrInvalidChangeEvent.Error(), statusFromError(ErrInvalidChangeEvent))
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	h.session.BroadcastToTabs(event)

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) reconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Reconnect()

	if _, err := utils.WriteJSON(w, h.session.Status(), http.StatusOK); err != nil {
		logger.FromRequest(r).Err(err).Msg("writing sync status failed")
	}
}
