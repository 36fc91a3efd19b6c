/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ariacast/aria_radio/internal/events"
)

// handleEvents streams bus events to the client as server-sent events. Each
// connection gets its own buffered subscription; a slow client drops events
// rather than stalling bus delivery.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := make(chan events.Event, 32)
	subID := "sse-" + uuid.NewString()
	a.bus.Subscribe(subID, func(e events.Event) {
		select {
		case ch <- e:
		default:
			// Slow consumer; drop rather than block the bus.
		}
	})
	defer a.bus.Unsubscribe(subID)

	// Prime the stream with the current state so the consumer does not wait
	// for the next transition.
	if err := writeSSE(w, "snapshot", a.bus.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			if err := writeSSE(w, string(e.Type), e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}