package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/interfaces/rest"
	"github.com/petinel/payments-service/internal/interfaces/rest/middleware"
	"github.com/petinel/payments-service/internal/watch"
)

type statusEvent struct {
	AttemptID string `json:"attempt_id"`
	Status    string `json:"status"`
	Advisory  bool   `json:"advisory,omitempty"`
}

// StreamAttemptEvents holds the connection open and pushes status changes as
// server-sent events. The stream ends after the terminal event, or when the
// client goes away; a client that missed it reconnects and gets the current
// state as the first event.
func (h *Handlers) StreamAttemptEvents(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("attemptID")
	customerID := middleware.CustomerIDFromContext(r.Context())

	attempt, err := h.status.GetAttempt(r.Context(), attemptID, customerID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		rest.WriteError(w, application.NewInternalError(fmt.Errorf("streaming unsupported")), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(evt statusEvent) {
		data, _ := json.Marshal(evt)
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
		flusher.Flush()
	}

	// Current state first, so reconnecting clients never miss a terminal
	// transition that landed while they were away.
	writeEvent(statusEvent{AttemptID: attempt.ID, Status: string(attempt.Status)})
	if attempt.Status.IsTerminal() {
		return
	}

	events := make(chan watch.Event)
	watcher := watch.NewWatcher(h.hub, h.status, h.logger)
	go func() {
		if err := watcher.Run(r.Context(), attemptID, events); err != nil {
			h.logger.Error("attempt watcher stopped", "attempt_id", attemptID, "error", err)
		}
	}()

	for evt := range events {
		writeEvent(statusEvent{AttemptID: evt.AttemptID, Status: string(evt.Status), Advisory: evt.Advisory})
		if evt.Status.IsTerminal() && !evt.Advisory {
			return
		}
	}
}
