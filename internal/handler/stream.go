package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sffxzzp/northbound-gather/internal/watch"
)

// keepaliveInterval is how often an SSE comment line is sent so proxies do
// not drop idle connections.
const keepaliveInterval = 25 * time.Second

// StreamHandler bridges hub subscriptions onto server-sent event responses.
type StreamHandler struct {
	hub    *watch.Hub
	logger *slog.Logger
}

func NewStreamHandler(hub *watch.Hub, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// HandleEvents streams every change to the event collection.
//
// HTTP: GET /api/events/stream
func (h *StreamHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ch, cancel := h.hub.SubscribeAll()
	defer cancel()
	h.serve(w, r, ch)
}

// HandleEvent streams changes to a single event.
//
// HTTP: GET /api/events/{id}/stream
func (h *StreamHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ch, cancel := h.hub.Subscribe(chi.URLParam(r, "id"))
	defer cancel()
	h.serve(w, r, ch)
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, ch <-chan watch.Change) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case change, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				h.logger.Error("failed to encode change", slog.String("error", err.Error()))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Kind, payload)
			flusher.Flush()
		}
	}
}
