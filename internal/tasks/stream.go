package tasks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// streamPollInterval is how often the message stream checks for new rows.
const streamPollInterval = 5 * time.Second

// StreamMessages handles GET /api/v1/tasks/{id}/messages/stream. It is a
// server-sent events endpoint backed by polling: every tick it emits the
// messages created since the previous one. The connection stays open until
// the client goes away.
func (h *Handler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	_, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Send the backlog first so a reconnecting client misses nothing. The
	// cursor is the last message sent, keyed on (created_at, id) so messages
	// that share a timestamp are not dropped between polls.
	since := time.Time{}
	sinceID := uuid.Nil
	interval := h.StreamInterval
	if interval <= 0 {
		interval = streamPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msgs, err := h.Messages.ListSince(r.Context(), task.ID, since, sinceID)
		if err != nil {
			h.Logger.Error("stream poll", "task_id", task.ID, "error", err)
			return
		}
		for _, m := range msgs {
			data, err := json.Marshal(m)
			if err != nil {
				h.Logger.Error("stream encode", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			since = m.CreatedAt
			sinceID = m.ID
		}
		if len(msgs) > 0 {
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
