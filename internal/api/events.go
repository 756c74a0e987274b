package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/metrics"
)

// keepAliveInterval spaces SSE comments so idle connections survive
// proxies.
const keepAliveInterval = 25 * time.Second

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	evType := domain.EventType(r.URL.Query().Get("type"))
	taskID := r.URL.Query().Get("task")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		limit = n
	}

	evs, err := s.emitter.Recent(evType, taskID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if evs == nil {
		evs = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": evs})
}

// handleEventsSSE streams live protocol events as server-sent events.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch, cancel := s.emitter.Subscribe()
	defer cancel()
	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				// Dropped as a slow consumer
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
