package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports liveness and the orchestrator's current stage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.deps.Orchestrator != nil {
		body["stage"] = string(s.deps.Orchestrator.Stage())
	}
	writeJSON(w, http.StatusOK, body)
}

// runRequest is the optional POST /api/run body.
type runRequest struct {
	Formats      []string `json:"formats,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

// handleRun starts one pipeline run in the background and returns its
// job ID immediately. Only one run may be in flight at a time.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orchestrator == nil || s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "run control is not available")
		return
	}

	var req runRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var formats []output.Format
	if len(req.Formats) > 0 {
		parsed, err := output.ParseFormats(req.Formats)
		if err != nil {
			var ce *cli.ConfigError
			if errors.As(err, &ce) {
				writeError(w, http.StatusBadRequest, ce.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = parsed
	}

	s.mu.Lock()
	if s.runInFlight {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	s.runInFlight = true
	s.mu.Unlock()

	job, err := s.deps.Jobs.Create(r.Context(), "aggregate")
	if err != nil {
		s.clearRunInFlight()
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	go func() {
		defer s.clearRunInFlight()

		// The run outlives the HTTP request on purpose.
		ctx := context.Background()
		if err := s.deps.Jobs.Start(ctx, job.ID); err != nil {
			s.logger.Error("job start failed", "job_id", job.ID, "error", err)
		}

		result, runErr := s.deps.Orchestrator.Run(ctx, pipeline.RunOptions{
			Formats:      formats,
			ForceRefresh: req.ForceRefresh,
		})
		if err := s.deps.Jobs.Finish(ctx, job.ID, result, runErr); err != nil {
			s.logger.Error("job finish failed", "job_id", job.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) clearRunInFlight() {
	s.mu.Lock()
	s.runInFlight = false
	s.mu.Unlock()
}

// handleRuns returns the durable run history, oldest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunLog == nil {
		writeJSON(w, http.StatusOK, []events.RunRecord{})
		return
	}
	records, err := s.deps.RunLog.Records()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read run log")
		return
	}
	if records == nil {
		records = []events.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleJobs lists recent jobs, newest first.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry is not available")
		return
	}
	list, err := s.deps.Jobs.List(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleJob returns one job by ID.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry is not available")
		return
	}
	job, err := s.deps.Jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleSources returns the current source records.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "source store is not available")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Store.Snapshot())
}

// handleReload re-reads configuration in place.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reload == nil {
		writeError(w, http.StatusServiceUnavailable, "config reload is not available")
		return
	}
	if err := s.deps.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reload failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// handleEvents streams pipeline events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the headers go out so a client that has seen the
	// response start never misses an event.
	ch, unsubscribe := s.hub.subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// sseHub fans bus events out to connected event-stream clients. Slow
// clients drop events rather than stall the bus dispatch loop.
type sseHub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]chan events.Event
	closed  bool
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[int]chan events.Event)}
}

func (h *sseHub) subscribe() (<-chan events.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan events.Event, 64)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.clients[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(c)
		}
	}
}

func (h *sseHub) broadcast(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
			// Client buffer full; drop for this client.
		}
	}
}

func (h *sseHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}
