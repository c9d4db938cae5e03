package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RESTAdapter serves renderers that cannot hold a websocket: they long-poll
// for events and post their input.
type RESTAdapter struct {
	handler InputHandler
	waiters map[string]chan *Event // poll id -> pending events
	maxWait time.Duration
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRESTAdapter creates a long-poll adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		waiters: make(map[string]chan *Event),
		maxWait: 30 * time.Second,
		logger:  logger,
	}
}

func (a *RESTAdapter) Name() string { return "rest" }

func (a *RESTAdapter) OnInput(h InputHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

func (a *RESTAdapter) Close() error { return nil }

// Publish delivers an event to every waiting poll. Frames are not polled.
func (a *RESTAdapter) Publish(_ context.Context, ev *Event) error {
	if ev.Type == EventFrame {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ch := range a.waiters {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Routes returns a chi router with the poll and input endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/poll", a.handlePoll)
	r.Post("/input", a.handleInput)
	return r
}

// handlePoll waits for at least one event, then returns everything queued.
// ?wait=5s bounds the wait.
func (a *RESTAdapter) handlePoll(w http.ResponseWriter, r *http.Request) {
	wait := a.maxWait
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, `{"error":"invalid wait"}`, http.StatusBadRequest)
			return
		}
		if d < wait {
			wait = d
		}
	}

	id := uuid.New().String()
	ch := make(chan *Event, 32)
	a.mu.Lock()
	a.waiters[id] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, id)
		a.mu.Unlock()
	}()

	events := []*Event{}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ev := <-ch:
		events = append(events, ev)
	drain:
		for {
			select {
			case ev := <-ch:
				events = append(events, ev)
			default:
				break drain
			}
		}
	case <-timer.C:
	case <-r.Context().Done():
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// handleInput accepts one renderer message.
func (a *RESTAdapter) handleInput(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	in.Source = a.Name()

	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h == nil {
		http.Error(w, `{"error":"input not accepted"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := h(r.Context(), &in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
