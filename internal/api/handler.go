package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/command"
	"github.com/nidhogg/herd/internal/gateway"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"github.com/nidhogg/herd/internal/world"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	herd     *world.Herd
	species  command.SpeciesLister
	commands *command.Registry
	gw       *gateway.Gateway
	restGW   *gateway.RESTAdapter
	wsHub    *gateway.WSHub
	clock    *world.WorldClock
	logger   *zap.Logger
}

// NewHandler creates a new API handler. restGW and wsHub may be nil.
func NewHandler(
	herd *world.Herd,
	species command.SpeciesLister,
	commands *command.Registry,
	gw *gateway.Gateway,
	restGW *gateway.RESTAdapter,
	wsHub *gateway.WSHub,
	clock *world.WorldClock,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		herd:     herd,
		species:  species,
		commands: commands,
		gw:       gw,
		restGW:   restGW,
		wsHub:    wsHub,
		clock:    clock,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Agent routes
		r.Get("/agents", h.listAgents)
		r.Post("/agents", h.spawnAgent)
		r.Delete("/agents", h.removeAllAgents)
		r.Get("/agents/{id}", h.getAgent)
		r.Delete("/agents/{id}", h.removeAgent)
		r.Post("/agents/{id}/events", h.sendEvent)

		r.Get("/species", h.listSpecies)
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)
		r.Post("/command", h.runCommand)

		// World routes
		r.Get("/world/status", h.worldStatus)
		r.Put("/world/screen", h.resizeScreen)
		r.Put("/world/speed", h.setSpeed)

		// Gateway routes
		r.Get("/events", h.recentEvents)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
	})
	if h.wsHub != nil {
		r.Handle("/ws", h.wsHub)
	}

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "world": "herd"})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.herd.Snapshots())
}

type spawnRequest struct {
	Species string `json:"species"`
	Count   int    `json:"count,omitempty"`
}

func (h *Handler) spawnAgent(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Species == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "species is required"})
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 0 || req.Count > 50 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be between 1 and 50"})
		return
	}

	spawned := make([]agent.Snapshot, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		a, err := h.herd.Spawn(r.Context(), req.Species)
		if err != nil {
			writeError(w, err)
			return
		}
		spawned = append(spawned, a.Snapshot())
	}
	if len(spawned) == 1 {
		writeJSON(w, http.StatusCreated, spawned[0])
		return
	}
	writeJSON(w, http.StatusCreated, spawned)
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := h.herd.Find(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	writeJSON(w, http.StatusOK, a.Snapshot())
}

func (h *Handler) removeAgent(w http.ResponseWriter, r *http.Request) {
	id := roster.Handle(chi.URLParam(r, "id"))
	if err := h.herd.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) removeAllAgents(w http.ResponseWriter, r *http.Request) {
	n := h.herd.RemoveAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

type eventRequest struct {
	Type string `json:"type"`
	On   bool   `json:"on,omitempty"`
	X    int    `json:"x,omitempty"`
	Y    int    `json:"y,omitempty"`
}

func (h *Handler) sendEvent(w http.ResponseWriter, r *http.Request) {
	id := roster.Handle(chi.URLParam(r, "id"))
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	kind, err := agent.ParseKind(req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	ev := agent.Event{Kind: kind, On: req.On, Point: geom.Point{X: req.X, Y: req.Y}}
	if err := h.herd.Dispatch(r.Context(), id, ev); err != nil {
		writeError(w, err)
		return
	}
	if kind == agent.KindRemove {
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
		return
	}
	a, ok := h.herd.Get(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
		return
	}
	writeJSON(w, http.StatusOK, a.Snapshot())
}

func (h *Handler) listSpecies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.species.List())
}

type settingsView struct {
	SpeechEnabled    bool  `json:"speech_enabled"`
	SpeechDurationMS int64 `json:"speech_duration_ms"`
	SoundEnabled     bool  `json:"sound_enabled"`
}

type settingsUpdate struct {
	SpeechEnabled    *bool  `json:"speech_enabled"`
	SpeechDurationMS *int64 `json:"speech_duration_ms"`
	SoundEnabled     *bool  `json:"sound_enabled"`
}

func viewOf(s agent.Settings) settingsView {
	return settingsView{
		SpeechEnabled:    s.SpeechEnabled,
		SpeechDurationMS: s.SpeechDuration.Milliseconds(),
		SoundEnabled:     s.SoundEnabled,
	}
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(h.herd.Settings()))
}

// updateSettings applies the fields present in the body.
func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s := h.herd.Settings()
	if req.SpeechEnabled != nil {
		s.SpeechEnabled = *req.SpeechEnabled
	}
	if req.SpeechDurationMS != nil {
		if *req.SpeechDurationMS <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "speech_duration_ms must be positive"})
			return
		}
		s.SpeechDuration = time.Duration(*req.SpeechDurationMS) * time.Millisecond
	}
	if req.SoundEnabled != nil {
		s.SoundEnabled = *req.SoundEnabled
	}
	h.herd.SetSettings(s)
	writeJSON(w, http.StatusOK, viewOf(s))
}

type commandRequest struct {
	Input string `json:"input"`
}

func (h *Handler) runCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Input == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return
	}
	result, err := h.commands.Dispatch(r.Context(), req.Input, &command.CommandContext{Source: "api"})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"world":       "herd",
		"agent_count": h.herd.Len(),
		"screen":      h.herd.Screen().UsableArea(),
		"adapters":    h.gw.Adapters(),
	}
	if h.clock != nil {
		status["world_time"] = h.clock.WorldTime()
		status["ticks"] = h.clock.Ticks()
		status["speed"] = h.clock.Speed()
		status["tick_interval_ms"] = h.clock.Interval().Milliseconds()
	}
	if h.wsHub != nil {
		status["renderers"] = h.wsHub.Clients()
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) resizeScreen(w http.ResponseWriter, r *http.Request) {
	var size geom.Size
	if err := json.NewDecoder(r.Body).Decode(&size); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if size.Width <= 0 || size.Height <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "width and height must be positive"})
		return
	}
	h.herd.Screen().Resize(size)
	writeJSON(w, http.StatusOK, h.herd.Screen().UsableArea())
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

func (h *Handler) setSpeed(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "clock not initialized"})
		return
	}
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Speed <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "speed must be positive"})
		return
	}
	h.clock.SetSpeed(req.Speed)
	writeJSON(w, http.StatusOK, map[string]float64{"speed": h.clock.Speed()})
}

// recentEvents returns the presentation history, oldest first. ?limit=N
// bounds the count.
func (h *Handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.gw.History(limit))
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, world.ErrAgentNotFound), errors.Is(err, world.ErrSpeciesNotFound):
		status = http.StatusNotFound
	case errors.Is(err, agent.ErrRemoved):
		status = http.StatusGone
	case errors.Is(err, agent.ErrUnknownEvent), errors.Is(err, command.ErrUsage):
		status = http.StatusBadRequest
	case errors.Is(err, behavior.ErrNoBehaviors),
		errors.Is(err, behavior.ErrNoRandomBehaviors),
		errors.Is(err, behavior.ErrInvalidDefinition):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
