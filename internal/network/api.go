package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/domain/philosopher"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/infra/storage"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
)

// Inspector is the read side of the engine exposed over HTTP.
type Inspector interface {
	Table
	Names() []string
	State(id int) (philosopher.State, error)
	Meals(id int) (int64, error)
	ForkOwner(id int) (owner int, held bool, err error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for the dashboard
	},
}

// API serves the REST endpoints and the websocket upgrade.
type API struct {
	table   Inspector
	presets *PresetService
	hub     *Hub
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewAPI creates the HTTP surface. presets and hub may be nil.
func NewAPI(table Inspector, presets *PresetService, hub *Hub, m *metrics.Collector, log *logger.Logger) *API {
	if log == nil {
		log = logger.Nop()
	}
	return &API{table: table, presets: presets, hub: hub, metrics: m, logger: log}
}

// RegisterRoutes sets up the API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", a.HandleState)
	mux.HandleFunc("/api/philosopher", a.HandlePhilosopher)
	mux.HandleFunc("/api/fork", a.HandleFork)
	mux.HandleFunc("/api/timing", a.HandleTiming)
	mux.HandleFunc("/api/presets", a.HandlePresets)
	mux.HandleFunc("/api/presets/apply", a.HandleApplyPreset)
	if a.metrics != nil {
		mux.HandleFunc("/metrics", a.metrics.Handler())
		mux.HandleFunc("/metrics/prometheus", a.metrics.PrometheusHandler())
	}
	if a.hub != nil {
		mux.HandleFunc("/ws", a.ServeWs)
	}
}

// HandleState returns a full table snapshot.
// GET /api/state
func (a *API) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	s := a.table.Snapshot()
	a.metrics.RecordSnapshot(time.Since(start))
	writeJSON(w, http.StatusOK, s)
}

// HandlePhilosopher returns one seat.
// GET /api/philosopher?id=N
func (a *API) HandlePhilosopher(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	state, err := a.table.State(id)
	if err != nil {
		writeError(w, err)
		return
	}
	meals, err := a.table.Meals(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"name":  a.table.Names()[id],
		"state": state,
		"meals": meals,
	})
}

// HandleFork returns who holds one fork.
// GET /api/fork?id=N
func (a *API) HandleFork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	owner, held, err := a.table.ForkOwner(id)
	if err != nil {
		writeError(w, err)
		return
	}
	view := engine.ForkView{ID: id}
	if held {
		view.Owner = &owner
	}
	writeJSON(w, http.StatusOK, view)
}

// TimingResponse carries the live delays plus the slider range.
type TimingResponse struct {
	engine.Durations
	MinMs int64 `json:"min_ms"`
	MaxMs int64 `json:"max_ms"`
}

// HandleTiming reads or patches the live delays.
// GET /api/timing
// PUT /api/timing {"eating_ms": 200}
func (a *API) HandleTiming(w http.ResponseWriter, r *http.Request) {
	timing := a.table.Timing()
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut, http.MethodPatch:
		var d engine.Durations
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			jsonError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := timing.Patch(d); err != nil {
			writeError(w, err)
			return
		}
	default:
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, TimingResponse{
		Durations: timing.Load(),
		MinMs:     engine.MinDelay,
		MaxMs:     engine.MaxDelay,
	})
}

// HandlePresets lists or saves presets.
// GET /api/presets
// POST /api/presets {"name": "lunch", "timing": {...}}
func (a *API) HandlePresets(w http.ResponseWriter, r *http.Request) {
	if a.presets == nil {
		writeError(w, errNoPresets)
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := a.presets.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"presets": list})
	case http.MethodPost:
		var p PresetPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			jsonError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		saved, err := a.presets.Save(r.Context(), p.Name, p.Timing)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	case http.MethodDelete:
		if err := a.presets.Delete(r.Context(), r.URL.Query().Get("name")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleApplyPreset switches the table to a stored preset.
// POST /api/presets/apply {"name": "fast"}
func (a *API) HandleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.presets == nil {
		writeError(w, errNoPresets)
		return
	}
	var p PresetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		jsonError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	d, err := a.presets.Apply(r.Context(), p.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ServeWs upgrades the request and attaches a new observer to the hub.
func (a *API) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Errorf("WebSocket upgrade failed: %v", err)
		a.metrics.RecordWSError()
		return
	}
	client := NewClient(a.hub, conn)
	if !client.Register() {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

func parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		jsonError(w, "Missing or invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrOutOfRange),
		errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, storage.ErrInvalidPreset):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrPresetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrBuiltinPreset):
		status = http.StatusConflict
	case errors.Is(err, errNoPresets):
		status = http.StatusServiceUnavailable
	}
	jsonError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
