package network

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
)

// ReplayHandler exposes the bounded event feed over HTTP so a dashboard
// that missed websocket pushes can catch up by cursor.
type ReplayHandler struct {
	feed   *events.EventLog
	logger *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(feed *events.EventLog, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReplayHandler{feed: feed, logger: log}
}

// ReplayResponse is the API response for a feed read.
type ReplayResponse struct {
	LastSeq     uint64              `json:"last_seq"`
	Dropped     uint64              `json:"dropped"`
	FilteredBy  string              `json:"filtered_by,omitempty"`
	GeneratedAt string              `json:"generated_at"`
	Events      []events.TableEvent `json:"events"`
}

// HandleReplay returns retained events after a cursor.
// GET /api/events?since=N&type=BACKOFF&actor=2
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	var since uint64
	if s := q.Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			jsonError(w, "Invalid since cursor", http.StatusBadRequest)
			return
		}
		since = v
	}
	var (
		filters    []events.Filter
		filterDesc []string
	)
	if t := q.Get("type"); t != "" {
		filters = append(filters, events.ByType(events.EventType(t)))
		filterDesc = append(filterDesc, "type="+t)
	}
	if s := q.Get("actor"); s != "" {
		actor, err := strconv.Atoi(s)
		if err != nil {
			jsonError(w, "Invalid actor", http.StatusBadRequest)
			return
		}
		filters = append(filters, events.ByActor(actor))
		filterDesc = append(filterDesc, "actor="+strconv.Itoa(actor))
	}

	filtered, dropped := rh.feed.Since(since, filters...)
	if filtered == nil {
		filtered = []events.TableEvent{}
	}

	rh.logger.Debugf("Replay since=%d returned %d events", since, len(filtered))
	writeJSON(w, http.StatusOK, ReplayResponse{
		LastSeq:     rh.feed.LastSeq(),
		Dropped:     dropped,
		FilteredBy:  strings.Join(filterDesc, " "),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	})
}

// HandleStats returns per-type counts over the retained window.
// GET /api/events/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all, _ := rh.feed.Since(0)
	byType := make(map[events.EventType]int)
	backoffs := make(map[int]int)
	for _, e := range all {
		byType[e.Type]++
		if e.Type == events.EventTypeBackoff {
			backoffs[e.ActorID]++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at":      time.Now().Format(time.RFC3339),
		"retained":          len(all),
		"last_seq":          rh.feed.LastSeq(),
		"by_type":           byType,
		"backoffs_by_actor": backoffs,
	})
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", rh.HandleReplay)
	mux.HandleFunc("/api/events/stats", rh.HandleStats)
}
