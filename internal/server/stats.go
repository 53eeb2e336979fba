package server

import (
	"net/http"
	"time"

	"github.com/fusae/sentinel/internal/store"
)

// rangeWindow resolves the range∈{24h,7d,30d} query param into a since time
// and the matching trend bucket granularity.
func rangeWindow(r string) (time.Time, store.TrendBucket) {
	now := time.Now()
	switch r {
	case "7d":
		return now.Add(-7 * 24 * time.Hour), store.TrendDaily
	case "30d":
		return now.Add(-30 * 24 * time.Hour), store.TrendDaily
	default:
		return now.Add(-24 * time.Hour), store.TrendHourly
	}
}

// handleStats serves GET /api/stats?range=24h|7d|30d
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	since, _ := rangeWindow(r.URL.Query().Get("range"))
	stats, err := s.db.GetStats(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleStatsTrend serves GET /api/stats/trend?range=24h|7d|30d
func (s *Server) handleStatsTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	since, bucket := rangeWindow(r.URL.Query().Get("range"))
	points, err := s.db.GetTrend(since, bucket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": points})
}
