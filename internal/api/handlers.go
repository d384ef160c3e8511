package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/journal"
	"github.com/nerrad567/gray-logic-access/internal/network"
	"github.com/nerrad567/gray-logic-access/internal/telemetry"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	DoorID        string           `json:"door_id"`
	Version       string           `json:"version"`
	State         string           `json:"state"`
	Strike        string           `json:"strike"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	PollInterval  string           `json:"poll_interval"`
	Link          *network.Status  `json:"link,omitempty"`
	Counts        StatusCounts     `json:"counts"`
	Last          *telemetry.Event `json:"last,omitempty"`
	WSClients     int              `json:"ws_clients"`
}

// StatusCounts mirrors the cycle counters.
type StatusCounts struct {
	Polls          uint64 `json:"polls"`
	Presentations  uint64 `json:"presentations"`
	Permitted      uint64 `json:"permitted"`
	Denied         uint64 `json:"denied"`
	Indeterminate  uint64 `json:"indeterminate"`
	ReaderErrors   uint64 `json:"reader_errors"`
	ActuatorErrors uint64 `json:"actuator_errors"`
}

// handleHealth runs every registered dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Version: s.version}
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}

	for name, hc := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.HealthCheck(ctx)
		cancel()
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleStatus reports the cycle snapshot and the most recent outcome.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()
	st := snap.Stats

	resp := StatusResponse{
		DoorID:        snap.DoorID,
		Version:       s.version,
		State:         snap.State.String(),
		Strike:        snap.Strike.String(),
		UptimeSeconds: snap.Uptime.Seconds(),
		PollInterval:  snap.Interval.String(),
		Counts: StatusCounts{
			Polls:          st.Polls,
			Presentations:  st.Presentations,
			Permitted:      st.Permitted,
			Denied:         st.Denied,
			Indeterminate:  st.Indeterminate,
			ReaderErrors:   st.ReaderErrors,
			ActuatorErrors: st.ActuatorErrors,
		},
		WSClients: s.hub.ClientCount(),
	}
	if s.link != nil {
		link := s.link.Status()
		resp.Link = &link
	}
	if st.Last != nil {
		ev := telemetry.NewEvent(*st.Last, s.exposure)
		resp.Last = &ev
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleJournal lists journal entries newest first.
//
// Query parameters: limit, offset, decision, since (RFC 3339).
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is disabled")
		return
	}

	q := r.URL.Query()
	var f journal.Filter

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}
	switch d := q.Get("decision"); d {
	case "", "permitted", "denied", "indeterminate":
		f.Decision = d
	default:
		writeBadRequest(w, "decision must be permitted, denied or indeterminate")
		return
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = t
	}

	res, err := s.journal.List(r.Context(), f)
	if err != nil {
		s.logger.Error("listing journal", "error", err)
		writeInternalError(w, "failed to list journal")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
