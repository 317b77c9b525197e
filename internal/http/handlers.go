package http

import (
	"context"
	"net/http"
	"time"

	"propertyfees/internal/core"
	"propertyfees/internal/log"
	"propertyfees/internal/sensor"
)

// snapshotResponse is the body of /api/snapshot and of a successful refresh.
type snapshotResponse struct {
	Available   bool           `json:"available"`
	Year        int            `json:"year"`
	LastAttempt *time.Time     `json:"last_attempt,omitempty"`
	NextUpdate  *time.Time     `json:"next_update,omitempty"`
	Error       string         `json:"error,omitempty"`
	Snapshot    *core.Snapshot `json:"snapshot"`
}

func (s *Server) snapshotResponse() snapshotResponse {
	st := s.source.State()
	resp := snapshotResponse{
		Available: st.Available(),
		Year:      s.source.Year(),
		Snapshot:  st.Snapshot,
	}
	if !st.LastAttempt.IsZero() {
		last := st.LastAttempt
		resp.LastAttempt = &last
	}
	if next := s.source.NextUpdate(); !next.IsZero() {
		resp.NextUpdate = &next
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once a trusted snapshot exists.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.source.State().Available() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no snapshot"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.snapshotResponse())
}

func (s *Server) sensors() []sensor.Sensor {
	return sensor.Build(s.source.State(), s.source.Year(), s.source.Interval())
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.sensors())
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, ok := sensor.Find(s.sensors(), id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown sensor: "+id)
		return
	}
	writeJSON(w, r, http.StatusOK, found)
}

// handleRefresh runs a refresh in the request and answers 202 with the new
// state, or 500 when the build failed. The build does not follow the client
// connection; only the refresh timeout bounds it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.refreshTimeout)
	defer cancel()

	logger := log.FromContext(ctx)
	logger.InfoContext(ctx, "Manual refresh requested", log.FieldOperation, log.OpRefresh)

	if err := s.refresher.Refresh(ctx); err != nil {
		logger.ErrorContext(ctx, "Manual refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, r, http.StatusAccepted, s.snapshotResponse())
}
