package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"oasis.ledger/oasis/internal/abci"
	"oasis.ledger/oasis/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns node health judged by the time since the last commit
// @Response: {"status": "online", "description": "...", "height": 12}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.node.Status()
	health := types.DetermineHealth(st, time.Now(), s.thresholds)

	code := http.StatusOK
	if health == types.HealthOffline {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{
		"status":      health,
		"description": types.HealthDescription(health),
		"height":      st.Height,
	})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns the application version and build platform
// @Response: {"version": "...", "status": "ok", "hostname": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":     abci.Version,
		"app_version": strconv.FormatUint(abci.AppVersion, 10),
		"status":      "ok",
		"hostname":    hostname,
		"go_ver":      runtime.Version(),
		"os_arch":     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}

// @Title: Get Status
// @Route: GET /api/status
// @Description: Height, app hash and commit times of the node
// @Response: NodeStatus object
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.node.Status())
}

// @Title: Get Logs
// @Route: GET /api/logs?n=...
// @Description: Most recent log messages, newest first (default 100)
// @Response: Array of Message objects
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	if s.ring == nil {
		s.writeJSON(w, http.StatusOK, []any{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.ring.GetRecent(countParam(r, 100)))
}

// @Title: Get Recent Events
// @Route: GET /api/events?n=...
// @Description: Most recent ledger events, newest first (default 50)
// @Response: Array of Event objects
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeJSON(w, http.StatusOK, []any{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.bus.Recent(countParam(r, 50)))
}

func countParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
