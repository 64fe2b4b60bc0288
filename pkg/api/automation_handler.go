package api

import (
	"net/http"
	"time"

	"github.com/mklimuk/vault-quest/pkg/automation"
)

type scheduleResponse struct {
	Enabled   bool       `json:"enabled"`
	Kind      string     `json:"kind,omitempty"`
	Expr      string     `json:"expr,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// HandleSchedule handles GET /schedule
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	if h.Schedule == nil {
		writeJSON(w, http.StatusOK, scheduleResponse{Enabled: false})
		return
	}
	next, err := automation.NextRun(*h.Schedule, time.Now())
	if err != nil {
		http.Error(w, "invalid schedule: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{
		Enabled:   true,
		Kind:      h.Schedule.Kind,
		Expr:      h.Schedule.Expr,
		Timezone:  h.Schedule.Timezone,
		NextRunAt: &next,
	})
}
