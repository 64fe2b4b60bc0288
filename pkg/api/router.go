package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/automation"
)

// NewRouter creates a new HTTP router. schedule is nil when scheduled runs are disabled.
func NewRouter(svc Service, schedule *automation.Schedule, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		Service:  svc,
		Schedule: schedule,
		log:      log,
	}

	mux.HandleFunc("GET /snapshot", h.HandleSnapshot)
	mux.HandleFunc("GET /level", h.HandleLevel)
	mux.HandleFunc("GET /history", h.HandleHistory)
	mux.HandleFunc("POST /sync", h.HandleSync)
	mux.HandleFunc("GET /schedule", h.HandleSchedule)

	return mux
}
