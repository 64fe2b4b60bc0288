package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mklimuk/vault-quest/pkg/automation"
	"github.com/mklimuk/vault-quest/pkg/db"
	"github.com/mklimuk/vault-quest/pkg/pipeline"
	"github.com/mklimuk/vault-quest/pkg/progress"
	"github.com/mklimuk/vault-quest/pkg/state"
	"github.com/mklimuk/vault-quest/pkg/vault"
)

// DefaultHistoryLimit is the number of runs GET /history returns without ?limit.
const DefaultHistoryLimit = 20

// Service is the pipeline as seen by the API.
type Service interface {
	Snapshot() (*state.Snapshot, error)
	Sync(ctx context.Context) (*state.Snapshot, error)
	History(limit int) ([]db.Run, error)
	DailyXP(since string) ([]db.DailyXP, error)
}

// Handler holds dependencies for API handlers
type Handler struct {
	Service  Service
	Schedule *automation.Schedule
	log      *zap.Logger
}

type levelResponse struct {
	TotalXP           float64 `json:"total_xp"`
	Level             int     `json:"level"`
	XPSinceLevelStart float64 `json:"xp_since_level_start"`
	XPRequiredForNext float64 `json:"xp_required_for_next"`
	Progress          float64 `json:"progress"`
}

type runResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Watermark  string    `json:"watermark,omitempty"`
	ActiveXP   float64   `json:"active_xp"`
	TotalXP    float64   `json:"total_xp"`
	Level      int       `json:"level"`
	Documents  int       `json:"documents"`
	Failed     int       `json:"failed"`
}

type dailyXPResponse struct {
	Date     string  `json:"date"`
	Category string  `json:"category"`
	XP       float64 `json:"xp"`
}

type historyResponse struct {
	Runs    []runResponse     `json:"runs"`
	DailyXP []dailyXPResponse `json:"daily_xp"`
}

type syncResponse struct {
	Status            string  `json:"status"`
	TotalXP           float64 `json:"total_xp"`
	Level             int     `json:"level"`
	LastProcessedDate string  `json:"last_processed_date,omitempty"`
}

// HandleSnapshot handles GET /snapshot
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w)
	if !ok {
		return
	}
	data, err := state.Marshal(snap, "  ")
	if err != nil {
		h.fail(w, "encode snapshot", err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// HandleLevel handles GET /level
func (h *Handler) HandleLevel(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w)
	if !ok {
		return
	}
	lv := progress.Level(snap.TotalXP)
	writeJSON(w, http.StatusOK, levelResponse{
		TotalXP:           state.Round(snap.TotalXP, 2),
		Level:             lv.Level,
		XPSinceLevelStart: state.Round(lv.XPSinceLevelStart, 2),
		XPRequiredForNext: state.Round(lv.XPRequiredForNext, 2),
		Progress:          state.Round(lv.Progress(), 4),
	})
}

// HandleHistory handles GET /history?limit=N&since=YYYY-MM-DD
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	since := r.URL.Query().Get("since")
	if since == "" {
		since = time.Now().AddDate(0, 0, -30).Format(vault.DateLayout)
	} else if _, err := time.Parse(vault.DateLayout, since); err != nil {
		http.Error(w, "since must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	runs, err := h.Service.History(limit)
	if err != nil {
		h.fail(w, "list runs", err, statusFor(err))
		return
	}
	daily, err := h.Service.DailyXP(since)
	if err != nil {
		h.fail(w, "list daily xp", err, statusFor(err))
		return
	}

	resp := historyResponse{Runs: []runResponse{}, DailyXP: []dailyXPResponse{}}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, runResponse(run))
	}
	for _, d := range daily {
		resp.DailyXP = append(resp.DailyXP, dailyXPResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSync handles POST /sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Sync(r.Context())
	if err != nil {
		h.fail(w, "sync", err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Status:            "synced",
		TotalXP:           state.Round(snap.TotalXP, 2),
		Level:             snap.Level.Level,
		LastProcessedDate: snap.LastProcessedDate,
	})
}

func (h *Handler) loadSnapshot(w http.ResponseWriter) (*state.Snapshot, bool) {
	snap, err := h.Service.Snapshot()
	if err != nil {
		h.fail(w, "load snapshot", err, http.StatusInternalServerError)
		return nil, false
	}
	if snap == nil {
		http.Error(w, "no snapshot yet, POST /sync first", http.StatusNotFound)
		return nil, false
	}
	return snap, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, status int) {
	if status >= http.StatusInternalServerError {
		h.log.Warn("api: request failed", zap.String("op", op), zap.Error(err))
	}
	http.Error(w, op+": "+err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoLedger):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrVaultNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
