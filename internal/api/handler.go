// Package api serves the published artifacts over HTTP for dashboards.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/reader"

	"github.com/gorilla/mux"
)

const maxAlertsLimit = 10000

// IPQuerier looks up alerts by address. The SQLite sink implements it.
type IPQuerier interface {
	QueryByIP(ctx context.Context, ip string, limit int) ([]model.AlertRecord, error)
}

// Handler holds the dependencies of the API handlers.
type Handler struct {
	StatsPath   string
	AlertsPath  string
	AlertsLimit int
	// IPs is optional; without it the by-address route answers 501.
	IPs IPQuerier
}

// NewRouter registers every route.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.healthHandler).Methods("GET")
	r.HandleFunc("/api/stats", h.statsHandler).Methods("GET")
	r.HandleFunc("/api/alerts", h.alertsHandler).Methods("GET")
	r.HandleFunc("/api/alerts/{limit:[0-9]+}", h.alertsHandler).Methods("GET")
	r.HandleFunc("/api/alerts/ip/{ip}", h.alertsByIPHandler).Methods("GET")
	return r
}

type statsResponse struct {
	Status string `json:"status"`
	*model.StatisticsSnapshot
}

type alertsResponse struct {
	Alerts []model.AlertRecord `json:"alerts"`
	Count  int                 `json:"count"`
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "NIDS API",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// statsHandler returns the current statistics. Before the engine has
// published anything the counters are zero and status is "not_started".
func (h *Handler) statsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := reader.ReadStats(h.StatsPath)
	switch {
	case errors.Is(err, reader.ErrNotPublished):
		writeJSON(w, http.StatusOK, statsResponse{
			Status:             "not_started",
			StatisticsSnapshot: &model.StatisticsSnapshot{AttacksByProtocol: map[string]uint64{}},
		})
	case err != nil:
		http.Error(w, fmt.Sprintf("failed to read statistics: %v", err), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, statsResponse{Status: "running", StatisticsSnapshot: snap})
	}
}

func (h *Handler) alertsHandler(w http.ResponseWriter, r *http.Request) {
	limit := h.AlertsLimit
	if v, ok := mux.Vars(r)["limit"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxAlertsLimit {
		limit = maxAlertsLimit
	}

	alerts, err := reader.ReadAlerts(h.AlertsPath, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read alerts: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: alerts, Count: len(alerts)})
}

func (h *Handler) alertsByIPHandler(w http.ResponseWriter, r *http.Request) {
	if h.IPs == nil {
		http.Error(w, "address queries need the sqlite or clickhouse sink", http.StatusNotImplemented)
		return
	}
	ip := net.ParseIP(mux.Vars(r)["ip"])
	if ip == nil {
		http.Error(w, "invalid ip address", http.StatusBadRequest)
		return
	}

	alerts, err := h.IPs.QueryByIP(r.Context(), ip.String(), h.AlertsLimit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query alerts: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: alerts, Count: len(alerts)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: failed to write response: %v", err)
	}
}
