package main

import (
	"FlowTagger/internal/model"
	"FlowTagger/internal/probe"
	"FlowTagger/internal/query"
	"FlowTagger/internal/report"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	// querier is nil when no ClickHouse writer is configured.
	querier query.Querier

	mu     sync.RWMutex
	latest *model.Report
}

// SetLatest stores the most recently received report.
func (h *APIHandler) SetLatest(r *model.Report) {
	h.mu.Lock()
	h.latest = r
	h.mu.Unlock()
}

func (h *APIHandler) getLatest() *model.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Router wires the API routes and the metrics endpoint.
func (h *APIHandler) Router(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/reports/latest", h.latestReportHandler).Methods("GET")
	r.HandleFunc("/api/v1/reports/latest/text", h.latestReportTextHandler).Methods("GET")
	r.HandleFunc("/api/v1/tags", h.tagCountsHandler).Methods("GET")
	r.HandleFunc("/api/v1/ports", h.portProtocolCountsHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

// latestReportHandler renders the latest report as protojson.
func (h *APIHandler) latestReportHandler(w http.ResponseWriter, r *http.Request) {
	latest := h.getLatest()
	if latest == nil {
		http.Error(w, "no report received yet", http.StatusNotFound)
		return
	}

	s, err := probe.ToStruct(latest)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to convert report: %v", err), http.StatusInternalServerError)
		return
	}
	jsonBytes, err := protojson.Marshal(s)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}

// latestReportTextHandler renders the latest report in the same format as the report file.
func (h *APIHandler) latestReportTextHandler(w http.ResponseWriter, r *http.Request) {
	latest := h.getLatest()
	if latest == nil {
		http.Error(w, "no report received yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.Format(latest.Counts)))
}

// tagCountsHandler returns the tag counts of the latest stored run.
func (h *APIHandler) tagCountsHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "history is not available: no ClickHouse writer configured", http.StatusServiceUnavailable)
		return
	}
	rows, err := h.querier.LatestTagCounts(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query tag counts: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// portProtocolCountsHandler returns the port/protocol counts of the latest stored run.
func (h *APIHandler) portProtocolCountsHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "history is not available: no ClickHouse writer configured", http.StatusServiceUnavailable)
		return
	}
	rows, err := h.querier.LatestPortProtocolCounts(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query port/protocol counts: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
