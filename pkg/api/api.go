// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the ad engine over HTTP: serving decisions, the
// interaction history the rules read, the transaction ledger and the current
// issuers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/adengine/pkg/catalog"
	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/history"
	"github.com/luxfi/adengine/pkg/issuers"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
	"github.com/luxfi/adengine/pkg/serving"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 10

// Config wires the API to the engine components
type Config struct {
	Serving *serving.Server
	Catalog *catalog.Catalog
	History *history.Store
	Ledger  *ledger.Ledger
	Issuers *issuers.Registry
	Metrics *metric.Metrics
	Clock   clock.Clock
}

// Server is the HTTP front of the ad engine
type Server struct {
	serving *serving.Server
	catalog *catalog.Catalog
	history *history.Store
	ledger  *ledger.Ledger
	issuers *issuers.Registry
	metrics *metric.Metrics
	clock   clock.Clock
	log     log.Logger
}

func New(cfg Config, logger log.Logger) *Server {
	return &Server{
		serving: cfg.Serving,
		catalog: cfg.Catalog,
		history: cfg.History,
		ledger:  cfg.Ledger,
		issuers: cfg.Issuers,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		log:     logger,
	}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Serving
	r.HandleFunc("/ads/{type}/serve", s.handleServe).Methods(http.MethodPost)
	r.HandleFunc("/ads/events", s.handleAdEvent).Methods(http.MethodPost)
	r.HandleFunc("/ads/{creative_instance_id}/flag", s.handleToggleFlag).Methods(http.MethodPost)

	// Signals read by the rules
	r.HandleFunc("/segments/{segment}/opt-out", s.handleToggleOptOut).Methods(http.MethodPost)
	r.HandleFunc("/activity", s.handleActivity).Methods(http.MethodPost)
	r.HandleFunc("/sites/visits", s.handleSiteVisit).Methods(http.MethodPost)

	// Ledger
	r.HandleFunc("/transactions", s.handleAddTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions", s.handleRemoveTransactions).Methods(http.MethodDelete)
	r.HandleFunc("/transactions/{id}/redeem", s.handleRedeemTransaction).Methods(http.MethodPost)

	r.HandleFunc("/issuers", s.handleIssuers).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetGatherer(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"creatives":  s.catalog.Len(),
		"hasIssuers": s.issuers.HasIssuers(),
	})
}

func (s *Server) handleIssuers(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.issuers.Get()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("issuers not yet known"))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
