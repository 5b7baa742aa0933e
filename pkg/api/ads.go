// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/serving"
	"github.com/luxfi/adengine/pkg/targeting"
)

var errUnknownCreative = errors.New("unknown creative instance")

type servedAd struct {
	Served             bool      `json:"served"`
	Reason             string    `json:"reason,omitempty"`
	PlacementID        string    `json:"placement_id,omitempty"`
	CreativeInstanceID string    `json:"creative_instance_id,omitempty"`
	CreativeSetID      string    `json:"creative_set_id,omitempty"`
	CampaignID         string    `json:"campaign_id,omitempty"`
	Type               string    `json:"type,omitempty"`
	Title              string    `json:"title,omitempty"`
	Body               string    `json:"body,omitempty"`
	TargetURL          string    `json:"target_url,omitempty"`
	Dimensions         string    `json:"dimensions,omitempty"`
	ServedAt           time.Time `json:"served_at,omitzero"`
}

// POST /ads/{type}/serve[?dimensions=WxH]
func (s *Server) handleServe(w http.ResponseWriter, r *http.Request) {
	req := serving.Request{
		Type:       core.AdType(mux.Vars(r)["type"]),
		Dimensions: r.URL.Query().Get("dimensions"),
	}

	chosen, err := s.serving.MaybeServeAd(r.Context(), req)
	if err != nil {
		if errors.Is(err, serving.ErrInvalidAdType) || errors.Is(err, serving.ErrInvalidDimensions) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var notServed *serving.NotServedError
		if errors.As(err, &notServed) {
			writeJSON(w, http.StatusOK, servedAd{Reason: notServed.Reason})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := servedAd{
		Served:             true,
		PlacementID:        chosen.PlacementID.String(),
		CreativeInstanceID: chosen.Ad.CreativeInstanceID,
		CreativeSetID:      chosen.Ad.CreativeSetID,
		CampaignID:         chosen.Ad.CampaignID,
		Type:               chosen.Ad.Type.String(),
		Title:              chosen.Ad.Title,
		Body:               chosen.Ad.Body,
		TargetURL:          chosen.Ad.TargetURL,
		ServedAt:           chosen.ServedAt,
	}
	if chosen.Dimensions != nil {
		resp.Dimensions = core.FormatDimensions(*chosen.Dimensions)
	}
	writeJSON(w, http.StatusOK, resp)
}

type adEventRequest struct {
	CreativeInstanceID string `json:"creative_instance_id"`
	ConfirmationType   string `json:"confirmation_type"`
}

type adEventResponse struct {
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
}

// POST /ads/events records an interaction in history. Views also credit the
// creative's value to the ledger.
func (s *Server) handleAdEvent(w http.ResponseWriter, r *http.Request) {
	var req adEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	confirmationType, err := core.ParseConfirmationType(req.ConfirmationType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ad, ok := s.catalog.Get(req.CreativeInstanceID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", errUnknownCreative, req.CreativeInstanceID))
		return
	}

	// A view only counts against frequency caps once its credit is recorded.
	var resp adEventResponse
	if confirmationType == core.ConfirmationTypeViewed {
		tx, err := s.ledger.Add(r.Context(), ad.Value, confirmationType)
		if err != nil {
			s.log.Error("failed to credit view",
				log.String("creative_instance_id", ad.CreativeInstanceID),
				log.Error(err))
			writeError(w, ledgerStatus(err), err)
			return
		}
		resp.Transaction = &tx
	}

	s.history.Record(ad, confirmationType, s.clock.Now())
	writeJSON(w, http.StatusCreated, resp)
}

// POST /ads/{creative_instance_id}/flag toggles the creative set's flag
func (s *Server) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["creative_instance_id"]
	ad, ok := s.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", errUnknownCreative, id))
		return
	}

	flagged := s.history.ToggleFlaggedAd(core.ContentFor(ad, core.ConfirmationTypeFlagged))
	writeJSON(w, http.StatusOK, map[string]any{
		"creative_set_id": ad.CreativeSetID,
		"flagged":         flagged,
	})
}

// POST /segments/{segment}/opt-out toggles whether the segment is received
func (s *Server) handleToggleOptOut(w http.ResponseWriter, r *http.Request) {
	segment := mux.Vars(r)["segment"]
	optedOut := s.history.ToggleOptOut(segment)
	writeJSON(w, http.StatusOK, map[string]any{
		"segment":   segment,
		"opted_out": optedOut,
	})
}

// POST /activity {"type": "opened_new_tab"}
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	eventType, err := core.ParseActivityEventType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.history.RecordUserActivity(eventType, s.clock.Now())
	w.WriteHeader(http.StatusNoContent)
}

// POST /sites/visits {"site": "https://www.example.com/path"}
func (s *Server) handleSiteVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Site string `json:"site"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	site := targeting.NormalizeSite(req.Site)
	if site == "" {
		writeError(w, http.StatusBadRequest, errors.New("site is required"))
		return
	}

	s.history.RecordSiteVisit(site)
	w.WriteHeader(http.StatusNoContent)
}
