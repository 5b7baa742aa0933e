// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Path is the issuers endpoint, relative to the server base URL
const Path = "/v1/issuers/"

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrMalformed        = errors.New("malformed issuers response")
)

// Fetcher retrieves issuer snapshots from the issuers endpoint. It makes a
// single attempt per call; retry cadence is the Refresher's job.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a fetcher for the server at baseURL. A nil client
// uses one with a 30 second timeout.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		url:    strings.TrimRight(baseURL, "/") + Path,
		client: client,
	}
}

// Fetch GETs and validates the current issuer snapshot
func (f *Fetcher) Fetch(ctx context.Context) (IssuersInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return IssuersInfo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return IssuersInfo{}, fmt.Errorf("get issuers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IssuersInfo{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var info IssuersInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&info); err != nil {
		return IssuersInfo{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := info.Validate(); err != nil {
		return IssuersInfo{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return info, nil
}
