// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package remote implements the durable, authoritative persistence backend
// as a client of the cloud tree store API. The core depends only on the
// save/get/list outcome of that boundary, not on its transport details.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/pkg/validation"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Client talks to the cloud tree store over HTTP.
//
// Thread Safety: Safe for concurrent use; http.Client is concurrency-safe
// and Client itself is immutable after construction.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the store at baseURL.
//
// Inputs:
//
//	baseURL - Scheme and host of the store, e.g. "https://trees.example.com".
//	httpClient - Optional; nil gets a client with a 15s timeout.
//
// Outputs:
//
//	*Client - The configured client.
//	error - Non-nil if baseURL is empty.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("baseURL must not be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// saveResponse is the body of a successful save.
type saveResponse struct {
	ID string `json:"id"`
}

// Save uploads an envelope and returns the server-issued identifier.
func (c *Client) Save(ctx context.Context, env *export.ExportEnvelope) (storage.Identifier, error) {
	body, err := export.MarshalEnvelope(env)
	if err != nil {
		return storage.Identifier{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/trees", bytes.NewReader(body))
	if err != nil {
		return storage.Identifier{}, fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return storage.Identifier{}, fmt.Errorf("remote save: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return storage.Identifier{}, fmt.Errorf("remote save: unexpected status %d", resp.StatusCode)
	}

	var saved saveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&saved); err != nil {
		return storage.Identifier{}, fmt.Errorf("decode save response: %w", err)
	}
	if !strings.HasPrefix(saved.ID, storage.RemotePrefix) {
		return storage.Identifier{}, fmt.Errorf("remote save: server issued id %q outside the remote namespace", saved.ID)
	}
	if err := validation.ValidateIdentifierBody(strings.TrimPrefix(saved.ID, storage.RemotePrefix)); err != nil {
		return storage.Identifier{}, fmt.Errorf("remote save: %w", err)
	}
	return storage.Identifier{Kind: storage.KindRemote, Value: saved.ID}, nil
}

// Load fetches the envelope for a server-issued identifier. An unknown
// identifier, including one of the wrong kind, yields (nil, nil).
func (c *Client) Load(ctx context.Context, id storage.Identifier) (*export.ExportEnvelope, error) {
	if id.Kind != storage.KindRemote || id.IsZero() {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/trees/"+id.Value, nil)
	if err != nil {
		return nil, fmt.Errorf("build load request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote load: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote load: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read load response: %w", err)
	}
	env, err := export.UnmarshalEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("decode remote envelope %s: %w", id.Value, err)
	}
	return env, nil
}

// listResponse is the body of a successful list.
type listResponse struct {
	Trees []storage.SavedTree `json:"trees"`
}

// List fetches summaries of the trees stored remotely.
func (c *Client) List(ctx context.Context) ([]storage.SavedTree, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/trees", nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote list: unexpected status %d", resp.StatusCode)
	}

	var listed listResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&listed); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return listed.Trees, nil
}

// Compile-time interface checks.
var (
	_ storage.Backend = (*Client)(nil)
	_ storage.Lister  = (*Client)(nil)
)
