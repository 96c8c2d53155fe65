// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage/local"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/tree"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := local.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := local.NewServerStore(db)
	require.NoError(t, err)
	return New(store)
}

func testEnvelopeJSON(t *testing.T) []byte {
	t.Helper()
	ornaments := []tree.OrnamentData{{
		ID:       "o1",
		Type:     tree.OrnamentBall,
		Color:    "#ff0000",
		Position: tree.Vector3{Y: 1},
		Scale:    1,
	}}
	env := export.ExportTree(ornaments, nil, tree.DefaultTreeConfig(), nil)
	data, err := export.MarshalEnvelope(env)
	require.NoError(t, err)
	return data
}

func TestHealthCheck(t *testing.T) {
	router := testRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSaveAndGetTree(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trees", bytes.NewReader(testEnvelopeJSON(t)))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Contains(t, created.ID, storage.RemotePrefix)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/trees/"+created.ID, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	env, err := export.UnmarshalEnvelope(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, env.Ornaments, 1)
	assert.Equal(t, tree.OrnamentBall, env.Ornaments[0].Type)
	assert.Equal(t, tree.DefaultTreeConfig(), *env.TreeConfig)
}

func TestGetTree_NotFound(t *testing.T) {
	router := testRouter(t)

	t.Run("unknown id in the server namespace", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/trees/tree_nope", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("id outside the server namespace", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/trees/local_abc", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSaveTree_RejectsBadInput(t *testing.T) {
	router := testRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing tree config", `{"version":1,"ornaments":[]}`},
		{"wrong version", `{"version":99,"treeConfig":{"seed":1,"height":6,"radius":2.5,"tiers":7,"color":"#1a472a","snowAmount":0.3}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/trees", bytes.NewReader([]byte(tc.body)))
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListTrees(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/trees", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"trees":[]}`, w.Body.String())

	for range 2 {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/v1/trees", bytes.NewReader(testEnvelopeJSON(t)))
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/trees", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Trees []storage.SavedTree `json:"trees"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Trees, 2)
}

func TestDeleteTree_Idempotent(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trees", bytes.NewReader(testEnvelopeJSON(t)))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// First delete removes the tree, the second is a no-op; both succeed.
	for range 2 {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodDelete, "/v1/trees/"+created.ID, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/trees/"+created.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
