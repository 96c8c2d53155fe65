// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server is the reference implementation of the cloud tree store:
// the authoritative side of the remote persistence boundary. It exposes
// save/get/list/delete over HTTP with server-issued tree_ identifiers,
// backed by the same BadgerDB layer the local backend uses, under a
// separate key namespace.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage/local"
)

// maxRequestBytes bounds an uploaded envelope.
const maxRequestBytes = 8 << 20

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SaveTree accepts an envelope and stores it under a fresh server id.
func SaveTree(store *local.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
		if err != nil {
			savesTotal.WithLabelValues(resultError).Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		env, err := export.UnmarshalEnvelope(body)
		if err != nil {
			savesTotal.WithLabelValues(resultInvalid).Inc()
			slog.Warn("rejected tree upload", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed envelope"})
			return
		}
		if err := export.ValidateEnvelope(env); err != nil {
			savesTotal.WithLabelValues(resultInvalid).Inc()
			slog.Warn("rejected tree upload", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid envelope"})
			return
		}

		id, err := store.Save(c.Request.Context(), env)
		if err != nil {
			savesTotal.WithLabelValues(resultError).Inc()
			slog.Error("failed to persist tree", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save tree"})
			return
		}

		savesTotal.WithLabelValues(resultOK).Inc()
		slog.Info("tree saved", "id", id.Value, "ornaments", len(env.Ornaments))
		c.JSON(http.StatusCreated, gin.H{"id": id.Value})
	}
}

// GetTree returns the envelope stored under a server id.
func GetTree(store *local.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.Param("treeId")
		if !strings.HasPrefix(value, storage.RemotePrefix) {
			loadsTotal.WithLabelValues(resultNotFound).Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tree"})
			return
		}

		id := storage.Identifier{Kind: storage.KindRemote, Value: value}
		env, err := store.Load(c.Request.Context(), id)
		if err != nil {
			loadsTotal.WithLabelValues(resultError).Inc()
			slog.Error("failed to load tree", "id", value, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tree"})
			return
		}
		if env == nil {
			loadsTotal.WithLabelValues(resultNotFound).Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tree"})
			return
		}

		loadsTotal.WithLabelValues(resultOK).Inc()
		c.JSON(http.StatusOK, env)
	}
}

// ListTrees returns summaries of all stored trees.
func ListTrees(store *local.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		trees, err := store.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list trees", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trees"})
			return
		}
		if trees == nil {
			trees = []storage.SavedTree{}
		}
		c.JSON(http.StatusOK, gin.H{"trees": trees})
	}
}

// DeleteTree removes a stored tree. Deleting an unknown id succeeds; the
// operation is idempotent.
func DeleteTree(store *local.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.Param("treeId")
		if !strings.HasPrefix(value, storage.RemotePrefix) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tree"})
			return
		}

		id := storage.Identifier{Kind: storage.KindRemote, Value: value}
		if err := store.Delete(c.Request.Context(), id); err != nil {
			slog.Error("failed to delete tree", "id", value, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete tree"})
			return
		}
		deletesTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_tree_id": value})
	}
}
