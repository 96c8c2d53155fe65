// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package persist sequences export, backend saves, and import.
//
// The orchestrator owns the one retry policy this system has: a cloud save
// makes a single remote attempt and falls back to the local backend on any
// remote failure, so a failed cloud save never loses the user's work. Loads
// never cross namespaces; a remote identifier that fails to load is
// reported as a failure, not retried locally. Collaborator panics are
// caught at this boundary and converted to the same sentinel contract as
// ordinary failures.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/quota"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/sharecode"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/tree"
)

// Session is the per-editing-session context threaded through persistence
// calls. It replaces any ambient current-user state: every operation that
// needs the acting user receives it through the session explicitly.
type Session struct {
	User *quota.User

	// CloudID references the most recent successful save of either kind.
	// Share URLs are derived from it. Nil until the first save.
	CloudID *storage.Identifier
}

// NewSession creates a session for the given user.
func NewSession(u *quota.User) *Session {
	return &Session{User: u}
}

// Orchestrator wires the two persistence backends to the tree store.
//
// Thread Safety: NOT safe for concurrent use on the same session; one
// editor drives a session at a time. Two overlapping saves are
// last-write-wins at the backend.
type Orchestrator struct {
	remote storage.Backend
	local  storage.Backend
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator.
//
// Inputs:
//
//	remote - The authoritative backend. May be nil for offline use; every
//	         cloud save then lands locally.
//	local - The fallback backend. Must not be nil.
//	logger - Optional; nil gets slog.Default().
func NewOrchestrator(remote, local storage.Backend, logger *slog.Logger) (*Orchestrator, error) {
	if local == nil {
		return nil, errors.New("local backend must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		remote: remote,
		local:  local,
		logger: logger,
	}, nil
}

// SaveToCloud exports the current state and saves it remotely, falling
// back to local storage on any remote failure.
//
// Description:
//
//	One remote attempt, then the local backend; that is the entire retry
//	policy. The returned identifier's Kind reports which backend took the
//	save. On success of either kind the session's CloudID is updated.
//
// Outputs:
//
//	storage.Identifier - Where the envelope landed.
//	error - Non-nil only if BOTH backends failed; the local error is
//	        returned with the remote failure logged.
func (o *Orchestrator) SaveToCloud(ctx context.Context, sess *Session, store *tree.Store, meta *export.EnvelopeMetadata) (storage.Identifier, error) {
	env := export.ExportTree(store.Ornaments(), store.Topper(), store.Config(), meta)

	if o.remote != nil {
		id, err := o.saveGuarded(ctx, o.remote, env)
		if err == nil {
			sess.CloudID = &id
			o.logger.Info("tree saved to cloud", "id", id.Value)
			return id, nil
		}
		o.logger.Warn("remote save failed, falling back to local storage", "error", err)
	}

	id, err := o.saveGuarded(ctx, o.local, env)
	if err != nil {
		return storage.Identifier{}, fmt.Errorf("local fallback save: %w", err)
	}
	sess.CloudID = &id
	o.logger.Info("tree saved to local storage", "id", id.Value)
	return id, nil
}

// SaveToStorage exports the current state and saves it to the local
// backend only, bypassing the remote store entirely.
func (o *Orchestrator) SaveToStorage(ctx context.Context, sess *Session, store *tree.Store, meta *export.EnvelopeMetadata) (storage.Identifier, error) {
	env := export.ExportTree(store.Ornaments(), store.Topper(), store.Config(), meta)
	id, err := o.saveGuarded(ctx, o.local, env)
	if err != nil {
		return storage.Identifier{}, fmt.Errorf("local save: %w", err)
	}
	sess.CloudID = &id
	return id, nil
}

// LoadFromCloud loads a remotely saved tree into the store.
//
// Description:
//
//	Attempts the remote backend only; identifier namespaces are disjoint,
//	so there is no local retry for a remote id. On any failure (network
//	error, unknown id, invalid envelope) the live store is left
//	unchanged and false is returned.
func (o *Orchestrator) LoadFromCloud(ctx context.Context, sess *Session, store *tree.Store, id storage.Identifier) bool {
	if o.remote == nil || id.Kind != storage.KindRemote {
		return false
	}
	return o.load(ctx, sess, store, o.remote, id)
}

// LoadFromStorage loads a locally saved tree into the store. The same
// no-corruption guarantee applies: the store changes only after the
// envelope is confirmed valid.
func (o *Orchestrator) LoadFromStorage(ctx context.Context, sess *Session, store *tree.Store, id storage.Identifier) bool {
	if id.Kind != storage.KindLocal {
		return false
	}
	return o.load(ctx, sess, store, o.local, id)
}

// LoadIdentifier dispatches a parsed identifier to the backend that owns
// its namespace.
func (o *Orchestrator) LoadIdentifier(ctx context.Context, sess *Session, store *tree.Store, id storage.Identifier) bool {
	switch id.Kind {
	case storage.KindRemote:
		return o.LoadFromCloud(ctx, sess, store, id)
	case storage.KindLocal:
		return o.LoadFromStorage(ctx, sess, store, id)
	default:
		return false
	}
}

// ImportEnvelope validates an envelope and replaces the live state.
// Used by the share-code and export-file entry points, which carry
// envelopes rather than identifiers.
func (o *Orchestrator) ImportEnvelope(sess *Session, store *tree.Store, env *export.ExportEnvelope) bool {
	restore, err := export.PrepareTreeRestore(env)
	if err != nil {
		o.logger.Warn("envelope rejected on import", "error", err)
		return false
	}
	if err := store.Restore(sess.User, restore.Config, restore.Topper, restore.Ornaments); err != nil {
		o.logger.Warn("restore failed", "error", err)
		return false
	}
	return true
}

// ShareURL derives a share URL for the session.
//
// Description:
//
//	A session with a remote CloudID shares the short cloud form
//	<origin>?id=<remoteIdentifier>. Otherwise the full state is encoded
//	into a share code, which works without any backend at all. Local
//	identifiers are never embedded in URLs; they mean nothing on another
//	device.
func (o *Orchestrator) ShareURL(origin string, sess *Session, store *tree.Store) (string, error) {
	if sess.CloudID != nil && sess.CloudID.Kind == storage.KindRemote {
		return fmt.Sprintf("%s?id=%s", strings.TrimRight(origin, "/"), sess.CloudID.Value), nil
	}
	env := export.ExportTree(store.Ornaments(), store.Topper(), store.Config(), nil)
	return sharecode.GenerateShareURL(origin, env)
}

// load runs one backend load plus import, leaving the store untouched on
// any failure.
func (o *Orchestrator) load(ctx context.Context, sess *Session, store *tree.Store, backend storage.Backend, id storage.Identifier) bool {
	env, err := o.loadGuarded(ctx, backend, id)
	if err != nil {
		o.logger.Error("backend load failed", "id", id.Value, "error", err)
		return false
	}
	if env == nil {
		o.logger.Warn("no saved tree for identifier", "id", id.Value)
		return false
	}
	return o.ImportEnvelope(sess, store, env)
}

// saveGuarded calls a backend save with panic recovery, converting an
// unexpected collaborator panic into an ordinary error.
func (o *Orchestrator) saveGuarded(ctx context.Context, backend storage.Backend, env *export.ExportEnvelope) (id storage.Identifier, err error) {
	defer func() {
		if r := recover(); r != nil {
			id = storage.Identifier{}
			err = fmt.Errorf("backend panic during save: %v", r)
		}
	}()
	return backend.Save(ctx, env)
}

// loadGuarded calls a backend load with panic recovery.
func (o *Orchestrator) loadGuarded(ctx context.Context, backend storage.Backend, id storage.Identifier) (env *export.ExportEnvelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			env = nil
			err = fmt.Errorf("backend panic during load: %v", r)
		}
	}()
	return backend.Load(ctx, id)
}
