// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage defines the persistence backend contract shared by the
// remote (durable, authoritative) and local (best-effort fallback) stores,
// and the tagged identifier type that keeps their id namespaces apart.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
)

// IdentifierKind tags which backend issued an identifier.
type IdentifierKind string

const (
	KindRemote IdentifierKind = "remote"
	KindLocal  IdentifierKind = "local"
)

// Identifier namespace prefixes. Remote ids are server-issued and local
// ids are generated on this device; the prefixes make the two namespaces
// disjoint by construction, and neither contains a dot, which keeps both
// disjoint from share codes as well.
const (
	RemotePrefix = "tree_"
	LocalPrefix  = "local_"
)

// Sentinel errors for identifier handling.
var (
	ErrUnknownNamespace = errors.New("identifier has no recognized namespace prefix")
	ErrEmptyIdentifier  = errors.New("identifier is empty")
)

// Identifier is a backend-issued reference to a saved envelope.
//
// It is a tagged variant rather than a bare string so that downstream code
// (share URL construction, load dispatch) can branch on Kind
// deterministically instead of guessing by string shape.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

// String returns the wire form of the identifier. The namespace prefix is
// part of the value, so the string form survives a round trip through
// ParseIdentifier.
func (id Identifier) String() string {
	return id.Value
}

// IsZero reports whether the identifier is unset.
func (id Identifier) IsZero() bool {
	return id.Value == ""
}

// ParseIdentifier reconstructs a tagged identifier from its wire form.
func ParseIdentifier(s string) (Identifier, error) {
	switch {
	case s == "":
		return Identifier{}, ErrEmptyIdentifier
	case strings.HasPrefix(s, RemotePrefix):
		return Identifier{Kind: KindRemote, Value: s}, nil
	case strings.HasPrefix(s, LocalPrefix):
		return Identifier{Kind: KindLocal, Value: s}, nil
	default:
		return Identifier{}, ErrUnknownNamespace
	}
}

// SavedTree is a listing summary of one persisted envelope.
type SavedTree struct {
	ID            Identifier `json:"id"`
	Name          string     `json:"name,omitempty"`
	OrnamentCount int        `json:"ornamentCount"`
	SavedAt       time.Time  `json:"savedAt"`
}

// Backend is the save/load contract both persistence backends implement.
//
// Save persists an envelope and returns the identifier it was stored
// under. Load returns the envelope for an identifier, or (nil, nil) when
// the identifier is unknown; errors are reserved for I/O failures of the
// storage medium itself.
type Backend interface {
	Save(ctx context.Context, env *export.ExportEnvelope) (Identifier, error)
	Load(ctx context.Context, id Identifier) (*export.ExportEnvelope, error)
}

// Lister is implemented by backends that can enumerate saved envelopes.
type Lister interface {
	List(ctx context.Context) ([]SavedTree, error)
}
