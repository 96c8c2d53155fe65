// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export converts live tree state to and from the portable export
// envelope.
//
// The envelope is the only form of a tree that is ever persisted or
// transmitted. It is versioned, self-contained, and built as a fresh deep
// snapshot on every export; nothing in an envelope references the live
// store. Import is the reverse: an envelope is validated and turned into
// data ready for re-identification by the tree store.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/tree"
)

// EnvelopeVersion is the current export format version. Parsers reject
// envelopes with a higher version than this.
const EnvelopeVersion = 1

// Sentinel errors for envelope handling.
var (
	ErrMissingTreeConfig  = errors.New("envelope has no tree config")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EnvelopeMetadata is the whitelisted descriptive metadata of an export.
// It is a closed set of fields, not an open map; unknown keys supplied by
// callers have nowhere to land.
type EnvelopeMetadata struct {
	Name        string   `json:"name,omitempty" validate:"max=120"`
	Description string   `json:"description,omitempty" validate:"max=2000"`
	Author      string   `json:"author,omitempty" validate:"max=120"`
	AuthorID    string   `json:"authorId,omitempty" validate:"max=64"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"max=16,dive,max=40"`
}

// ExportEnvelope is the portable, versioned snapshot of one tree.
//
// Invariant: an envelope round-trips through export and import without
// loss of ornament count, configuration values, or topper presence.
type ExportEnvelope struct {
	Version    int                  `json:"version" validate:"required,min=1"`
	TreeConfig *tree.TreeConfig     `json:"treeConfig" validate:"required"`
	Topper     *tree.TreeTopperData `json:"topper,omitempty"`
	Ornaments  []tree.OrnamentData  `json:"ornaments"`
	Metadata   EnvelopeMetadata     `json:"metadata"`
	ExportedAt time.Time            `json:"exportedAt"`
}

// RestoreData is an envelope's content prepared for the tree store.
// Ids inside are the exported ones; the store assigns fresh identities,
// since only the store knows the importing user's attribution.
type RestoreData struct {
	Config    tree.TreeConfig
	Topper    *tree.TreeTopperData
	Ornaments []tree.OrnamentData
}

// ExportTree builds a fresh export envelope from live state.
//
// Description:
//
//	Deep-copies the ornament sequence and topper (attribution retained for
//	display), copies the configuration, merges the caller's metadata
//	overrides onto an empty record, and stamps the export time. The inputs
//	are never mutated, and each call produces an independent snapshot.
//
// Inputs:
//
//	ornaments - Live ornament sequence, in placement order.
//	topper - Live topper, may be nil.
//	config - Live tree configuration.
//	overrides - Optional metadata. Nil means empty metadata.
//
// Outputs:
//
//	*ExportEnvelope - The self-contained snapshot.
func ExportTree(ornaments []tree.OrnamentData, topper *tree.TreeTopperData, config tree.TreeConfig, overrides *EnvelopeMetadata) *ExportEnvelope {
	snap := make([]tree.OrnamentData, len(ornaments))
	copy(snap, ornaments)
	for i := range snap {
		if snap[i].Rotation != nil {
			r := *snap[i].Rotation
			snap[i].Rotation = &r
		}
	}

	var topperCopy *tree.TreeTopperData
	if topper != nil {
		t := *topper
		topperCopy = &t
	}

	configCopy := config

	var meta EnvelopeMetadata
	if overrides != nil {
		meta = mergeMetadata(meta, *overrides)
	}

	return &ExportEnvelope{
		Version:    EnvelopeVersion,
		TreeConfig: &configCopy,
		Topper:     topperCopy,
		Ornaments:  snap,
		Metadata:   meta,
		ExportedAt: time.Now().UTC(),
	}
}

// mergeMetadata overlays non-zero override fields onto base. The field set
// is closed; there is no pass-through for unknown keys.
func mergeMetadata(base, overrides EnvelopeMetadata) EnvelopeMetadata {
	if overrides.Name != "" {
		base.Name = overrides.Name
	}
	if overrides.Description != "" {
		base.Description = overrides.Description
	}
	if overrides.Author != "" {
		base.Author = overrides.Author
	}
	if overrides.AuthorID != "" {
		base.AuthorID = overrides.AuthorID
	}
	if overrides.Thumbnail != "" {
		base.Thumbnail = overrides.Thumbnail
	}
	if len(overrides.Tags) > 0 {
		base.Tags = append([]string(nil), overrides.Tags...)
	}
	return base
}

// ValidateEnvelope checks the structural invariants of an envelope.
func ValidateEnvelope(env *ExportEnvelope) error {
	if env == nil {
		return errors.New("envelope is nil")
	}
	if env.TreeConfig == nil {
		return ErrMissingTreeConfig
	}
	if env.Version > EnvelopeVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if err := validate.Struct(env); err != nil {
		return fmt.Errorf("envelope validation: %w", err)
	}
	return nil
}

// PrepareTreeRestore validates an envelope and extracts data ready for
// re-identification by the tree store.
//
// Description:
//
//	A missing tree config is fatal. A malformed topper (unknown type) or
//	malformed ornament entries (unknown type, non-positive scale) degrade
//	to absent/empty rather than failing the whole import. New ids are NOT
//	assigned here; that is the store's responsibility.
//
// Outputs:
//
//	*RestoreData - Data for Store.Restore, nil on fatal validation failure.
//	error - ErrMissingTreeConfig, ErrUnsupportedVersion, or a wrapped
//	        validation error.
func PrepareTreeRestore(env *ExportEnvelope) (*RestoreData, error) {
	if err := ValidateEnvelope(env); err != nil {
		return nil, err
	}

	ornaments := make([]tree.OrnamentData, 0, len(env.Ornaments))
	for _, o := range env.Ornaments {
		if !tree.ValidOrnamentTypes[o.Type] || o.Scale <= 0 {
			continue
		}
		if o.Rotation != nil {
			r := *o.Rotation
			o.Rotation = &r
		}
		ornaments = append(ornaments, o)
	}

	var topper *tree.TreeTopperData
	if env.Topper != nil && tree.ValidTopperTypes[env.Topper.Type] {
		t := *env.Topper
		topper = &t
	}

	return &RestoreData{
		Config:    *env.TreeConfig,
		Topper:    topper,
		Ornaments: ornaments,
	}, nil
}

// MarshalEnvelope serializes an envelope to its canonical JSON form, the
// same self-describing structure embedded in share codes and export files.
func MarshalEnvelope(env *ExportEnvelope) ([]byte, error) {
	if err := ValidateEnvelope(env); err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// UnmarshalEnvelope parses envelope JSON leniently.
//
// Description:
//
//	The tree config and version are decoded strictly; a malformed topper
//	or ornament array is treated as absent/empty per the import contract.
//	Individually malformed ornament entries are dropped, not fatal.
//
// Outputs:
//
//	*ExportEnvelope - The parsed envelope.
//	error - Non-nil if the JSON itself or the required parts are invalid.
func UnmarshalEnvelope(data []byte) (*ExportEnvelope, error) {
	var raw struct {
		Version    int              `json:"version"`
		TreeConfig *tree.TreeConfig `json:"treeConfig"`
		Topper     json.RawMessage  `json:"topper"`
		Ornaments  json.RawMessage  `json:"ornaments"`
		Metadata   EnvelopeMetadata `json:"metadata"`
		ExportedAt time.Time        `json:"exportedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if raw.TreeConfig == nil {
		return nil, ErrMissingTreeConfig
	}
	if raw.Version > EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, raw.Version)
	}

	env := &ExportEnvelope{
		Version:    raw.Version,
		TreeConfig: raw.TreeConfig,
		Metadata:   raw.Metadata,
		ExportedAt: raw.ExportedAt,
		Ornaments:  []tree.OrnamentData{},
	}

	if len(raw.Topper) > 0 && string(raw.Topper) != "null" {
		var t tree.TreeTopperData
		if err := json.Unmarshal(raw.Topper, &t); err == nil {
			env.Topper = &t
		}
	}

	// A non-array ornaments value degrades to empty, like a bad topper.
	var rawOrnaments []json.RawMessage
	if len(raw.Ornaments) > 0 {
		if err := json.Unmarshal(raw.Ornaments, &rawOrnaments); err != nil {
			rawOrnaments = nil
		}
	}
	for _, rawOrnament := range rawOrnaments {
		var o tree.OrnamentData
		if err := json.Unmarshal(rawOrnament, &o); err != nil {
			continue
		}
		env.Ornaments = append(env.Ornaments, o)
	}
	return env, nil
}
