// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tree

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/quota"
)

// Store owns the live decoration state of one tree for the duration of an
// editing session.
//
// Description:
//
//	The Store holds the ordered ornament sequence, the single topper slot,
//	and the tree configuration. Every mutation that places a decoration is
//	quota-checked against the acting user before any state changes. The
//	acting user is threaded into each call explicitly; there is no ambient
//	current-user state.
//
// Thread Safety: NOT safe for concurrent use. The design assumes a single
// active editor per session (one coordinating goroutine).
type Store struct {
	config    TreeConfig
	ornaments []OrnamentData
	topper    *TreeTopperData
}

// NewStore creates a store with the default tree configuration and no
// decorations. The store is immediately ready; there is no partially
// initialized state visible to callers.
func NewStore() *Store {
	return &Store{
		config:    DefaultTreeConfig(),
		ornaments: make([]OrnamentData, 0, 16),
	}
}

// NewStoreWithConfig creates a store with the given configuration.
func NewStoreWithConfig(config TreeConfig) *Store {
	return &Store{
		config:    config,
		ornaments: make([]OrnamentData, 0, 16),
	}
}

// Config returns the current tree configuration.
func (s *Store) Config() TreeConfig {
	return s.config
}

// Ornaments returns a copy of the ornament sequence in placement order.
func (s *Store) Ornaments() []OrnamentData {
	out := make([]OrnamentData, len(s.ornaments))
	copy(out, s.ornaments)
	for i := range out {
		out[i].Rotation = cloneVector(out[i].Rotation)
	}
	return out
}

// OrnamentCount returns the live ornament count. This is the single source
// of truth for quota usage.
func (s *Store) OrnamentCount() int {
	return len(s.ornaments)
}

// Topper returns a copy of the current topper, or nil if the slot is empty.
func (s *Store) Topper() *TreeTopperData {
	if s.topper == nil {
		return nil
	}
	t := *s.topper
	return &t
}

// CanAddOrnament reports whether the user may place one more ornament,
// derived from the live count.
func (s *Store) CanAddOrnament(u *quota.User) bool {
	return quota.CanAddOrnament(u, len(s.ornaments))
}

// RemainingOrnaments returns how many more ornaments the user may place.
func (s *Store) RemainingOrnaments(u *quota.User) int {
	return quota.RemainingOrnaments(u, len(s.ornaments))
}

// AddOrnament places a new ornament for the given user.
//
// Description:
//
//	Checks the user's ornament quota and type gate, then assigns a fresh
//	unique id, attribution from the user, and a creation timestamp, and
//	appends the ornament to the end of the sequence.
//
// Inputs:
//
//	u - The acting user. Must not be nil.
//	draft - Type, color, position, scale, optional rotation.
//
// Outputs:
//
//	*OrnamentData - Copy of the created ornament, nil on rejection.
//	error - ErrNoUser, ErrInvalidOrnamentType, ErrOrnamentTypeGated, or
//	        ErrQuotaExceeded. A rejection leaves the state unchanged.
func (s *Store) AddOrnament(u *quota.User, draft OrnamentDraft) (*OrnamentData, error) {
	if u == nil {
		return nil, ErrNoUser
	}
	if !ValidOrnamentTypes[draft.Type] {
		return nil, ErrInvalidOrnamentType
	}
	if !quota.CanUseOrnamentType(u, string(draft.Type)) {
		return nil, ErrOrnamentTypeGated
	}
	if !quota.CanAddOrnament(u, len(s.ornaments)) {
		slog.Debug("ornament rejected by quota",
			"user_id", u.ID, "tier", u.Tier, "used", len(s.ornaments))
		return nil, ErrQuotaExceeded
	}

	o := OrnamentData{
		ID:        uuid.NewString(),
		Type:      draft.Type,
		Color:     draft.Color,
		Position:  draft.Position,
		Scale:     draft.Scale,
		Rotation:  cloneVector(draft.Rotation),
		UserID:    u.ID,
		UserName:  u.Name,
		CreatedAt: time.Now().UTC(),
	}
	s.ornaments = append(s.ornaments, o)

	created := o
	created.Rotation = cloneVector(o.Rotation)
	return &created, nil
}

// RemoveOrnament removes the ornament with the given id if present.
// Removing an unknown id is a no-op, not an error.
func (s *Store) RemoveOrnament(id string) {
	for i := range s.ornaments {
		if s.ornaments[i].ID == id {
			s.ornaments = append(s.ornaments[:i], s.ornaments[i+1:]...)
			return
		}
	}
}

// UpdateOrnament merges the given fields into the ornament with the
// matching id. Identity, attribution, and CreatedAt never change.
//
// Outputs:
//
//	*OrnamentData - Copy of the updated ornament, nil if the id is unknown.
//	bool - False if the id is unknown (no-op).
func (s *Store) UpdateOrnament(id string, update OrnamentUpdate) (*OrnamentData, bool) {
	for i := range s.ornaments {
		if s.ornaments[i].ID != id {
			continue
		}
		o := &s.ornaments[i]
		if update.Color != nil {
			o.Color = *update.Color
		}
		if update.Position != nil {
			o.Position = *update.Position
		}
		if update.Scale != nil {
			o.Scale = *update.Scale
		}
		if update.Rotation != nil {
			o.Rotation = cloneVector(update.Rotation)
		}
		out := *o
		out.Rotation = cloneVector(o.Rotation)
		return &out, true
	}
	return nil, false
}

// ClearOrnaments empties the ornament sequence unconditionally. Clearing
// is not quota-gated; it can only reduce usage.
func (s *Store) ClearOrnaments() {
	s.ornaments = s.ornaments[:0]
}

// SetTopper replaces the topper slot for the given user. A nil draft
// clears the slot. The replacement gets a fresh id; there is no quota
// check beyond the one-topper slot itself.
func (s *Store) SetTopper(u *quota.User, draft *TopperDraft) (*TreeTopperData, error) {
	if draft == nil {
		s.topper = nil
		return nil, nil
	}
	if u == nil {
		return nil, ErrNoUser
	}
	if !ValidTopperTypes[draft.Type] {
		return nil, ErrInvalidTopperType
	}
	t := TreeTopperData{
		ID:        uuid.NewString(),
		Type:      draft.Type,
		Color:     draft.Color,
		Scale:     draft.Scale,
		Glow:      draft.Glow,
		UserID:    u.ID,
		UserName:  u.Name,
		CreatedAt: time.Now().UTC(),
	}
	s.topper = &t
	out := t
	return &out, nil
}

// UpdateTreeConfig merges the given fields into the configuration.
// Values are accepted as-is without range clamping; callers that need the
// documented invariants enforced should run ValidateTreeConfig first.
func (s *Store) UpdateTreeConfig(update TreeConfigUpdate) TreeConfig {
	if update.Seed != nil {
		s.config.Seed = *update.Seed
	}
	if update.Height != nil {
		s.config.Height = *update.Height
	}
	if update.Radius != nil {
		s.config.Radius = *update.Radius
	}
	if update.Tiers != nil {
		s.config.Tiers = *update.Tiers
	}
	if update.Color != nil {
		s.config.Color = *update.Color
	}
	if update.SnowAmount != nil {
		s.config.SnowAmount = *update.SnowAmount
	}
	return s.config
}

// Restore replaces the entire live state with imported data.
//
// Description:
//
//	Consumes restore data prepared from an export envelope. Every imported
//	ornament and the topper receive fresh ids so that imported entities can
//	never collide with concurrently created local ones. Envelope
//	attribution is kept for display; entities without attribution are
//	credited to the importing user. Placement order is preserved.
//
// Inputs:
//
//	u - The importing user. Must not be nil.
//	config - Tree configuration from the envelope.
//	topper - Optional topper from the envelope.
//	ornaments - Ornament sequence from the envelope, in order.
func (s *Store) Restore(u *quota.User, config TreeConfig, topper *TreeTopperData, ornaments []OrnamentData) error {
	if u == nil {
		return ErrNoUser
	}

	restored := make([]OrnamentData, 0, len(ornaments))
	for _, o := range ornaments {
		o.ID = uuid.NewString()
		o.Rotation = cloneVector(o.Rotation)
		if o.UserID == "" {
			o.UserID = u.ID
			o.UserName = u.Name
		}
		restored = append(restored, o)
	}

	var restoredTopper *TreeTopperData
	if topper != nil {
		t := *topper
		t.ID = uuid.NewString()
		if t.UserID == "" {
			t.UserID = u.ID
			t.UserName = u.Name
		}
		restoredTopper = &t
	}

	s.config = config
	s.ornaments = restored
	s.topper = restoredTopper

	slog.Info("tree state restored",
		"ornaments", len(restored), "has_topper", restoredTopper != nil)
	return nil
}

func cloneVector(v *Vector3) *Vector3 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
