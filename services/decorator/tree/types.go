// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tree owns the live, editable decoration state of a single tree:
// the ordered ornament set, the single topper slot, and the shape
// configuration. All mutation goes through the Store, which applies quota
// checks before changing anything.
package tree

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/pkg/validation"
)

// OrnamentType is the kind of a placed ornament.
type OrnamentType string

const (
	OrnamentBall        OrnamentType = "ball"
	OrnamentHeart       OrnamentType = "heart"
	OrnamentStar        OrnamentType = "star"
	OrnamentRibbon      OrnamentType = "ribbon"
	OrnamentGingerbread OrnamentType = "gingerbread"
	OrnamentCandyCane   OrnamentType = "candycane"
	OrnamentBell        OrnamentType = "bell"
	OrnamentSnowflake   OrnamentType = "snowflake"
)

// ValidOrnamentTypes is the set of recognized ornament types.
var ValidOrnamentTypes = map[OrnamentType]bool{
	OrnamentBall:        true,
	OrnamentHeart:       true,
	OrnamentStar:        true,
	OrnamentRibbon:      true,
	OrnamentGingerbread: true,
	OrnamentCandyCane:   true,
	OrnamentBell:        true,
	OrnamentSnowflake:   true,
}

// TopperType is the kind of a tree topper.
type TopperType string

const (
	TopperStar  TopperType = "star"
	TopperAngel TopperType = "angel"
	TopperBow   TopperType = "bow"
)

// ValidTopperTypes is the set of recognized topper types.
var ValidTopperTypes = map[TopperType]bool{
	TopperStar:  true,
	TopperAngel: true,
	TopperBow:   true,
}

// Vector3 is a position or rotation in tree-local space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TreeConfig holds the scalar shape parameters of the tree.
//
// Invariants: Tiers >= 1, SnowAmount in [0,1]. Updates merge without
// clamping; ValidateTreeConfig is available to callers that want the
// range checks enforced.
type TreeConfig struct {
	// Seed drives the deterministic branch layout.
	Seed       int64   `json:"seed"`
	Height     float64 `json:"height"`
	Radius     float64 `json:"radius"`
	Tiers      int     `json:"tiers"`
	Color      string  `json:"color"`
	SnowAmount float64 `json:"snowAmount"`
}

// DefaultTreeConfig returns the configuration a fresh tree starts with.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		Seed:       1,
		Height:     6,
		Radius:     2.5,
		Tiers:      7,
		Color:      "#1a472a",
		SnowAmount: 0.3,
	}
}

// OrnamentData is one placed decoration. Owned exclusively by the Store;
// export and import operate on copies.
type OrnamentData struct {
	// ID is unique within a tree, assigned on creation or import,
	// never reused.
	ID        string       `json:"id"`
	Type      OrnamentType `json:"type"`
	Color     string       `json:"color"`
	Position  Vector3      `json:"position"`
	Scale     float64      `json:"scale"`
	Rotation  *Vector3     `json:"rotation,omitempty"`
	UserID    string       `json:"userId,omitempty"`
	UserName  string       `json:"userName,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// TreeTopperData is the single optional topper of a tree.
type TreeTopperData struct {
	ID        string     `json:"id"`
	Type      TopperType `json:"type"`
	Color     string     `json:"color"`
	Scale     float64    `json:"scale"`
	Glow      bool       `json:"glow"`
	UserID    string     `json:"userId,omitempty"`
	UserName  string     `json:"userName,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// OrnamentDraft is the caller-supplied part of a new ornament. Identity,
// attribution, and the creation timestamp are assigned by the Store.
type OrnamentDraft struct {
	Type     OrnamentType
	Color    string
	Position Vector3
	Scale    float64
	Rotation *Vector3
}

// TopperDraft is the caller-supplied part of a new topper.
type TopperDraft struct {
	Type  TopperType
	Color string
	Scale float64
	Glow  bool
}

// OrnamentUpdate carries the fields of an ornament that may change after
// placement. Nil fields are left untouched. Identity, attribution, and
// CreatedAt cannot be updated.
type OrnamentUpdate struct {
	Color    *string
	Position *Vector3
	Scale    *float64
	Rotation *Vector3
}

// TreeConfigUpdate carries partial configuration changes. Nil fields are
// left untouched.
type TreeConfigUpdate struct {
	Seed       *int64
	Height     *float64
	Radius     *float64
	Tiers      *int
	Color      *string
	SnowAmount *float64
}

// Sentinel errors for tree state operations.
var (
	ErrQuotaExceeded       = errors.New("ornament quota exceeded")
	ErrOrnamentTypeGated   = errors.New("ornament type not available on this tier")
	ErrInvalidOrnamentType = errors.New("invalid ornament type")
	ErrInvalidTopperType   = errors.New("invalid topper type")
	ErrNoUser              = errors.New("no user supplied")
)

// ValidateTreeConfig checks the documented range invariants. UpdateTreeConfig
// deliberately does not call this; see the Store documentation.
func ValidateTreeConfig(c TreeConfig) error {
	if err := validation.ValidateTiers(c.Tiers); err != nil {
		return err
	}
	if err := validation.ValidateSnowAmount(c.SnowAmount); err != nil {
		return err
	}
	if c.Height <= 0 || c.Radius <= 0 {
		return errors.New("height and radius must be positive")
	}
	if c.Color != "" {
		if err := validation.ValidateHexColor(c.Color); err != nil {
			return fmt.Errorf("tree color: %w", err)
		}
	}
	return nil
}
