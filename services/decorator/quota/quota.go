// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package quota implements per-user decoration limits and feature gates.
//
// Quota evaluation is stateless: every function here is pure over a user's
// tier record and the caller-supplied live ornament count. Usage is never
// tracked inside this package, so the counter cannot drift from the actual
// contents of a tree store.
package quota

// Tier identifies a user's account tier.
type Tier string

const (
	TierFree      Tier = "free"
	TierPremium   Tier = "premium"
	TierUnlimited Tier = "unlimited"
)

// ValidTiers is the set of recognized account tiers.
var ValidTiers = map[Tier]bool{
	TierFree:      true,
	TierPremium:   true,
	TierUnlimited: true,
}

// Quota holds the limits and feature gates for one tier.
//
// It carries limits only. The used-ornament count is derived from the live
// tree state at evaluation time and passed in by the caller.
type Quota struct {
	// MaxOrnaments is the ornament cap. Negative means unlimited.
	MaxOrnaments int `json:"maxOrnaments"`

	// MaxToppers is the topper cap. A tree has exactly one topper slot,
	// so this is 1 for every tier today; kept explicit for the data model.
	MaxToppers int `json:"maxToppers"`

	CanUseSpecialOrnaments bool `json:"canUseSpecialOrnaments"`
	CanUseCustomColors     bool `json:"canUseCustomColors"`
	CanUseAnimations       bool `json:"canUseAnimations"`
}

// User pairs an identity with its tier and quota record.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tier  Tier   `json:"tier"`
	Quota Quota  `json:"quota"`
}

// ForTier returns the quota record for a tier.
//
// Unknown tiers get the free quota, the most restrictive one.
func ForTier(t Tier) Quota {
	switch t {
	case TierPremium:
		return Quota{
			MaxOrnaments:           100,
			MaxToppers:             1,
			CanUseSpecialOrnaments: true,
			CanUseCustomColors:     true,
			CanUseAnimations:       true,
		}
	case TierUnlimited:
		return Quota{
			MaxOrnaments:           -1,
			MaxToppers:             1,
			CanUseSpecialOrnaments: true,
			CanUseCustomColors:     true,
			CanUseAnimations:       true,
		}
	default:
		return Quota{
			MaxOrnaments: 10,
			MaxToppers:   1,
		}
	}
}

// NewUser creates a user with the quota record for the given tier.
func NewUser(id, name string, tier Tier) *User {
	return &User{
		ID:    id,
		Name:  name,
		Tier:  tier,
		Quota: ForTier(tier),
	}
}

// CanAddOrnament reports whether the user may place one more ornament
// given the current live ornament count.
func CanAddOrnament(u *User, used int) bool {
	if u == nil {
		return false
	}
	if u.Quota.MaxOrnaments < 0 {
		return true
	}
	return used < u.Quota.MaxOrnaments
}

// SpecialOrnamentTypes is the fixed subset of ornament types gated behind
// the CanUseSpecialOrnaments flag. Keyed by type name so this package does
// not depend on the tree package's enum.
var SpecialOrnamentTypes = map[string]bool{
	"heart":       true,
	"star":        true,
	"gingerbread": true,
	"candycane":   true,
}

// CanUseOrnamentType reports whether the user may place an ornament of the
// given type. Ordinary types are allowed unconditionally; the special
// subset requires the CanUseSpecialOrnaments gate.
func CanUseOrnamentType(u *User, ornamentType string) bool {
	if u == nil {
		return false
	}
	if !SpecialOrnamentTypes[ornamentType] {
		return true
	}
	return u.Quota.CanUseSpecialOrnaments
}

// RemainingOrnaments returns how many more ornaments the user may place
// given the current live count. Never negative. Unlimited tiers always
// report a large positive remainder.
func RemainingOrnaments(u *User, used int) int {
	if u == nil {
		return 0
	}
	if u.Quota.MaxOrnaments < 0 {
		return int(^uint(0) >> 1) // unlimited
	}
	remaining := u.Quota.MaxOrnaments - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
