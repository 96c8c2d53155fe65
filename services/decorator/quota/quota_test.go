// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package quota

import "testing"

func TestForTier(t *testing.T) {
	tests := []struct {
		tier        Tier
		wantMax     int
		wantSpecial bool
	}{
		{TierFree, 10, false},
		{TierPremium, 100, true},
		{TierUnlimited, -1, true},
		{Tier("bogus"), 10, false}, // unknown tiers get the free quota
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			q := ForTier(tt.tier)
			if q.MaxOrnaments != tt.wantMax {
				t.Errorf("MaxOrnaments = %d, want %d", q.MaxOrnaments, tt.wantMax)
			}
			if q.CanUseSpecialOrnaments != tt.wantSpecial {
				t.Errorf("CanUseSpecialOrnaments = %v, want %v", q.CanUseSpecialOrnaments, tt.wantSpecial)
			}
			if q.MaxToppers != 1 {
				t.Errorf("MaxToppers = %d, want 1", q.MaxToppers)
			}
		})
	}
}

func TestCanAddOrnament(t *testing.T) {
	free := NewUser("u1", "Alice", TierFree)

	t.Run("below the cap", func(t *testing.T) {
		if !CanAddOrnament(free, 9) {
			t.Error("expected 9/10 to allow one more ornament")
		}
	})

	t.Run("at the cap", func(t *testing.T) {
		if CanAddOrnament(free, 10) {
			t.Error("expected 10/10 to be rejected")
		}
	})

	t.Run("unlimited tier has no cap", func(t *testing.T) {
		u := NewUser("u2", "Bob", TierUnlimited)
		if !CanAddOrnament(u, 1_000_000) {
			t.Error("unlimited tier should never hit a cap")
		}
	})

	t.Run("nil user is rejected", func(t *testing.T) {
		if CanAddOrnament(nil, 0) {
			t.Error("nil user must not be allowed to add ornaments")
		}
	})
}

func TestCanUseOrnamentType(t *testing.T) {
	free := NewUser("u1", "Alice", TierFree)
	premium := NewUser("u2", "Bob", TierPremium)

	t.Run("ordinary type is always allowed", func(t *testing.T) {
		if !CanUseOrnamentType(free, "ball") {
			t.Error("free tier should place ordinary ornaments")
		}
	})

	t.Run("special type gated on free tier", func(t *testing.T) {
		if CanUseOrnamentType(free, "heart") {
			t.Error("free tier must not place special ornaments")
		}
	})

	t.Run("special type allowed on premium tier", func(t *testing.T) {
		if !CanUseOrnamentType(premium, "heart") {
			t.Error("premium tier should place special ornaments")
		}
	})
}

func TestRemainingOrnaments(t *testing.T) {
	free := NewUser("u1", "Alice", TierFree)

	tests := []struct {
		name string
		used int
		want int
	}{
		{"empty tree", 0, 10},
		{"partially used", 7, 3},
		{"at the cap", 10, 0},
		{"over the cap never goes negative", 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingOrnaments(free, tt.used); got != tt.want {
				t.Errorf("RemainingOrnaments(%d) = %d, want %d", tt.used, got, tt.want)
			}
		})
	}

	t.Run("nil user has nothing remaining", func(t *testing.T) {
		if got := RemainingOrnaments(nil, 0); got != 0 {
			t.Errorf("RemainingOrnaments(nil) = %d, want 0", got)
		}
	})

	t.Run("unlimited tier reports a large remainder", func(t *testing.T) {
		u := NewUser("u2", "Bob", TierUnlimited)
		if got := RemainingOrnaments(u, 500); got <= 0 {
			t.Errorf("RemainingOrnaments on unlimited = %d, want positive", got)
		}
	})
}
