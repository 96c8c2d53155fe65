// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validators for user-supplied values
// that end up in storage keys, URLs, or rendered output: color strings,
// backend identifiers, and tree configuration ranges.
package validation

import (
	"fmt"
	"regexp"
)

// hexColorPattern matches #RGB and #RRGGBB hex color strings.
var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateHexColor validates a hex color string such as "#ff0000" or "#f00".
//
// Example:
//
//	if err := validation.ValidateHexColor(draft.Color); err != nil {
//	    return nil, fmt.Errorf("invalid color: %w", err)
//	}
func ValidateHexColor(color string) error {
	if color == "" {
		return fmt.Errorf("color cannot be empty")
	}
	if !hexColorPattern.MatchString(color) {
		return fmt.Errorf("invalid color format: %q (must be #RGB or #RRGGBB)", color)
	}
	return nil
}

// identifierBodyPattern matches the uuid body of a backend identifier.
var identifierBodyPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateIdentifierBody validates the uuid part of a backend identifier,
// the portion after the namespace prefix. Identifiers travel in URLs and
// storage keys, so anything outside the uuid alphabet is rejected.
func ValidateIdentifierBody(body string) error {
	if body == "" {
		return fmt.Errorf("identifier body cannot be empty")
	}
	if !identifierBodyPattern.MatchString(body) {
		return fmt.Errorf("invalid identifier body: %q", body)
	}
	return nil
}

// ValidateSnowAmount checks the documented [0,1] range.
func ValidateSnowAmount(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("snowAmount %v out of range [0,1]", v)
	}
	return nil
}

// ValidateTiers checks the documented tiers >= 1 invariant.
func ValidateTiers(tiers int) error {
	if tiers < 1 {
		return fmt.Errorf("tiers must be at least 1, got %d", tiers)
	}
	return nil
}
