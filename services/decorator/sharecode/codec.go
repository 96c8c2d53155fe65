// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sharecode encodes export envelopes as compact, URL-safe strings.
//
// A share code is "v1." followed by the base64url (unpadded) encoding of
// the DEFLATE-compressed canonical envelope JSON. The code is
// self-describing: decoding needs nothing but the string itself. The body
// alphabet (A-Z a-z 0-9 - _) plus the "." separator never needs URL
// escaping, and the "v1." prefix keeps share codes disjoint from backend
// identifier namespaces, which never contain a dot.
package sharecode

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
)

// Prefix marks share codes of the current format version.
const Prefix = "v1."

// maxDecodedBytes bounds the decompressed envelope size. A hostile code
// could otherwise expand into an arbitrarily large allocation.
const maxDecodedBytes = 4 << 20

// IsShareCode reports whether s looks like a share code rather than a
// backend identifier. This is the dispatch test for share-URL ids: codes
// are tried with ParseShareCode, everything else is a backend id.
func IsShareCode(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// GenerateShareCode encodes an envelope as a share code.
//
// Description:
//
//	Deterministic and lossless: the envelope JSON is compressed with
//	DEFLATE and base64url-encoded. Numeric values survive exactly (JSON
//	round-trips float64 bit patterns). Fails closed on envelopes that
//	cannot be represented, such as non-finite numbers, returning an error
//	instead of a corrupt code.
//
// Outputs:
//
//	string - The share code, safe for a URL query or fragment component.
//	error - Non-nil if the envelope is invalid or unrepresentable.
func GenerateShareCode(env *export.ExportEnvelope) (string, error) {
	data, err := export.MarshalEnvelope(env)
	if err != nil {
		return "", fmt.Errorf("encode share code: %w", err)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("encode share code: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("encode share code: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("encode share code: %w", err)
	}

	return Prefix + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// ParseShareCode decodes a share code back into an envelope.
//
// Description:
//
//	The inverse of GenerateShareCode. Any failure (wrong prefix, bad
//	base64, truncated compression stream, malformed or version-incompatible
//	envelope) yields nil, never a panic. Failures are logged at Warn.
//
// Outputs:
//
//	*export.ExportEnvelope - The decoded envelope, nil on any failure.
func ParseShareCode(code string) *export.ExportEnvelope {
	body, ok := strings.CutPrefix(code, Prefix)
	if !ok || body == "" {
		slog.Warn("share code rejected: missing version prefix")
		return nil
	}

	compressed, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		slog.Warn("share code rejected: not base64url", "error", err)
		return nil
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedBytes))
	if err != nil {
		slog.Warn("share code rejected: corrupt compression stream", "error", err)
		return nil
	}

	env, err := export.UnmarshalEnvelope(data)
	if err != nil {
		slog.Warn("share code rejected: malformed envelope", "error", err)
		return nil
	}
	if err := export.ValidateEnvelope(env); err != nil {
		slog.Warn("share code rejected: invalid envelope", "error", err)
		return nil
	}
	return env
}

// GenerateShareURL composes a shareable URL for an envelope.
//
// The code needs no escaping; it is appended verbatim as the id query
// parameter.
func GenerateShareURL(origin string, env *export.ExportEnvelope) (string, error) {
	code, err := GenerateShareCode(env)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s?id=%s", strings.TrimRight(origin, "/"), code), nil
}
