// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package ingest

import "errors"

var (
	// ErrMalformedEvent marks a record rejected before any persistence,
	// typically for a missing message.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrStoreUnavailable marks an ingestion call aborted because the raw
	// event could not be durably recorded.
	ErrStoreUnavailable = errors.New("event store unavailable")
)
