// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package detection implements the rule set and classifier of the Logwarden
// pipeline.
//
// A RuleSet is an ordered, immutable collection of keyword rules built once
// from configuration. The Classifier evaluates a single message against the
// rule set and returns candidate detections in rule order. Classification is
// pure: it performs no I/O and never mutates the message, so it can be unit
// tested without a store or responder.
//
// Persistence of detections and dispatch of response actions are handled
// separately by the ingest package.
package detection
