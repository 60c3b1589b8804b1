// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package detection

import "strings"

// Classifier evaluates messages against a fixed rule set. It is pure and
// safe for concurrent use; the rule set is captured at construction and never
// mutated.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given rule set.
func NewClassifier(rs RuleSet) *Classifier {
	return &Classifier{rules: rs.Rules()}
}

// Classify evaluates one message against every rule and returns candidate
// detections in rule order. The returned slice may be empty. No rule
// short-circuits another; every keyword is checked against every message.
//
// For each keyword rule the outcome is exactly one of:
//
//   - the keyword occurs in the message (case-insensitive): a triggering
//     keyword candidate is emitted;
//   - the keyword does not occur but the message contains "failed"
//     (case-insensitive): a generic fallback candidate is emitted.
//
// The second branch runs per keyword, so a failure message that matches no
// keywords yields one generic candidate for every configured keyword. That
// multiplicity is long-standing recorded behavior that downstream reporting
// depends on; do not deduplicate here.
func (c *Classifier) Classify(message string) []Candidate {
	lower := strings.ToLower(message)
	reportsFailure := strings.Contains(lower, failureIndicator)

	var candidates []Candidate
	for _, rule := range c.rules {
		if strings.Contains(lower, rule.Keyword) {
			candidates = append(candidates, Candidate{
				RuleLabel:  rule.Label,
				Keyword:    rule.Keyword,
				Severity:   rule.Severity,
				Triggering: true,
			})
			continue
		}
		if reportsFailure {
			candidates = append(candidates, Candidate{
				RuleLabel: GenericLabel,
				Severity:  SeverityWarning,
			})
		}
	}
	return candidates
}
