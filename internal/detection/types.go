// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package detection

import "strings"

// Severity indicates the severity tier of a candidate detection.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	// KeywordLabelPrefix prefixes the label of every keyword rule. The full
	// label is the prefix followed by the matched keyword.
	KeywordLabelPrefix = "Strange access DETECTED! -> "

	// GenericLabel is the fallback label emitted for messages that report a
	// failure without matching a suspicious keyword.
	GenericLabel = "Dangerous please analyze this log!"

	// failureIndicator is the substring that marks a message as reporting a
	// failure (case-insensitive).
	failureIndicator = "failed"
)

// Rule is one keyword detection rule: a case-insensitive substring predicate
// over an event's message plus the label recorded when it fires.
type Rule struct {
	// Keyword is the matching text, held lowercase.
	Keyword string `json:"keyword"`

	// Label is the human-readable description emitted into the detection
	// record.
	Label string `json:"label"`

	// Severity orders rules by priority. Keyword rules are critical and
	// trigger a response; the generic fallback is warning-level only.
	Severity Severity `json:"severity"`
}

// RuleSet is an ordered, immutable collection of keyword rules. The iteration
// order is the configuration order, which fixes the order candidates are
// reported in.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet builds a rule set from an ordered keyword list. Keywords are
// lowercased for matching; empty keywords are skipped.
func NewRuleSet(keywords []string) RuleSet {
	rules := make([]Rule, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		kw = strings.ToLower(kw)
		rules = append(rules, Rule{
			Keyword:  kw,
			Label:    KeywordLabelPrefix + kw,
			Severity: SeverityCritical,
		})
	}
	return RuleSet{rules: rules}
}

// Rules returns a copy of the rules in configuration order.
func (rs RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len returns the number of rules.
func (rs RuleSet) Len() int {
	return len(rs.rules)
}

// DefaultKeywords returns the stock suspicious keyword list. Operators
// override it via the detection.keywords config key.
func DefaultKeywords() []string {
	return []string{
		"brute force", "sql injection", "union select", "drop table", " or ",
		"or 1 = 1", "or 1=1", "or 1 =1", "or 1= 1",
		"xss", "<script>", "malware", "exploit", "attack",
	}
}

// Candidate is one classification result for a message. Candidates carry no
// ids or timestamps; the ingestion coordinator assigns those when persisting.
type Candidate struct {
	// RuleLabel is the label to record.
	RuleLabel string `json:"rule_label"`

	// Keyword is the keyword that matched. Empty for generic candidates.
	Keyword string `json:"keyword,omitempty"`

	// Severity of the firing rule.
	Severity Severity `json:"severity"`

	// Triggering marks keyword matches, which dispatch a response action.
	// Generic fallback candidates never trigger.
	Triggering bool `json:"triggering"`
}
