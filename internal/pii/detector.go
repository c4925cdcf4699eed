// Package pii detects and rewrites personally identifiable information in
// log entries using an ordered list of (pattern, strategy) rules.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"consentlake/internal/logentry"
)

// Markers written by the strategies.
const (
	RemovedMarker = "[REMOVED]"
	hashPrefix    = "[HASH:"
	tokenPrefix   = "[TOKEN_"
)

var anonymizationMarkers = []string{hashPrefix, tokenPrefix, RemovedMarker, "*"}

// Field is a single detection finding. It holds the raw value and must never
// be persisted.
type Field struct {
	Path       string   `json:"field"`
	Category   string   `json:"type"`
	Value      string   `json:"value"`
	Matches    []string `json:"matches"`
	Confidence float64  `json:"confidence"`
}

// Validation summarizes how well an anonymized text hides its original.
type Validation struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
	Score   float64  `json:"score"`
}

// Stats reports tokenization state.
type Stats struct {
	TotalTokens int            `json:"total_tokens"`
	Rules       []string       `json:"rules"`
	Strategies  map[string]int `json:"strategies"`
}

// Detector applies rules to entries. The token map lives for the life of the
// detector: the same raw value always yields the same token within a process.
type Detector struct {
	rules []Rule

	mu     sync.Mutex
	tokens map[string]string
}

// NewDetector builds a detector from cfg.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		rules:  buildRules(cfg),
		tokens: make(map[string]string),
	}
}

// Rules returns the rules in application order.
func (d *Detector) Rules() []Rule {
	return slices.Clone(d.rules)
}

// DetectAndAnonymize returns a copy of entry with every string leaf rewritten.
// The input entry is not modified.
func (d *Detector) DetectAndAnonymize(entry *logentry.Entry) *logentry.Entry {
	out := entry.Clone()
	out.Fields = d.AnonymizeFields(out.Fields)
	return out
}

// AnonymizeFields rewrites every string leaf of fields, returning a new map.
func (d *Detector) AnonymizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = d.anonymizeValue(k, v)
	}
	return out
}

func (d *Detector) anonymizeValue(field string, v any) any {
	switch t := v.(type) {
	case string:
		return d.AnonymizeString(t, field)
	case map[string]any:
		return d.AnonymizeFields(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = d.anonymizeValue(field, item)
		}
		return out
	default:
		return v
	}
}

// AnonymizeString runs every rule that applies to field over text, in order.
func (d *Detector) AnonymizeString(text, field string) string {
	for _, r := range d.rules {
		if !r.applies(field) {
			continue
		}
		strategy := r.Strategy
		text = r.Pattern.ReplaceAllStringFunc(text, func(match string) string {
			return d.rewrite(match, strategy)
		})
	}
	return text
}

func (d *Detector) rewrite(match string, s Strategy) string {
	switch s {
	case StrategyMask:
		return mask(match)
	case StrategyRemove:
		return RemovedMarker
	case StrategyTokenize:
		return d.tokenize(match)
	default:
		return hash(match)
	}
}

func hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hashPrefix + hex.EncodeToString(sum[:])[:8] + "]"
}

func mask(value string) string {
	if local, domain, ok := strings.Cut(value, "@"); ok {
		if local == "" || domain == "" {
			return "[MASKED_EMAIL]"
		}
		return maskKeepEnds(local) + "@" + domain
	}
	return maskKeepEnds(value)
}

// maskKeepEnds keeps the first and last rune and stars the interior.
func maskKeepEnds(value string) string {
	r := []rune(value)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}

func (d *Detector) tokenize(value string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tok, ok := d.tokens[value]; ok {
		return tok
	}
	tok := fmt.Sprintf("%s%04d]", tokenPrefix, len(d.tokens)+1)
	d.tokens[value] = tok
	return tok
}

// DetectPIIFields reports findings without mutating the entry. Field gating
// does not apply here: the report over-approximates what anonymization rewrites.
func (d *Detector) DetectPIIFields(entry *logentry.Entry) []Field {
	var found []Field
	for _, k := range slices.Sorted(maps.Keys(entry.Fields)) {
		found = d.detectValue(found, k, entry.Fields[k])
	}
	return found
}

func (d *Detector) detectValue(found []Field, path string, v any) []Field {
	switch t := v.(type) {
	case string:
		for _, r := range d.rules {
			matches := r.Pattern.FindAllString(t, -1)
			if len(matches) == 0 {
				continue
			}
			found = append(found, Field{
				Path:       path,
				Category:   r.Name,
				Value:      t,
				Matches:    matches,
				Confidence: confidence(r.Name, len(matches)),
			})
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			found = d.detectValue(found, path+"."+k, t[k])
		}
	case []any:
		for i, item := range t {
			found = d.detectValue(found, fmt.Sprintf("%s[%d]", path, i), item)
		}
	}
	return found
}

// ValidateAnonymization re-scans anonymized output for raw matches carried
// over from original and checks that changed text carries a marker.
func (d *Detector) ValidateAnonymization(original, anonymized string) Validation {
	raw := make(map[string]struct{})
	for _, r := range d.rules {
		for _, m := range r.Pattern.FindAllString(original, -1) {
			raw[m] = struct{}{}
		}
	}

	issues := []string{}
	score := 1.0
	for _, r := range d.rules {
		for _, m := range r.Pattern.FindAllString(anonymized, -1) {
			if _, leaked := raw[m]; leaked {
				issues = append(issues, fmt.Sprintf("PII pattern '%s' still detected: %s", r.Name, m))
				score -= 0.2
			}
		}
	}

	hasMarker := slices.ContainsFunc(anonymizationMarkers, func(m string) bool {
		return strings.Contains(anonymized, m)
	})
	if !hasMarker && original != anonymized {
		issues = append(issues, "No anonymization markers found, but content was modified")
		score -= 0.1
	}
	if strings.TrimSpace(anonymized) == "" && strings.TrimSpace(original) != "" {
		issues = append(issues, "All content was removed during anonymization")
		score -= 0.3
	}

	return Validation{
		IsValid: len(issues) == 0,
		Issues:  issues,
		Score:   max(score, 0),
	}
}

// Stats reports the token count and the configured rule order.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	tokens := len(d.tokens)
	d.mu.Unlock()

	st := Stats{TotalTokens: tokens, Strategies: make(map[string]int)}
	for _, r := range d.rules {
		st.Rules = append(st.Rules, r.Name)
		st.Strategies[string(r.Strategy)]++
	}
	return st
}

// ClearTokens drops every issued token.
func (d *Detector) ClearTokens() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.tokens)
}

// ExportTokens returns a copy of the raw value to token map.
func (d *Detector) ExportTokens() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.tokens)
}

// ImportTokens replaces the token map.
func (d *Detector) ImportTokens(tokens map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = maps.Clone(tokens)
	if d.tokens == nil {
		d.tokens = make(map[string]string)
	}
}
