package pii

import (
	"regexp"
	"strings"
)

// Strategy names how a matched value is rewritten.
type Strategy string

const (
	StrategyHash     Strategy = "hash"
	StrategyMask     Strategy = "mask"
	StrategyRemove   Strategy = "remove"
	StrategyTokenize Strategy = "tokenize"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyHash, StrategyMask, StrategyRemove, StrategyTokenize:
		return true
	}
	return false
}

// Built-in categories.
const (
	CategoryEmail      = "email"
	CategoryPhone      = "phone"
	CategorySSN        = "ssn"
	CategoryCreditCard = "credit_card"
	CategoryName       = "name"
	CategoryAddress    = "address"
)

// Rule pairs a matcher with a strategy. FieldGate, when set, restricts the
// rule to fields whose name contains it (case-insensitive).
type Rule struct {
	Name      string
	Pattern   *regexp.Regexp
	Strategy  Strategy
	FieldGate string
}

var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	phonePattern      = regexp.MustCompile(`(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)
	namePattern       = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	addressPattern    = regexp.MustCompile(`(?i)\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl)\b`)
)

// skipFields are structural and never carry free text.
var skipFields = map[string]struct{}{
	"timestamp":        {},
	"service":          {},
	"interaction_type": {},
	"session_id":       {},
}

// Config selects the built-in categories and appends custom rules.
type Config struct {
	Email      bool
	Phone      bool
	SSN        bool
	CreditCard bool
	Name       bool
	Address    bool

	// Strategies overrides the strategy of a built-in category.
	Strategies map[string]Strategy
	// DefaultStrategy applies to custom rules that do not name one.
	DefaultStrategy Strategy
	// Custom rules run after the built-ins, in the given order.
	Custom []Rule
}

// DefaultConfig enables every built-in category.
func DefaultConfig() Config {
	return Config{
		Email:           true,
		Phone:           true,
		SSN:             true,
		CreditCard:      true,
		Name:            true,
		Address:         true,
		DefaultStrategy: StrategyHash,
	}
}

// buildRules returns the rules in application order. Later rules see text
// already rewritten by earlier ones, so this order is part of the contract:
// email, phone, ssn, credit_card, name, address, then custom rules.
func buildRules(cfg Config) []Rule {
	strategy := func(category string, fallback Strategy) Strategy {
		if s, ok := cfg.Strategies[category]; ok && s.Valid() {
			return s
		}
		return fallback
	}

	var rules []Rule
	if cfg.Email {
		rules = append(rules, Rule{Name: CategoryEmail, Pattern: emailPattern, Strategy: strategy(CategoryEmail, StrategyMask), FieldGate: "email"})
	}
	if cfg.Phone {
		rules = append(rules, Rule{Name: CategoryPhone, Pattern: phonePattern, Strategy: strategy(CategoryPhone, StrategyMask), FieldGate: "phone"})
	}
	if cfg.SSN {
		rules = append(rules, Rule{Name: CategorySSN, Pattern: ssnPattern, Strategy: strategy(CategorySSN, StrategyHash)})
	}
	if cfg.CreditCard {
		rules = append(rules, Rule{Name: CategoryCreditCard, Pattern: creditCardPattern, Strategy: strategy(CategoryCreditCard, StrategyHash)})
	}
	if cfg.Name {
		rules = append(rules, Rule{Name: CategoryName, Pattern: namePattern, Strategy: strategy(CategoryName, StrategyTokenize)})
	}
	if cfg.Address {
		rules = append(rules, Rule{Name: CategoryAddress, Pattern: addressPattern, Strategy: strategy(CategoryAddress, StrategyHash)})
	}

	defaultStrategy := cfg.DefaultStrategy
	if !defaultStrategy.Valid() {
		defaultStrategy = StrategyHash
	}
	for _, r := range cfg.Custom {
		if r.Pattern == nil {
			continue
		}
		if !r.Strategy.Valid() {
			r.Strategy = defaultStrategy
		}
		rules = append(rules, r)
	}
	return rules
}

// applies reports whether the rule may rewrite a value stored under field.
func (r Rule) applies(field string) bool {
	if _, skip := skipFields[field]; skip {
		return false
	}
	if r.FieldGate != "" && !strings.Contains(strings.ToLower(field), r.FieldGate) {
		return false
	}
	return true
}

var baseConfidence = map[string]float64{
	CategoryEmail:      0.95,
	CategoryPhone:      0.85,
	CategorySSN:        0.99,
	CategoryCreditCard: 0.90,
	CategoryName:       0.70,
	CategoryAddress:    0.75,
}

// confidence is a heuristic per category, nudged up when a value holds more
// than one match.
func confidence(category string, matches int) float64 {
	c, ok := baseConfidence[category]
	if !ok {
		c = 0.50
	}
	if matches > 1 {
		c = min(c+0.05, 1.0)
	}
	return c
}
