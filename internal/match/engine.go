// Package match evaluates configured classification rules against document
// text and metadata. Category assignment is single-winner (lowest priority
// value), tagging is cumulative across every matching rule.
package match

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rule strategies.
const (
	StrategyAny   = "ANY"
	StrategyAll   = "ALL"
	StrategyExact = "EXACT"
	StrategyRegex = "REGEX"
	StrategyFuzzy = "FUZZY"
)

// ErrBadPattern marks a rule whose REGEX pattern does not compile. Such rules
// are inert for the run, never fatal.
var ErrBadPattern = errors.New("invalid rule pattern")

// Rule is one configured classification rule.
type Rule struct {
	ID           string
	Name         string
	Strategy     string
	Pattern      string
	CategoryCode string
	Tag          string
	Priority     int // lower = evaluated first
}

// RuleError records a rule disabled for the run because its pattern failed to
// compile. Surfaced to the audit trail by the caller.
type RuleError struct {
	Rule Rule
	Err  error
}

// Engine holds a rule set with REGEX patterns compiled once. Safe for
// concurrent use by pipeline workers.
type Engine struct {
	rules    []Rule
	compiled map[string]*regexp.Regexp // rule ID -> compiled pattern
	bad      []RuleError
}

// New builds an Engine from the active rule set. Rules are sorted ascending by
// priority. Invalid REGEX rules are skipped and reported via BadRules.
func New(rules []Rule) *Engine {
	e := &Engine{compiled: make(map[string]*regexp.Regexp)}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, r := range sorted {
		if r.Strategy == StrategyRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				e.bad = append(e.bad, RuleError{Rule: r, Err: fmt.Errorf("%w: %v", ErrBadPattern, err)})
				continue
			}
			e.compiled[r.ID] = re
		}
		e.rules = append(e.rules, r)
	}
	return e
}

// BadRules returns the rules disabled for this run due to compile errors.
func (e *Engine) BadRules() []RuleError {
	return e.bad
}

// Evaluate runs every rule in priority order against text and returns the
// matching rules, still ordered by priority.
func (e *Engine) Evaluate(text string) []Rule {
	lower := strings.ToLower(text)
	var matches []Rule
	for _, r := range e.rules {
		if e.ruleMatches(r, lower) {
			matches = append(matches, r)
		}
	}
	return matches
}

func (e *Engine) ruleMatches(r Rule, lowerText string) bool {
	pattern := strings.ToLower(r.Pattern)
	switch r.Strategy {
	case StrategyExact:
		return strings.Contains(lowerText, pattern)
	case StrategyAny:
		for _, term := range strings.Fields(pattern) {
			if strings.Contains(lowerText, term) {
				return true
			}
		}
		return false
	case StrategyAll:
		terms := strings.Fields(pattern)
		if len(terms) == 0 {
			return false
		}
		for _, term := range terms {
			if !strings.Contains(lowerText, term) {
				return false
			}
		}
		return true
	case StrategyRegex:
		re, ok := e.compiled[r.ID]
		return ok && re.MatchString(lowerText)
	case StrategyFuzzy:
		return fuzzyMatches(lowerText, pattern)
	default:
		return false
	}
}

// CategoryOf reduces matches to the single winning category: the first match
// carrying a category (matches arrive priority-ordered). Returns "" when no
// matching rule assigns one, leaving the document for manual triage.
func CategoryOf(matches []Rule) string {
	for _, r := range matches {
		if r.CategoryCode != "" {
			return r.CategoryCode
		}
	}
	return ""
}

// TagsOf reduces matches to the cumulative tag set, preserving priority order
// and dropping duplicates.
func TagsOf(matches []Rule) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, r := range matches {
		if r.Tag != "" && !seen[r.Tag] {
			seen[r.Tag] = true
			tags = append(tags, r.Tag)
		}
	}
	return tags
}
