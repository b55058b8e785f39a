// Package policy maps request paths to named route groups carrying
// per-group rate limits, timeouts and exemptions.
package policy

import (
	"regexp"
	"time"
)

// RateLimitRule describes a rate-limiting policy for a group of routes.
type RateLimitRule struct {
	// Rate is the maximum number of requests a client may make within
	// Window.
	Rate int
	// Window is the time window for the rate limit.
	Window time.Duration
}

// Policy holds the configuration that applies to a matched route group.
type Policy struct {
	// RateLimit overrides the global per-client limit for this group.
	RateLimit *RateLimitRule
	// Exempt skips rate limiting entirely (health checks, metrics scrapes).
	Exempt bool
	// Timeout bounds the request context for handlers in this group.
	Timeout time.Duration
}

// matchKind distinguishes the three matching strategies.
type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix                  // medium priority
	kindRegex                   // lowest priority
)

// rule is a single matching rule inside a group.
type rule struct {
	kind    matchKind
	pattern string         // used for exact and prefix matches
	re      *regexp.Regexp // used for regex matches
}

// GroupBuilder constructs a route group with one or more matching rules
// and a policy.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy *Policy
}

// Group starts building a new route group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact adds an exact-match rule for path.
func (g *GroupBuilder) Exact(path string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: path})
	return g
}

// Prefix adds a prefix-match rule for path.
func (g *GroupBuilder) Prefix(path string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: path})
	return g
}

// Regex adds a regex-match rule for pattern.
// The pattern is compiled immediately; an invalid regex will panic.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// Policy attaches a Policy to the group and returns the finished builder.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = &p
	return g
}
