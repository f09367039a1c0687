package outcome

import (
	"fmt"
	"log/slog"
	"regexp"
)

// Policy is the single definition of what makes a record fail a session.
//
// A record fails when its level is at or above FailLevel, or when its level
// cannot be parsed, unless its message matches one of the Allow expressions.
// A session without any record fails: a completed run always logs at least
// its module loading.
type Policy struct {
	Allow     []*regexp.Regexp
	FailLevel slog.Level
}

// DefaultPolicy fails on ERROR and above with an empty allow-list.
func DefaultPolicy() Policy {
	return Policy{FailLevel: slog.LevelError}
}

// NewPolicy builds a policy from a level name and allow-list expressions.
// An empty level name means ERROR.
func NewPolicy(failLevel string, allow ...string) (Policy, error) {
	policy := DefaultPolicy()

	if failLevel != "" {
		lvl, err := ParseLevel(failLevel)
		if err != nil {
			return Policy{}, fmt.Errorf("fail level: %w", err)
		}

		policy.FailLevel = lvl
	}

	for _, expr := range allow {
		re, err := regexp.Compile(expr)
		if err != nil {
			return Policy{}, fmt.Errorf("allow pattern %q: %w", expr, err)
		}

		policy.Allow = append(policy.Allow, re)
	}

	return policy, nil
}

// Fails reports whether rec flips the verdict to failure.
func (p Policy) Fails(rec Record) bool {
	lvl, err := ParseLevel(rec.Level)
	if err == nil && lvl < p.FailLevel {
		return false
	}

	return !p.allowed(rec.Message)
}

func (p Policy) allowed(message string) bool {
	for _, re := range p.Allow {
		if re.MatchString(message) {
			return true
		}
	}

	return false
}
