// Package auth implements the Authorization Hook: a pattern/permission/
// role ACL check invoked by the translator before each dispatched
// operation. Rules are data, evaluated first-match-wins, in the config-
// as-data idiom used throughout this codebase's other components (compare
// codec.WireType's closed constant table or cache.Config's tunable
// struct) rather than as a bespoke rule-engine type.
package auth

import (
	"strings"

	"github.com/c360/webpa-gateway/errors"
)

// Permission is a bitmask of the operation classes a rule may grant.
type Permission int

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermSubscribe
)

// Role orders caller privilege; a rule's MinRole is the lowest role
// permitted to match it.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleOperator
	RoleAdmin
)

// Rule is one ACL entry: if Pattern matches the requested parameter name,
// the caller's identity must satisfy MinRole and (if RequireAuth) must be
// authenticated at all, and the operation's permission must be present in
// Permissions.
type Rule struct {
	Pattern     string // dotted-path prefix, optionally ending in '.' or '*'
	Permissions Permission
	MinRole     Role
	RequireAuth bool
}

// Identity is the caller context the translator passes into Check.
type Identity struct {
	Authenticated bool
	Role          Role
}

// Policy is an ordered list of rules evaluated first-match-wins, with a
// built-in default applied when no rule matches: permit read, require
// authentication for write.
type Policy struct {
	Rules []Rule
}

// NewPolicy returns a Policy wrapping rules in priority order (earliest
// first).
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{Rules: rules}
}

// matches reports whether pattern covers name. A pattern ending in '.' or
// '*' matches by prefix (with the marker stripped); otherwise it must
// match name exactly.
func matches(pattern, name string) bool {
	if strings.HasSuffix(pattern, ".") || strings.HasSuffix(pattern, "*") {
		base := strings.TrimRight(pattern, ".*")
		return strings.HasPrefix(name, base)
	}
	return pattern == name
}

// Check evaluates name/perm against id, returning nil if permitted. The
// first matching rule decides the outcome; if no rule matches, the
// default is permit-read, require-authentication-for-write.
func (p *Policy) Check(id Identity, name string, perm Permission) error {
	for _, r := range p.Rules {
		if !matches(r.Pattern, name) {
			continue
		}
		if r.RequireAuth && !id.Authenticated {
			return errors.WithKind(errors.KindUnauthenticated, errors.ErrUnauthenticatedAuth, "auth", "Check")
		}
		if id.Role < r.MinRole {
			return errors.WithKind(errors.KindForbidden, errors.ErrForbiddenAuth, "auth", "Check")
		}
		if r.Permissions&perm == 0 {
			return errors.WithKind(errors.KindForbidden, errors.ErrForbiddenAuth, "auth", "Check")
		}
		return nil
	}

	if perm&PermWrite != 0 && !id.Authenticated {
		return errors.WithKind(errors.KindUnauthenticated, errors.ErrUnauthenticatedAuth, "auth", "Check")
	}
	return nil
}
