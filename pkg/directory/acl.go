package directory

import (
	"encoding/json"
	"sort"

	"github.com/marmos91/dittostore/pkg/auth"
)

// AnyRole is the wildcard role. An access category containing AnyRole grants
// that access to every client, including anonymous ones.
const AnyRole = "*"

// RoleSet is an unordered set of role identifiers. Duplicates collapse;
// membership is all that matters.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports whether role is a member of the set.
func (s RoleSet) Contains(role string) bool {
	_, ok := s[role]
	return ok
}

// Grants reports whether any of the client roles is a member, or the set
// contains the wildcard role.
func (s RoleSet) Grants(roles []string) bool {
	if s.Contains(AnyRole) {
		return true
	}
	for _, r := range roles {
		if s.Contains(r) {
			return true
		}
	}
	return false
}

// Roles returns the members in sorted order for stable wire output.
func (s RoleSet) Roles() []string {
	roles := make([]string, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a flat, sorted JSON array of strings,
// which is the ACL wire format.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Roles())
}

// ACLs maps access-category names to role sets. Every resource carries one;
// the categories present are exactly the ones its resource type declares.
type ACLs map[string]RoleSet

// Clone returns a deep copy.
func (a ACLs) Clone() ACLs {
	out := make(ACLs, len(a))
	for access, set := range a {
		out[access] = set.Clone()
	}
	return out
}

// declaredCategories lists the access categories each resource type carries.
// ACL operations on a category outside this set fail NotFound; categories in
// the set are always materialized (a cleared category reads as an empty
// array, it never disappears).
var declaredCategories = map[ResourceType][]string{
	TypeNamespace: {"owner", "create"},
	TypeObject:    {"owner", "read", "write"},
	TypeVersion:   {"owner", "read"},
	TypeUpload:    {"owner"},
}

// DeclaredCategories returns the access categories declared for a resource
// type, in declaration order.
func DeclaredCategories(t ResourceType) []string {
	return declaredCategories[t]
}

// CategoryDeclared reports whether the resource type declares the category.
func CategoryDeclared(t ResourceType, access string) bool {
	for _, c := range declaredCategories[t] {
		if c == access {
			return true
		}
	}
	return false
}

// NewACLs builds the initial ACL mapping for a resource type, seeding every
// owner category with the creating identity's roles so the creator can
// administer what it created.
func NewACLs(t ResourceType, identity *auth.Identity) ACLs {
	acls := make(ACLs)
	for _, access := range declaredCategories[t] {
		acls[access] = NewRoleSet()
	}
	if owner, ok := acls["owner"]; ok {
		for _, role := range identity.Roles() {
			owner[role] = struct{}{}
		}
	}
	return acls
}

// Enforce checks that the identity holds one of the wanted access categories
// on a resource, either directly through the resource's ACLs or through
// "owner" on one of its ancestor namespaces (ancestor owners administer the
// whole subtree).
//
// Returns nil when access is granted, Unauthenticated for anonymous clients
// and Forbidden otherwise.
func Enforce(identity *auth.Identity, name string, acls ACLs, ancestors []ACLs, categories ...string) error {
	roles := identity.Roles()

	for _, access := range categories {
		if set, ok := acls[access]; ok && set.Grants(roles) {
			return nil
		}
	}
	for _, ancestor := range ancestors {
		if set, ok := ancestor["owner"]; ok && set.Grants(roles) {
			return nil
		}
	}

	if identity.IsAnonymous() {
		return NewUnauthenticated("authentication required")
	}
	return NewForbidden("access forbidden", name)
}
