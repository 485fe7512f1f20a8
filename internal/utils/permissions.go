package utils

import "strings"

// Wildcard grants.  A resource wildcard ("PATIENT:*") covers every action on
// that resource; the global wildcard covers everything.
const (
	GlobalWildcard = "*:*"
	actionWildcard = "*"
)

// HasPermission reports whether the effective permission set grants the
// given resource:action pair.  The literal pair, the resource wildcard and
// the global wildcard are all equally authoritative; the exact match is
// checked first only to make intent explicit.
func HasPermission(perms []string, resource, action string) bool {
	exact := resource + ":" + action
	for _, p := range perms {
		if p == exact {
			return true
		}
	}
	resourceWide := resource + ":" + actionWildcard
	for _, p := range perms {
		if p == resourceWide || p == GlobalWildcard {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the set grants at least one of the
// required "RESOURCE:ACTION" pairs.  The global wildcard grants regardless
// of the list.  A required pair without a colon is malformed and never
// matches (deny by default).
func HasAnyPermission(perms []string, required ...string) bool {
	for _, p := range perms {
		if p == GlobalWildcard {
			return true
		}
	}
	for _, req := range required {
		resource, action, ok := strings.Cut(req, ":")
		if !ok {
			continue
		}
		if HasPermission(perms, resource, action) {
			return true
		}
	}
	return false
}
