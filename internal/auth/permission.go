// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import "github.com/tacogips/codexd/internal/events"

// Permission vocabulary: `session:create`,
// `session:read`, `session:cancel`, `group:*`, `queue:*`, `bookmark:*`.
const (
	PermSessionCreate = "session:create"
	PermSessionRead   = "session:read"
	PermSessionCancel = "session:cancel"
	PermGroupAny      = "group:*"
	PermQueueAny      = "queue:*"
	PermBookmarkAny   = "bookmark:*"
)

// Allows reports whether granted contains a permission that covers want,
// either an exact match or a "<domain>:*" wildcard for want's domain.
// The wildcard half is events.MatchDomainWildcard with ":" as the
// separator; bare "*" is deliberately not a valid grant here.
func Allows(granted []string, want string) bool {
	for _, perm := range granted {
		if matchPermission(perm, want) {
			return true
		}
	}
	return false
}

func matchPermission(granted, want string) bool {
	return granted == want || events.MatchDomainWildcard(want, granted, ":")
}
