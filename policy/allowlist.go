// Package policy decides which verified identities may receive a session credential.
package policy

import (
	"sort"
	"strings"
)

type nullValue = struct{}

// AllowList is an exact-match set of permitted identity keys (verified emails).
// It is never modified after construction, so concurrent reads are safe.
type AllowList map[string]nullValue

// NewAllowList builds an AllowList from identity keys, trimming whitespace and
// dropping empty entries. Matching is case-sensitive.
func NewAllowList(keys ...string) AllowList {
	a := make(AllowList, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		a[k] = nullValue{}
	}
	return a
}

// ParseAllowList builds an AllowList from a comma-separated string
func ParseAllowList(csv string) AllowList {
	return NewAllowList(strings.Split(csv, ",")...)
}

// IsAllowed reports whether identityKey is a member of the list
func (a AllowList) IsAllowed(identityKey string) bool {
	if identityKey == "" {
		return false
	}
	_, ok := a[identityKey]
	return ok
}

// Len returns the number of permitted identities
func (a AllowList) Len() int {
	return len(a)
}

func (a AllowList) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
