package client

import (
	"fmt"
	"strings"
	"time"
)

// GroupID identifies the posture group a capture session uploads into. It is
// either a temporary client-generated token (before the server has seen the
// group) or the server-assigned id returned by the first upload. The
// temporary form exists only to correlate uploads; it is never treated as a
// server identifier.
type GroupID struct {
	value     string
	temporary bool
}

// temporaryPrefix marks client-generated tokens. Mirrors the prefix the
// server recognizes when provisioning a group.
const temporaryPrefix = "temp-"

// NewTemporaryGroupID allocates a fresh token from the given instant.
func NewTemporaryGroupID(now time.Time) GroupID {
	return GroupID{
		value:     fmt.Sprintf("%s%d", temporaryPrefix, now.UnixMilli()),
		temporary: true,
	}
}

// PersistedGroupID wraps a server-assigned group id.
func PersistedGroupID(id string) GroupID {
	return GroupID{value: id, temporary: false}
}

// ParseGroupID classifies a raw reference by its prefix.
func ParseGroupID(raw string) GroupID {
	if strings.HasPrefix(raw, temporaryPrefix) {
		return GroupID{value: raw, temporary: true}
	}
	return GroupID{value: raw, temporary: false}
}

// String returns the wire form of the id.
func (g GroupID) String() string { return g.value }

// IsZero reports whether no group reference has been allocated yet.
func (g GroupID) IsZero() bool { return g.value == "" }

// Temporary reports whether the id is a client token the server may not
// have seen yet.
func (g GroupID) Temporary() bool { return g.temporary }
