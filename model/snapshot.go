package model

import (
	"strings"
	"time"
)

// Snapshot is an immutable point-in-time marker within a dataset. Snapshots
// on different hosts are considered the same version point only when their
// names are equal.
type Snapshot struct {
	Name      string
	CreatedAt int64
}

func (snap *Snapshot) Time() time.Time {
	return time.Unix(snap.CreatedAt, 0)
}

func (snap *Snapshot) String() string {
	return "@" + snap.Name
}

// Tier returns the snapshot's retention tier, the part of its name before
// the first dash ("daily-2024-01-01" -> "daily").
func (snap *Snapshot) Tier() string {
	return strings.SplitN(snap.Name, "-", 2)[0]
}
