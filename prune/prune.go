// Package prune trims a dataset's snapshot history by retention tier before
// replication.
package prune

import (
	"fmt"

	"monks.co/zmirror/env"
	"monks.co/zmirror/logger"
)

// Tier is one retention class: snapshots whose names start with the prefix,
// of which the newest Keep survive a prune.
type Tier struct {
	Prefix string
	Keep   int
}

// DailyCollapse is the tier schedule run before a daily-only transfer: it
// collapses history to a single daily snapshot.
var DailyCollapse = []Tier{
	{Prefix: "hourly", Keep: 0},
	{Prefix: "daily", Keep: 1},
	{Prefix: "weekly", Keep: 0},
	{Prefix: "monthly", Keep: 0},
}

// Prune deletes all but the newest Keep snapshots of the tier from the
// dataset at rel.
func Prune(log logger.Logger, zfs *env.ZFS, rel string, tier Tier) error {
	snaps, err := zfs.GetSnapshots(log, rel)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	var matching []string
	for _, snap := range snaps {
		if snap.Tier() == tier.Prefix {
			matching = append(matching, snap.Name)
		}
	}
	if len(matching) <= tier.Keep {
		return nil
	}

	// Snapshots arrive oldest first; everything before the last Keep goes.
	for _, name := range matching[:len(matching)-tier.Keep] {
		if err := zfs.DestroySnapshot(log, rel, name); err != nil {
			return fmt.Errorf("destroying '%s@%s': %w", rel, name, err)
		}
	}
	return nil
}

// Collapse runs the daily-collapse schedule against one dataset.
func Collapse(log logger.Logger, zfs *env.ZFS, rel string) error {
	for _, tier := range DailyCollapse {
		if err := Prune(log, zfs, rel, tier); err != nil {
			return fmt.Errorf("pruning %s tier: %w", tier.Prefix, err)
		}
	}
	return nil
}
