package plan

import (
	"monks.co/zmirror/model"
)

// Optimize rewrites a schedule into the fewest transfer invocations. When
// allowRecursivize is set, the per-dataset replications covering a whole
// source subtree are merged into one recursive replication at the subtree's
// root, provided every dataset under it needs the identical base..target
// range and none of them is freshly stubbed. Stubs and destroys pass
// through in their original relative order, and a base..target range is
// never split up: the send primitive streams the entire range natively.
func Optimize(sched Schedule, src *model.Tree, allowRecursivize bool) Schedule {
	if !allowRecursivize {
		return sched
	}

	replicates := map[string]*Replicate{}
	stubbed := map[string]bool{}
	for _, op := range sched {
		switch op := op.(type) {
		case *Replicate:
			replicates[op.Path] = op
		case *CreateStub:
			stubbed[op.Path] = true
		}
	}

	// Walk the source tree top-down so merges are as wide as possible. A
	// dataset consumed by a merge is never reconsidered for a narrower one.
	merged := map[*Replicate]*Replicate{} // original op -> its replacement, nil body for absorbed ops
	for p := range src.All() {
		rep := replicates[p.Path]
		if rep == nil || merged[rep] != nil {
			continue
		}
		group := mergeableGroup(src, p, replicates, stubbed, merged)
		if len(group) < 2 {
			continue
		}
		recursive := &Replicate{
			Path:      p.Path,
			Base:      rep.Base,
			Target:    rep.Target,
			Recursive: true,
		}
		for i, op := range group {
			if i == 0 {
				merged[op] = recursive
			} else {
				merged[op] = absorbed
			}
		}
	}

	var out Schedule
	for _, op := range sched {
		rep, ok := op.(*Replicate)
		if !ok {
			out = append(out, op)
			continue
		}
		switch replacement := merged[rep]; replacement {
		case nil:
			out = append(out, op)
		case absorbed:
			// covered by an earlier recursive replication
		default:
			out = append(out, replacement)
		}
	}
	return out
}

// absorbed marks an operation replaced by a recursive replication emitted at
// an earlier schedule position.
var absorbed = &Replicate{}

// mergeableGroup returns the replication ops covering the whole subtree
// rooted at p when they can merge into one recursive transfer, in the
// subtree's pre-order. It returns nil when any dataset under p has no
// operation, needs a different base or target, is freshly stubbed, or is
// already part of a wider merge.
func mergeableGroup(src *model.Tree, p *model.Dataset, replicates map[string]*Replicate, stubbed map[string]bool, merged map[*Replicate]*Replicate) []*Replicate {
	want := replicates[p.Path]
	var group []*Replicate
	for ds := range src.Subtree(p.Path) {
		if stubbed[ds.Path] {
			return nil
		}
		rep := replicates[ds.Path]
		if rep == nil || merged[rep] != nil {
			return nil
		}
		if rep.Base != want.Base || rep.Target != want.Target {
			return nil
		}
		group = append(group, rep)
	}
	return group
}
