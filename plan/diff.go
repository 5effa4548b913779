package plan

import (
	"monks.co/zmirror/model"
)

// RecursiveReplicate walks the source tree parent-before-child and emits the
// operations needed to bring the destination tree up to the source's latest
// snapshots: stubs and full sends where the destination is absent,
// incremental sends anchored at the latest common snapshot where it isn't.
//
// A source dataset whose history shares nothing with its destination
// counterpart gets a full send anyway; the receive primitive rejects it, and
// that rejection is the intended surfacing of the conflict.
func RecursiveReplicate(src, dst *model.Tree) Schedule {
	var sched Schedule
	root := src.Root()
	if root == nil {
		return sched
	}
	sched = replicateWalk(sched, src, dst, root, dst.Root() != nil)
	return sched
}

func replicateWalk(sched Schedule, src, dst *model.Tree, s *model.Dataset, dstLineage bool) Schedule {
	var d *model.Dataset
	if dstLineage {
		d = dst.Get(s.Path)
	}

	if d == nil {
		// No destination dataset, or an ancestor was only just stubbed:
		// stub here and send the full history. Descendants are planned as
		// absent too, even if something happens to sit at their relative
		// path on the destination.
		sched = append(sched, &CreateStub{Path: s.Path})
		if latest := s.Latest(); latest != nil {
			sched = append(sched, &Replicate{
				Path:     s.Path,
				Target:   latest.Name,
				Inferred: true,
			})
		}
		for _, child := range src.Children(s) {
			sched = replicateWalk(sched, src, dst, child, false)
		}
		return sched
	}

	if latest := s.Latest(); latest != nil {
		common := s.LatestCommon(d)
		switch {
		case common == nil:
			sched = append(sched, &Replicate{
				Path:   s.Path,
				Target: latest.Name,
			})
		case common.Name != latest.Name:
			sched = append(sched, &Replicate{
				Path:   s.Path,
				Base:   common.Name,
				Target: latest.Name,
			})
		}
	}

	for _, child := range src.Children(s) {
		sched = replicateWalk(sched, src, dst, child, true)
	}
	return sched
}

// RecursiveClearObsolete walks the destination tree parent-before-child and
// emits destroys for datasets with no source counterpart. A whole obsolete
// subtree becomes one recursive destroy at its root; nothing is emitted for
// its descendants.
func RecursiveClearObsolete(src, dst *model.Tree) Schedule {
	var sched Schedule
	root := dst.Root()
	if root == nil {
		return sched
	}
	if src.Root() == nil {
		return append(sched, &DestroyRecursively{Path: root.Path})
	}
	return clearWalk(sched, src, dst, root)
}

func clearWalk(sched Schedule, src, dst *model.Tree, d *model.Dataset) Schedule {
	for _, child := range dst.Children(d) {
		if src.Get(child.Path) != nil {
			sched = clearWalk(sched, src, dst, child)
			continue
		}
		if len(dst.Children(child)) > 0 {
			sched = append(sched, &DestroyRecursively{Path: child.Path})
		} else {
			sched = append(sched, &Destroy{Path: child.Path})
		}
	}
	return sched
}
