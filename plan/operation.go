package plan

import (
	"fmt"
	"strings"

	"monks.co/zmirror/model"
)

// Operation is one step of a replication schedule. Apply replays the
// operation against an in-memory destination tree, failing when the
// operation's preconditions don't hold; it's used to validate schedules
// without touching a host.
type Operation interface {
	String() string
	Apply(src, dst *model.Tree) error
}

var _ Operation = &CreateStub{}

// CreateStub creates an empty destination dataset so that it (or its
// descendants) can receive snapshot data.
type CreateStub struct {
	Path string
}

func (op *CreateStub) String() string {
	return fmt.Sprintf("create stub %s", model.DisplayPath(op.Path))
}

func (op *CreateStub) Apply(src, dst *model.Tree) error {
	if op.Path != "" {
		if ds := dst.Get(op.Path); ds != nil {
			return fmt.Errorf("stub target '%s' already exists", model.DisplayPath(op.Path))
		}
	}
	dst.Insert(op.Path, nil)
	return nil
}

var _ Operation = &Replicate{}

// Replicate sends snapshot data bringing the destination dataset from Base
// up to Target. An empty Base means a full send (no shared history). When
// Inferred is set, the destination path was absent at planning time and is
// derived from Path; otherwise the planner saw a real destination dataset
// at the same relative path. A recursive Replicate carries the whole
// subtree under Path in one stream.
type Replicate struct {
	Path      string
	Base      string
	Target    string
	Recursive bool
	Inferred  bool
}

func (op *Replicate) String() string {
	var b strings.Builder
	if op.Recursive {
		fmt.Fprintf(&b, "replicate subtree %s", model.DisplayPath(op.Path))
	} else {
		fmt.Fprintf(&b, "replicate %s", model.DisplayPath(op.Path))
	}
	if op.Base == "" {
		fmt.Fprintf(&b, " full @%s", op.Target)
	} else {
		fmt.Fprintf(&b, " @%s..@%s", op.Base, op.Target)
	}
	if op.Inferred {
		b.WriteString(" (new)")
	}
	return b.String()
}

func (op *Replicate) Apply(src, dst *model.Tree) error {
	if op.Recursive {
		for s := range src.Subtree(op.Path) {
			if err := op.applyOne(s, dst); err != nil {
				return err
			}
		}
		return nil
	}
	s := src.Get(op.Path)
	if s == nil {
		return fmt.Errorf("source dataset '%s' does not exist", model.DisplayPath(op.Path))
	}
	return op.applyOne(s, dst)
}

func (op *Replicate) applyOne(s *model.Dataset, dst *model.Tree) error {
	d := dst.Get(s.Path)
	if d == nil {
		return fmt.Errorf("destination dataset '%s' does not exist", model.DisplayPath(s.Path))
	}
	if op.Base == "" {
		if len(d.Snapshots) > 0 {
			return fmt.Errorf("full send into non-empty dataset '%s'", model.DisplayPath(s.Path))
		}
	} else if !d.HasSnapshot(op.Base) {
		return fmt.Errorf("destination '%s' lacks base snapshot @%s", model.DisplayPath(s.Path), op.Base)
	}
	if !s.HasSnapshot(op.Target) && !op.Recursive {
		return fmt.Errorf("source '%s' lacks target snapshot @%s", model.DisplayPath(s.Path), op.Target)
	}

	// The send primitive streams the whole base..target range, so the
	// destination gains every intermediate snapshot. A full send carries
	// only the target.
	if op.Base == "" {
		if s.HasSnapshot(op.Target) {
			d.Snapshots = append(d.Snapshots, &model.Snapshot{Name: op.Target})
		}
		return nil
	}
	for _, snap := range s.SnapshotsAfter(op.Base) {
		if d.HasSnapshot(snap.Name) {
			continue
		}
		d.Snapshots = append(d.Snapshots, &model.Snapshot{Name: snap.Name, CreatedAt: snap.CreatedAt})
		if snap.Name == op.Target {
			break
		}
	}
	return nil
}

var _ Operation = &Destroy{}

// Destroy removes a single destination dataset that has no source
// counterpart (but whose parent does).
type Destroy struct {
	Path string
}

func (op *Destroy) String() string {
	return fmt.Sprintf("destroy %s", model.DisplayPath(op.Path))
}

func (op *Destroy) Apply(src, dst *model.Tree) error {
	return dst.Remove(op.Path)
}

var _ Operation = &DestroyRecursively{}

// DestroyRecursively removes a destination subtree whose root has no source
// counterpart. It supersedes per-child destroys below it.
type DestroyRecursively struct {
	Path string
}

func (op *DestroyRecursively) String() string {
	return fmt.Sprintf("destroy subtree %s", model.DisplayPath(op.Path))
}

func (op *DestroyRecursively) Apply(src, dst *model.Tree) error {
	return dst.RemoveRecursively(op.Path)
}

// Schedule is an ordered sequence of operations. An operation targeting a
// dataset never precedes the CreateStub or Replicate that establishes its
// parent.
type Schedule []Operation

func (sched Schedule) String() string {
	var b strings.Builder
	for _, op := range sched {
		fmt.Fprintf(&b, "- %s\n", op)
	}
	return b.String()
}

// Apply replays the whole schedule against dst, stopping at the first
// invalid operation.
func (sched Schedule) Apply(src, dst *model.Tree) error {
	for _, op := range sched {
		if err := op.Apply(src, dst); err != nil {
			return fmt.Errorf("invalid operation '%s': %w", op, err)
		}
	}
	return nil
}
