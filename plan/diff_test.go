package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"monks.co/zmirror/model"
)

func snaps(names ...string) []*model.Snapshot {
	out := make([]*model.Snapshot, len(names))
	for i, name := range names {
		out[i] = &model.Snapshot{Name: name, CreatedAt: int64(i)}
	}
	return out
}

func render(sched Schedule) []string {
	var out []string
	for _, op := range sched {
		out = append(out, op.String())
	}
	return out
}

func TestRecursiveReplicate_Synchronized(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1", "s2"))
	src.Insert("a", snaps("s1", "s2"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1", "s2"))
	dst.Insert("a", snaps("s1", "s2"))

	if sched := RecursiveReplicate(src, dst); len(sched) != 0 {
		t.Errorf("expected empty schedule, got:\n%s", sched)
	}
}

func TestRecursiveReplicate_Incremental(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1", "s2", "s3"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))

	sched := RecursiveReplicate(src, dst)
	want := []string{"replicate <root> @s1..@s3"}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

// One operation per unsynchronized dataset, never one per missing
// intermediate snapshot.
func TestRecursiveReplicate_Minimality(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1", "s2", "s3", "s4", "s5"))
	src.Insert("a", snaps("s1", "s2", "s3", "s4", "s5"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))
	dst.Insert("a", snaps("s2"))

	sched := RecursiveReplicate(src, dst)
	want := []string{
		"replicate <root> @s1..@s5",
		"replicate a @s2..@s5",
	}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestRecursiveReplicate_StubBeforeSend(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1"))
	src.Insert("a", snaps("s1"))
	src.Insert("a/b", snaps("s1"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))

	sched := RecursiveReplicate(src, dst)
	want := []string{
		"create stub a",
		"replicate a full @s1 (new)",
		"create stub a/b",
		"replicate a/b full @s1 (new)",
	}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

// A destination dataset that only exists as an implicit ancestor (no
// snapshots of its own) shares no history and diverges into a full send.
func TestRecursiveReplicate_ImplicitAncestorDiverges(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1"))
	src.Insert("a", snaps("s1"))
	src.Insert("a/b", snaps("s1"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))
	dst.Insert("a/b", snaps("s1")) // makes 'a' an implicit ancestor

	// 'a' has no history at all, so it diverges: full send. 'a/b' shares
	// history and syncs normally.
	sched := RecursiveReplicate(src, dst)
	want := []string{
		"replicate a full @s1",
	}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestRecursiveReplicate_DivergentHistoryGetsFullSend(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1", "s2"))

	dst := model.NewTree()
	dst.Insert("", snaps("x1"))

	sched := RecursiveReplicate(src, dst)
	want := []string{"replicate <root> full @s2"}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}

	// The conflict is not silently resolved: replaying the full send
	// against the non-empty destination must fail, like the receive
	// primitive would.
	if err := sched.Apply(src, dst); err == nil {
		t.Error("expected full send into non-empty dataset to be rejected")
	}
}

func TestRecursiveReplicate_Idempotence(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1", "s2"))
	src.Insert("a", snaps("s1", "s2", "s3"))
	src.Insert("b", nil)
	src.Insert("b/c", snaps("s1"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))

	sched := RecursiveReplicate(src, dst)
	if len(sched) == 0 {
		t.Fatal("expected a non-empty first schedule")
	}
	if err := sched.Apply(src, dst); err != nil {
		t.Fatalf("applying schedule: %v", err)
	}

	again := RecursiveReplicate(src, dst)
	if len(again) != 0 {
		t.Errorf("expected empty schedule after sync, got:\n%s", again)
	}
}

func TestRecursiveClearObsolete(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1"))
	src.Insert("a", snaps("s1"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))
	dst.Insert("a", snaps("s1"))
	dst.Insert("gone", snaps("s1"))
	dst.Insert("gone/deeper", snaps("s1"))
	dst.Insert("solo", nil)

	sched := RecursiveClearObsolete(src, dst)
	want := []string{
		"destroy subtree gone",
		"destroy solo",
	}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}

// An obsolete child inside a matched subtree is destroyed on its own
// account, not skipped because its ancestor matched.
func TestRecursiveClearObsolete_NestedObsolete(t *testing.T) {
	src := model.NewTree()
	src.Insert("", snaps("s1"))
	src.Insert("a", snaps("s1"))

	dst := model.NewTree()
	dst.Insert("", snaps("s1"))
	dst.Insert("a", snaps("s1"))
	dst.Insert("a/old", snaps("s1"))

	sched := RecursiveClearObsolete(src, dst)
	want := []string{"destroy a/old"}
	if diff := cmp.Diff(want, render(sched)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
}
