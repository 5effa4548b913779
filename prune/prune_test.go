package prune

import (
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"monks.co/zmirror/env"
	"monks.co/zmirror/logger"
)

type recordingExecutor struct {
	responses map[string][]string
	calls     []string
}

func (r *recordingExecutor) Exec(log logger.Logger, cmd ...string) ([]string, error) {
	joined := strings.Join(cmd, " ")
	r.calls = append(r.calls, joined)
	return r.responses[joined], nil
}

func (r *recordingExecutor) Execf(log logger.Logger, s string, args ...any) ([]string, error) {
	return r.Exec(log, strings.Fields(fmt.Sprintf(s, args...))...)
}

func (r *recordingExecutor) Command(argv ...string) *exec.Cmd {
	return exec.Command(argv[0], argv[1:]...)
}

func (r *recordingExecutor) Host() string { return "fake" }

func TestPrune(t *testing.T) {
	x := &recordingExecutor{responses: map[string][]string{
		"zfs list -H -p -t snapshot -o name,creation -s creation -d 1 tank/data": {
			"tank/data@daily-1\t100",
			"tank/data@hourly-1\t150",
			"tank/data@daily-2\t200",
			"tank/data@daily-3\t300",
		},
	}}
	zfs := env.NewZFS("tank", x)

	if err := Prune(logger.NewMemory(), zfs, "data", Tier{Prefix: "daily", Keep: 1}); err != nil {
		t.Fatalf("prune: %v", err)
	}

	var destroys []string
	for _, call := range x.calls {
		if strings.HasPrefix(call, "zfs destroy") {
			destroys = append(destroys, call)
		}
	}
	want := []string{
		"zfs destroy tank/data@daily-1",
		"zfs destroy tank/data@daily-2",
	}
	if diff := cmp.Diff(want, destroys); diff != "" {
		t.Errorf("destroy calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPrune_NothingToDo(t *testing.T) {
	x := &recordingExecutor{responses: map[string][]string{
		"zfs list -H -p -t snapshot -o name,creation -s creation -d 1 tank/data": {
			"tank/data@daily-1\t100",
		},
	}}
	zfs := env.NewZFS("tank", x)

	if err := Prune(logger.NewMemory(), zfs, "data", Tier{Prefix: "daily", Keep: 1}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	for _, call := range x.calls {
		if strings.HasPrefix(call, "zfs destroy") {
			t.Errorf("unexpected destroy: %s", call)
		}
	}
}

func TestCollapse(t *testing.T) {
	x := &recordingExecutor{responses: map[string][]string{
		"zfs list -H -p -t snapshot -o name,creation -s creation -d 1 tank/data": {
			"tank/data@hourly-1\t100",
			"tank/data@daily-1\t200",
			"tank/data@weekly-1\t300",
			"tank/data@daily-2\t400",
		},
	}}
	zfs := env.NewZFS("tank", x)

	if err := Collapse(logger.NewMemory(), zfs, "data"); err != nil {
		t.Fatalf("collapse: %v", err)
	}

	var destroys []string
	for _, call := range x.calls {
		if strings.HasPrefix(call, "zfs destroy") {
			destroys = append(destroys, call)
		}
	}
	want := []string{
		"zfs destroy tank/data@hourly-1",
		"zfs destroy tank/data@daily-1",
		"zfs destroy tank/data@weekly-1",
	}
	if diff := cmp.Diff(want, destroys); diff != "" {
		t.Errorf("destroy calls mismatch (-want +got):\n%s", diff)
	}
}
