package env

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"monks.co/zmirror/logger"
	"monks.co/zmirror/model"
)

// ZFS wraps an Executor with a dataset prefix: all tree-relative paths are
// resolved under it. One ZFS value is one side of a replication.
type ZFS struct {
	prefix string
	x      Executor
}

func NewZFS(prefix string, x Executor) *ZFS {
	return &ZFS{prefix, x}
}

func (zfs *ZFS) Host() string {
	return zfs.x.Host()
}

func (zfs *ZFS) Root() string {
	return zfs.prefix
}

func (zfs *ZFS) WithPrefix(rel string) string {
	if rel == "" {
		return zfs.prefix
	}
	return zfs.prefix + "/" + rel
}

func (zfs *ZFS) WithoutPrefix(path string) string {
	return strings.TrimPrefix(strings.TrimPrefix(path, zfs.prefix), "/")
}

// Enumerate queries the host once and builds the full dataset tree under
// the prefix, snapshots in creation order. It fails with NotFoundError when
// the prefix dataset doesn't exist on the host.
func (zfs *ZFS) Enumerate(log logger.Logger) (*model.Tree, error) {
	rows, err := zfs.x.Execf(log, "zfs list -H -t filesystem -o name -s name -r %s", zfs.prefix)
	if isMissingDataset(err) {
		return nil, &model.NotFoundError{Path: zfs.prefix}
	} else if err != nil {
		return nil, fmt.Errorf("listing datasets under '%s': %w", zfs.prefix, err)
	}

	tree := model.NewTree()
	for _, row := range rows {
		rel := zfs.WithoutPrefix(row)
		snaps, err := zfs.GetSnapshots(log, rel)
		if err != nil {
			return nil, fmt.Errorf("getting snapshots for '%s': %w", row, err)
		}
		tree.Insert(rel, snaps)
	}
	return tree, nil
}

// GetSnapshots lists one dataset's snapshots, oldest first.
func (zfs *ZFS) GetSnapshots(log logger.Logger, rel string) ([]*model.Snapshot, error) {
	rows, err := zfs.x.Execf(log, "zfs list -H -p -t snapshot -o name,creation -s creation -d 1 %s", zfs.WithPrefix(rel))
	if err != nil {
		return nil, fmt.Errorf("zfs list: %w", err)
	}
	snaps := make([]*model.Snapshot, len(rows))
	for i, row := range rows {
		cols := strings.Split(row, "\t")
		if len(cols) < 2 {
			return nil, fmt.Errorf("unexpected snapshot row '%s'", row)
		}
		seconds, err := strconv.ParseInt(cols[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp '%s' (from '%s')", cols[1], cols[0])
		}
		snaps[i] = &model.Snapshot{
			Name:      strings.SplitN(cols[0], "@", 2)[1],
			CreatedAt: seconds,
		}
	}
	return snaps, nil
}

func (zfs *ZFS) CreateDataset(log logger.Logger, rel string) error {
	if _, err := zfs.x.Execf(log, "zfs create -p %s", zfs.WithPrefix(rel)); err != nil {
		return err
	}
	return nil
}

func (zfs *ZFS) DestroyDataset(log logger.Logger, rel string) error {
	if _, err := zfs.x.Execf(log, "zfs destroy %s", zfs.WithPrefix(rel)); err != nil {
		return err
	}
	return nil
}

func (zfs *ZFS) DestroyRecursively(log logger.Logger, rel string) error {
	if _, err := zfs.x.Execf(log, "zfs destroy -r %s", zfs.WithPrefix(rel)); err != nil {
		return err
	}
	return nil
}

func (zfs *ZFS) DestroySnapshot(log logger.Logger, rel, snapshot string) error {
	if _, err := zfs.x.Execf(log, "zfs destroy %s@%s", zfs.WithPrefix(rel), snapshot); err != nil {
		return err
	}
	return nil
}

// SendCommand builds the send end of a transfer pipe. An empty base means a
// full send of the target snapshot; otherwise the whole base..target range
// streams in one invocation, intermediate snapshots included.
func (zfs *ZFS) SendCommand(rel, base, target string, recursive, dedup bool) *exec.Cmd {
	args := []string{"zfs", "send"}
	if recursive {
		args = append(args, "-R")
	}
	if dedup {
		args = append(args, "-D")
	}
	if base != "" {
		args = append(args, "-I", "@"+base)
	}
	args = append(args, zfs.WithPrefix(rel)+"@"+target)
	return zfs.x.Command(args...)
}

// ReceiveCommand builds the receive end of a transfer pipe. The receive is
// deliberately not forced: streaming a full send into a dataset with
// unrelated history must fail rather than roll the destination back.
func (zfs *ZFS) ReceiveCommand(rel string) *exec.Cmd {
	return zfs.x.Command("zfs", "receive", zfs.WithPrefix(rel))
}
