// Package lock serializes replication runs per filesystem with an atomic
// directory-creation mutex: one directory per held lock, named after the
// filesystem path with '/' replaced by ';'.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrUnavailable means the filesystem's lock is already held.
var ErrUnavailable = errors.New("lock is held")

const commentFile = "comment"

type Service struct {
	dir string
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

func keyFor(filesystem string) string {
	return strings.ReplaceAll(filesystem, "/", ";")
}

// Lock acquires the filesystem's lock, persisting the optional comment for
// diagnostic listing. It fails with ErrUnavailable when the lock is held.
func (s *Service) Lock(filesystem, comment string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating lock dir: %w", err)
	}
	path := filepath.Join(s.dir, keyFor(filesystem))
	if err := os.Mkdir(path, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("locking '%s': %w", filesystem, ErrUnavailable)
		}
		return fmt.Errorf("locking '%s': %w", filesystem, err)
	}
	if comment != "" {
		if err := os.WriteFile(filepath.Join(path, commentFile), []byte(comment+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing lock comment: %w", err)
		}
	}
	return nil
}

// Unlock releases the filesystem's lock and reports whether one was
// actually released. There is no ownership check: any caller may release
// any lock.
func (s *Service) Unlock(filesystem string) (bool, error) {
	path := filepath.Join(s.dir, keyFor(filesystem))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("unlocking '%s': %w", filesystem, err)
	}
	return true, nil
}

// WouldLock reports whether Lock would succeed, without taking the lock.
// It's used by dry runs.
func (s *Service) WouldLock(filesystem string) bool {
	_, err := os.Stat(filepath.Join(s.dir, keyFor(filesystem)))
	return os.IsNotExist(err)
}

// Held describes one held lock.
type Held struct {
	Filesystem string
	Since      time.Time
	Comment    string
}

// List enumerates held locks, oldest first.
func (s *Service) List() ([]Held, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading lock dir: %w", err)
	}

	var held []Held
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		h := Held{
			Filesystem: strings.ReplaceAll(entry.Name(), ";", "/"),
			Since:      info.ModTime(),
		}
		if comment, err := os.ReadFile(filepath.Join(s.dir, entry.Name(), commentFile)); err == nil {
			h.Comment = strings.TrimSpace(string(comment))
		}
		held = append(held, h)
	}
	sort.Slice(held, func(i, j int) bool {
		return held[i].Since.Before(held[j].Since)
	})
	return held, nil
}
