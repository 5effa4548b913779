package lock

import (
	"errors"
	"testing"
)

func TestLockUnlock(t *testing.T) {
	s := New(t.TempDir())

	if err := s.Lock("tank/data", "nightly run"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := s.Lock("tank/data", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on second lock, got %v", err)
	}
	if err := s.Lock("tank/other", ""); err != nil {
		t.Errorf("expected independent lock to succeed: %v", err)
	}

	released, err := s.Unlock("tank/data")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !released {
		t.Error("expected unlock to report release")
	}
	if err := s.Lock("tank/data", ""); err != nil {
		t.Errorf("expected relock after unlock to succeed: %v", err)
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	s := New(t.TempDir())
	released, err := s.Unlock("tank/data")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if released {
		t.Error("expected no release for unheld lock")
	}
}

func TestWouldLock(t *testing.T) {
	s := New(t.TempDir())
	if !s.WouldLock("tank/data") {
		t.Error("expected WouldLock true before locking")
	}
	if err := s.Lock("tank/data", ""); err != nil {
		t.Fatal(err)
	}
	if s.WouldLock("tank/data") {
		t.Error("expected WouldLock false while held")
	}
}

func TestList(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Lock("tank/data", "weekly"); err != nil {
		t.Fatal(err)
	}

	held, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(held) != 1 {
		t.Fatalf("expected 1 held lock, got %d", len(held))
	}
	if held[0].Filesystem != "tank/data" {
		t.Errorf("expected filesystem 'tank/data', got '%s'", held[0].Filesystem)
	}
	if held[0].Comment != "weekly" {
		t.Errorf("expected comment 'weekly', got '%s'", held[0].Comment)
	}
	if held[0].Since.IsZero() {
		t.Error("expected a non-zero acquisition time")
	}
}
