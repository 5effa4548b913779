package env

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"

	"monks.co/zmirror/logger"
)

func TestPipe(t *testing.T) {
	from := exec.Command("echo", "hello")
	to := exec.Command("cat")

	if err := Pipe(context.Background(), logger.NewMemory(), PipeOptions{}, from, to); err != nil {
		t.Fatalf("pipe: %v", err)
	}
}

func TestPipe_ReceiveFailureFailsPipe(t *testing.T) {
	from := exec.Command("echo", "hello")
	to := exec.Command("false")

	if err := Pipe(context.Background(), logger.NewMemory(), PipeOptions{}, from, to); err == nil {
		t.Fatal("expected pipe to fail when the receive end fails")
	}
}

func TestPipe_SendFailureFailsPipe(t *testing.T) {
	from := exec.Command("sh", "-c", "exit 3")
	to := exec.Command("cat")

	if err := Pipe(context.Background(), logger.NewMemory(), PipeOptions{}, from, to); err == nil {
		t.Fatal("expected pipe to fail when the send end fails")
	}
}

func TestLimitedReader(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	lr := newLimitedReader(context.Background(), strings.NewReader(payload), 1<<20)

	var out bytes.Buffer
	n, err := io.Copy(&out, lr)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("expected %d bytes, got %d", len(payload), n)
	}
}

func TestLimitedReader_CapsReadsAtBurst(t *testing.T) {
	lr := newLimitedReader(context.Background(), strings.NewReader("abcdef"), 2)

	buf := make([]byte, 6)
	n, err := lr.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n > 2 {
		t.Errorf("expected reads capped at burst 2, got %d", n)
	}
}

func TestThroughputStat(t *testing.T) {
	stat := NewThroughputStat()
	if _, err := stat.Write(make([]byte, 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := stat.Write(make([]byte, 500)); err != nil {
		t.Fatal(err)
	}
	if got := stat.Total(); got != 1500 {
		t.Errorf("expected total 1500, got %d", got)
	}

	log := logger.NewMemory()
	stat.Log(log)
	if lines := log.Lines(); len(lines) != 1 || !strings.Contains(lines[0], "transferred") {
		t.Errorf("expected one transfer summary line, got %v", lines)
	}
}
