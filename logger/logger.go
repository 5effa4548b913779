package logger

import (
	"fmt"
	"log"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Printf(s string, args ...any)
}

type logger struct{ label string }

func New(label string) Logger {
	return logger{label}
}

func (l logger) Printf(s string, args ...any) {
	args = append([]any{string(l.label)}, args...)
	log.Printf("[%s]\t"+s, args...)
}

// NewFile returns a logger that appends to a rotated log file in addition to
// the standard log output.
func NewFile(label, path string) Logger {
	return &fileLogger{
		inner: New(label),
		file: log.New(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}, fmt.Sprintf("[%s]\t", label), log.LstdFlags),
	}
}

type fileLogger struct {
	inner Logger
	file  *log.Logger
}

func (l *fileLogger) Printf(s string, args ...any) {
	l.inner.Printf(s, args...)
	l.file.Printf(s, args...)
}

// Memory is a Logger that captures its lines. Tests use it to compare the
// operation log of a dry run against a real run.
type Memory struct {
	mu    sync.Mutex
	lines []string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Printf(s string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, fmt.Sprintf(s, args...))
}

func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}
