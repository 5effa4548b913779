package env

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"monks.co/zmirror/logger"
)

const progressInterval = 60 * time.Second

// PipeOptions configures the filter stage sitting between the two ends of a
// transfer pipe.
type PipeOptions struct {
	// RateLimit caps the pipe's throughput in bytes per second. Zero means
	// unlimited.
	RateLimit uint64
	// Progress logs throughput once a minute and a summary at the end.
	Progress bool
	// BufferSize is the copy buffer in bytes. Zero means the OS default.
	BufferSize int
}

// Pipe runs `from` and `to` with `from`'s stdout streamed into `to`'s
// stdin, optionally rate-limited. Transfers are expected to run for hours;
// the context can kill them, but there is no graceful mid-stream
// cancellation: the operation either runs to completion or fails. The pipe
// is done only when both processes and the copy between them have finished,
// and any one of them failing fails the whole pipe.
func Pipe(ctx context.Context, log logger.Logger, opts PipeOptions, from, to *exec.Cmd) error {
	log.Printf("%s | %s", strings.Join(from.Args, " "), strings.Join(to.Args, " "))

	stat := NewThroughputStat()
	if opts.Progress {
		defer stat.Log(log)
	}

	pr, pw := io.Pipe()
	from.Stdout = pw

	stdin, err := to.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening 'to' stdin: %w", err)
	}

	var fromOutput, toOutput bytes.Buffer
	from.Stderr = &fromOutput
	to.Stdout = &toOutput
	to.Stderr = &toOutput

	if err := to.Start(); err != nil {
		return fmt.Errorf("failed to start 'to' command: %w", err)
	}
	if err := from.Start(); err != nil {
		pr.Close()
		pw.Close()
		to.Process.Kill()
		to.Wait()
		return fmt.Errorf("failed to start 'from' command: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Filter stage: copy send's output into receive's input, accounting
	// every byte and honoring the rate ceiling.
	g.Go(func() error {
		defer stdin.Close()

		var src io.Reader = pr
		if opts.RateLimit > 0 {
			src = newLimitedReader(ctx, pr, opts.RateLimit)
		}
		var buf []byte
		if opts.BufferSize > 0 {
			buf = make([]byte, opts.BufferSize)
		}
		if _, err := io.CopyBuffer(io.MultiWriter(stdin, stat), src, buf); err != nil {
			return fmt.Errorf("piping data: %w", err)
		}
		return nil
	})

	if opts.Progress {
		g.Go(func() error {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					stat.Log(log)
				}
			}
		})
	}

	g.Go(func() error {
		c := make(chan error, 1)
		go func() { c <- from.Wait() }()

		select {
		case err := <-c:
			if err != nil {
				pw.CloseWithError(err)
				return fmt.Errorf("'from' command error: %w\n%s", err, fromOutput.String())
			}
			pw.Close()
			return nil
		case <-ctx.Done():
			from.Process.Kill()
			// Unblock the filter stage; the internal copy into pw has no
			// other way to end once the process is gone.
			pw.CloseWithError(ctx.Err())
			return ctx.Err()
		}
	})

	g.Go(func() error {
		c := make(chan error, 1)
		go func() { c <- to.Wait() }()

		select {
		case err := <-c:
			if err != nil {
				return fmt.Errorf("'to' command error: %w\n%s", err, toOutput.String())
			}
			cancel()
			return nil
		case <-ctx.Done():
			to.Process.Kill()
			return ctx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		from.Process.Kill()
		to.Process.Kill()
		return fmt.Errorf("process error: %w", err)
	}
	return nil
}

// limitedReader enforces a byte-rate ceiling on reads from the pipe.
type limitedReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func newLimitedReader(ctx context.Context, r io.Reader, bytesPerSec uint64) *limitedReader {
	// Burst of one second's allowance keeps large copy buffers usable.
	return &limitedReader{
		ctx: ctx,
		r:   r,
		lim: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)),
	}
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if burst := lr.lim.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.lim.WaitN(lr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// ThroughputStat accumulates byte counts as a Writer and reports
// human-readable totals and recent rates.
type ThroughputStat struct {
	mu         sync.Mutex
	totalBytes int64
	dataPoints []dataPoint
}

type dataPoint struct {
	bytes     int64
	timestamp time.Time
}

func NewThroughputStat() *ThroughputStat {
	return &ThroughputStat{}
}

func (s *ThroughputStat) Write(bs []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(bs))
	s.totalBytes += n
	s.dataPoints = append(s.dataPoints, dataPoint{bytes: n, timestamp: time.Now()})

	// Drop points older than the widest reporting window.
	cutoff := time.Now().Add(-10 * time.Minute)
	i := 0
	for _, point := range s.dataPoints {
		if point.timestamp.After(cutoff) {
			break
		}
		i++
	}
	s.dataPoints = s.dataPoints[i:]

	return len(bs), nil
}

func (s *ThroughputStat) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

func (s *ThroughputStat) Log(log logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	minuteBytes, tenMinuteBytes := int64(0), int64(0)
	var firstMinute, firstTenMinute *time.Time

	for i := range s.dataPoints {
		point := &s.dataPoints[i]
		if point.timestamp.After(now.Add(-10 * time.Minute)) {
			tenMinuteBytes += point.bytes
			if firstTenMinute == nil {
				firstTenMinute = &point.timestamp
			}
		}
		if point.timestamp.After(now.Add(-time.Minute)) {
			minuteBytes += point.bytes
			if firstMinute == nil {
				firstMinute = &point.timestamp
			}
		}
	}

	log.Printf("transferred %s (last minute: %s/sec, last 10: %s/sec)",
		humanize.Bytes(uint64(s.totalBytes)),
		printRate(minuteBytes, elapsedSeconds(now, firstMinute, 60)),
		printRate(tenMinuteBytes, elapsedSeconds(now, firstTenMinute, 600)),
	)
}

func elapsedSeconds(now time.Time, first *time.Time, window int64) int64 {
	if first == nil {
		return window
	}
	elapsed := int64(now.Sub(*first).Seconds())
	if elapsed > window {
		return window
	}
	return elapsed
}

func printRate(bytes, seconds int64) string {
	if seconds == 0 {
		return humanize.Bytes(uint64(bytes))
	}
	return humanize.Bytes(uint64(float64(bytes) / float64(seconds)))
}
