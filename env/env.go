package env

import (
	"context"
	"fmt"

	"monks.co/zmirror/logger"
	"monks.co/zmirror/plan"
)

// MinBufferSize is the smallest permitted transfer buffer. Configured
// buffers below it are rejected before any command starts; zero selects the
// OS default.
const MinBufferSize = 16384

// Options configure how an Env executes transfer operations.
type Options struct {
	DryRun     bool
	RateLimit  uint64 // bytes per second, 0 = unlimited
	Progress   bool
	BufferSize int // bytes, 0 = OS default
	Dedup      bool
}

// Env executes an operation schedule against a source and a destination
// host connection. The two connections are the only state shared across
// operations; each remote call is independent.
type Env struct {
	Source, Dest *ZFS
	Opts         Options
}

func New(source, dest *ZFS, opts Options) (*Env, error) {
	if opts.BufferSize != 0 && opts.BufferSize < MinBufferSize {
		return nil, fmt.Errorf("buffer size %d is below the minimum %d", opts.BufferSize, MinBufferSize)
	}
	return &Env{Source: source, Dest: dest, Opts: opts}, nil
}

// Run executes the schedule strictly in order: one operation completes
// before the next begins, because later operations depend on destination
// state the earlier ones create. The first failure aborts the remainder; a
// re-invocation replans from whatever state the destination ended up in.
//
// In dry-run mode every operation is logged exactly as it would be and then
// skipped, with no remote mutation of any kind.
func (env *Env) Run(ctx context.Context, log logger.Logger, sched plan.Schedule) error {
	for _, op := range sched {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("applying: %s", op)
		if env.Opts.DryRun {
			log.Printf("-- dry-run, skipped")
			continue
		}
		if err := env.Apply(ctx, log, op); err != nil {
			return fmt.Errorf("applying '%s': %w", op, err)
		}
		log.Printf("-- done")
	}
	return nil
}

func (env *Env) Apply(ctx context.Context, log logger.Logger, op plan.Operation) error {
	switch op := op.(type) {

	case *plan.CreateStub:
		return env.Dest.CreateDataset(log, op.Path)

	case *plan.Destroy:
		return env.Dest.DestroyDataset(log, op.Path)

	case *plan.DestroyRecursively:
		return env.Dest.DestroyRecursively(log, op.Path)

	case *plan.Replicate:
		send := env.Source.SendCommand(op.Path, op.Base, op.Target, op.Recursive, env.Opts.Dedup)
		recv := env.Dest.ReceiveCommand(op.Path)
		return Pipe(ctx, log, PipeOptions{
			RateLimit:  env.Opts.RateLimit,
			Progress:   env.Opts.Progress,
			BufferSize: env.Opts.BufferSize,
		}, send, recv)

	default:
		return fmt.Errorf("unsupported operation '%s'", op)
	}
}
