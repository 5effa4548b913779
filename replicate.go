package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"monks.co/zmirror/config"
	"monks.co/zmirror/env"
	"monks.co/zmirror/lock"
	"monks.co/zmirror/logger"
	"monks.co/zmirror/model"
	"monks.co/zmirror/plan"
	"monks.co/zmirror/prune"
	"monks.co/zmirror/snitch"
)

// endpoint is one side of a replication: an optional ssh target and a
// dataset path on that host.
type endpoint struct {
	host string // "" for local
	root string
}

// parseEndpoint splits "[user@host:]pool/dataset". A lone path is local.
func parseEndpoint(s string) (endpoint, error) {
	host, root, ok := strings.Cut(s, ":")
	if !ok {
		return endpoint{root: s}, nil
	}
	if host == "" || root == "" {
		return endpoint{}, fmt.Errorf("invalid endpoint '%s'", s)
	}
	return endpoint{host: host, root: root}, nil
}

func (ep endpoint) connect(key string) *env.ZFS {
	if ep.host == "" {
		return env.NewZFS(ep.root, env.Local)
	}
	remote := env.NewRemote(ep.host, key)
	if flags.cipher != "" {
		remote = remote.WithCipher(flags.cipher)
	}
	if flags.compress {
		remote = remote.WithCompression()
	}
	if flags.trustHost {
		remote = remote.WithTrustUnknownHost()
	}
	return env.NewZFS(ep.root, remote)
}

func replicate(ctx context.Context, sourceArg, destArg string) error {
	conf, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var log logger.Logger = logger.New("zmirror")
	if conf.LogFile != "" {
		log = logger.NewFile("zmirror", conf.LogFile)
	}

	source, err := parseEndpoint(sourceArg)
	if err != nil {
		return err
	}
	dest, err := parseEndpoint(destArg)
	if err != nil {
		return err
	}

	opts, err := transferOptions(conf)
	if err != nil {
		return err
	}

	if flags.cipher == "" {
		flags.cipher = conf.Transfer.Cipher
	}
	flags.compress = flags.compress || conf.Transfer.Compression

	sourceKey, destKey := flags.sshKey, flags.sshKey
	if sourceKey == "" {
		sourceKey = conf.Source.SSHKey
	}
	if destKey == "" {
		destKey = conf.Destination.SSHKey
	}
	sourceZFS := source.connect(sourceKey)
	destZFS := dest.connect(destKey)

	// Serialize runs on the source filesystem. In dry-run mode only report
	// whether the lock would succeed.
	lockDir := flags.lockDir
	if lockDir == "" {
		lockDir = conf.LockDir
	}
	locks := lock.New(lockDir)
	if flags.dryrun {
		if !locks.WouldLock(source.root) {
			log.Printf("lock for '%s' is held; skipping", source.root)
			return fmt.Errorf("filesystem '%s': %w", source.root, lock.ErrUnavailable)
		}
		log.Printf("dry-run: would lock '%s'", source.root)
	} else {
		if err := locks.Lock(source.root, flags.lockComment); err != nil {
			if errors.Is(err, lock.ErrUnavailable) {
				log.Printf("lock for '%s' is held; skipping", source.root)
			}
			return err
		}
		defer locks.Unlock(source.root)

		if flags.extraLock != "" {
			if err := locks.Lock(flags.extraLock, flags.lockComment); err != nil {
				return err
			}
			defer locks.Unlock(flags.extraLock)
		}
	}

	if flags.daily && !flags.dryrun {
		log.Printf("collapsing source history to daily")
		if err := prune.Collapse(cmdLogger(log), sourceZFS, ""); err != nil {
			return fmt.Errorf("collapsing source history: %w", err)
		}
	}

	sched, err := buildSchedule(log, sourceZFS, destZFS)
	if err != nil {
		return err
	}
	if len(sched) == 0 {
		log.Printf("already in sync; nothing to do")
	} else if flags.verbose || flags.dryrun {
		printSchedule(sched)
	}

	e, err := env.New(sourceZFS, destZFS, opts)
	if err != nil {
		return err
	}
	if err := e.Run(ctx, log, sched); err != nil {
		return err
	}

	if conf.SnitchID != "" && !flags.dryrun {
		if err := snitch.OK(ctx, conf.SnitchID); err != nil {
			log.Printf("snitch error: %v", err)
		}
	}
	return nil
}

func buildSchedule(log logger.Logger, sourceZFS, destZFS *env.ZFS) (plan.Schedule, error) {
	cmdLog := cmdLogger(log)

	srcTree, err := sourceZFS.Enumerate(cmdLog)
	if err != nil {
		return nil, fmt.Errorf("enumerating source: %w", err)
	}

	dstTree, err := destZFS.Enumerate(cmdLog)
	var notFound *model.NotFoundError
	if errors.As(err, &notFound) && flags.createDest {
		if flags.dryrun {
			log.Printf("dry-run: would create destination '%s'", destZFS.Root())
			dstTree = model.NewTree()
		} else {
			log.Printf("creating missing destination '%s'", destZFS.Root())
			if err := destZFS.CreateDataset(cmdLog, ""); err != nil {
				return nil, fmt.Errorf("creating destination: %w", err)
			}
			if dstTree, err = destZFS.Enumerate(cmdLog); err != nil {
				return nil, fmt.Errorf("enumerating destination: %w", err)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("enumerating destination: %w", err)
	}

	sched := plan.RecursiveReplicate(srcTree, dstTree)
	if flags.clearObsolete {
		sched = append(sched, plan.RecursiveClearObsolete(srcTree, dstTree)...)
	}
	return plan.Optimize(sched, srcTree, flags.recursive), nil
}

func transferOptions(conf *config.Config) (env.Options, error) {
	opts := env.Options{
		DryRun:     flags.dryrun,
		BufferSize: flags.bufferSize,
		Dedup:      flags.dedup || conf.Transfer.Dedup,
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = conf.Transfer.BufferSize
	}

	limit := flags.rateLimit
	if limit == "" {
		limit = conf.Transfer.RateLimit
	}
	if limit != "" {
		bytesPerSec, err := humanize.ParseBytes(limit)
		if err != nil {
			return opts, fmt.Errorf("parsing rate limit '%s': %w", limit, err)
		}
		opts.RateLimit = bytesPerSec
		// A rate-limited transfer always shows progress.
		opts.Progress = true
	}
	return opts, nil
}

// cmdLogger returns the logger remote commands are echoed to: silent unless
// verbose.
func cmdLogger(log logger.Logger) logger.Logger {
	if flags.verbose {
		return log
	}
	return logger.NewMemory()
}

var (
	stubColor    = color.New(color.FgYellow)
	sendColor    = color.New(color.FgGreen)
	destroyColor = color.New(color.FgRed)
	neutralColor = color.New(color.Reset)
)

func printSchedule(sched plan.Schedule) {
	fmt.Println("PLAN")
	for _, op := range sched {
		c := neutralColor
		switch op.(type) {
		case *plan.CreateStub:
			c = stubColor
		case *plan.Replicate:
			c = sendColor
		case *plan.Destroy, *plan.DestroyRecursively:
			c = destroyColor
		}
		c.Printf("- %s\n", op)
	}
}
