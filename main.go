package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var flags struct {
	verbose       bool
	dryrun        bool
	rateLimit     string
	bufferSize    int
	compress      bool
	cipher        string
	dedup         bool
	trustHost     bool
	clearObsolete bool
	createDest    bool
	recursive     bool
	daily         bool
	sshKey        string
	lockDir       string
	lockComment   string
	extraLock     string
}

var rootCmd = &cobra.Command{
	Use:   "zmirror [flags] <source> <destination>",
	Short: "Replicate a ZFS dataset tree to another host",
	Long: `zmirror brings a destination dataset tree in sync with a source tree,
transferring only the incremental snapshot data the destination is missing.
Either side may be local or remote ([user@host:]pool/dataset).`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return replicate(cmd.Context(), args[0], args[1])
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log every remote command")
	rootCmd.PersistentFlags().StringVar(&flags.lockDir, "lock-dir", "", "lock directory (default from config)")

	rootCmd.Flags().BoolVarP(&flags.dryrun, "dry-run", "n", false, "log intended operations without mutating anything")
	rootCmd.Flags().StringVar(&flags.rateLimit, "rate-limit", "", "transfer rate ceiling, e.g. '10MB' per second (implies progress)")
	rootCmd.Flags().IntVar(&flags.bufferSize, "buffer-size", 0, "pipe buffer in bytes, at least 16384; 0 uses the OS default")
	rootCmd.Flags().BoolVar(&flags.compress, "compress", false, "force compression of the network tunnel")
	rootCmd.Flags().StringVar(&flags.cipher, "cipher", "", "ssh cipher for the network tunnel")
	rootCmd.Flags().BoolVar(&flags.dedup, "dedup", false, "ask the send primitive to deduplicate the stream")
	rootCmd.Flags().BoolVar(&flags.trustHost, "trust-host", false, "accept unknown remote host keys")
	rootCmd.Flags().BoolVar(&flags.clearObsolete, "clear-obsolete", false, "destroy destination datasets absent from the source")
	rootCmd.Flags().BoolVar(&flags.createDest, "create-destination", false, "create the destination root if it is missing")
	rootCmd.Flags().BoolVar(&flags.recursive, "recursive", true, "merge subtree transfers into recursive streams")
	rootCmd.Flags().BoolVar(&flags.daily, "daily", false, "collapse source history to a single daily snapshot first")
	rootCmd.Flags().StringVarP(&flags.sshKey, "ssh-key", "i", "", "ssh identity file for remote endpoints")
	rootCmd.Flags().StringVar(&flags.lockComment, "comment", "", "free-text comment stored with the lock")
	rootCmd.Flags().StringVar(&flags.extraLock, "extra-lock", "", "name of a second lock to hold for the run")

	rootCmd.AddCommand(locksCmd, pruneCmd)

	ctx := sigctx()
	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "zmirror: %v\n", err)
		os.Exit(1)
	}
}

// sigctx returns a context canceled by the usual termination signals. A
// running transfer is killed, not unwound: the next invocation replans from
// whatever state the destination reached.
func sigctx() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		sig := <-sigs
		cancel(fmt.Errorf("got signal: %s", sig))
	}()
	return ctx
}
