// Command testpipe is a manual harness for the transfer pipe: it streams
// one command into another with the same filter stage a replication uses,
// so rate limiting and progress reporting can be eyeballed without zfs.
//
//	go run ./testpipe -rate 1MB tail -f log.log : wc -l
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/dustin/go-humanize"

	"monks.co/zmirror/env"
	"monks.co/zmirror/logger"
)

func main() {
	rateArg := flag.String("rate", "", "rate ceiling, e.g. 1MB per second")
	bufArg := flag.Int("buffer", 0, "copy buffer size in bytes")
	flag.Parse()

	args := flag.Args()
	split := -1
	for i, arg := range args {
		if arg == ":" {
			split = i
			break
		}
	}
	if split <= 0 || split == len(args)-1 {
		fmt.Fprintln(os.Stderr, "usage: testpipe [flags] <from...> : <to...>")
		os.Exit(2)
	}

	opts := env.PipeOptions{Progress: true, BufferSize: *bufArg}
	if *rateArg != "" {
		rate, err := humanize.ParseBytes(*rateArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad rate: %v\n", err)
			os.Exit(2)
		}
		opts.RateLimit = rate
	}

	from := exec.Command(args[0], args[1:split]...)
	to := exec.Command(args[split+1], args[split+2:]...)
	if err := env.Pipe(context.Background(), logger.New("testpipe"), opts, from, to); err != nil {
		panic(err)
	}
}
