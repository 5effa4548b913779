package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"monks.co/zmirror/config"
	"monks.co/zmirror/lock"
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "List held replication locks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		lockDir := flags.lockDir
		if lockDir == "" {
			lockDir = conf.LockDir
		}

		held, err := lock.New(lockDir).List()
		if err != nil {
			return err
		}
		if len(held) == 0 {
			fmt.Println("no locks held")
			return nil
		}
		for _, h := range held {
			line := fmt.Sprintf("%s\t%s", h.Filesystem, humanize.Time(h.Since))
			if h.Comment != "" {
				line += "\t" + h.Comment
			}
			fmt.Println(line)
		}
		return nil
	},
}
