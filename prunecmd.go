package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"monks.co/zmirror/logger"
	"monks.co/zmirror/prune"
)

var pruneFlags struct {
	tier string
	keep int
}

var pruneCmd = &cobra.Command{
	Use:   "prune [flags] <dataset>",
	Short: "Delete all but the newest N snapshots of one retention tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := parseEndpoint(args[0])
		if err != nil {
			return err
		}
		if pruneFlags.tier == "" {
			return fmt.Errorf("a tier is required (hourly, daily, weekly, monthly)")
		}

		log := logger.New("prune")
		zfs := ep.connect(flags.sshKey)
		return prune.Prune(log, zfs, "", prune.Tier{
			Prefix: pruneFlags.tier,
			Keep:   pruneFlags.keep,
		})
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneFlags.tier, "tier", "", "snapshot tier prefix to prune")
	pruneCmd.Flags().IntVar(&pruneFlags.keep, "keep", 1, "how many of the newest matching snapshots to keep")
}
