package main

import (
	log "log/slog"

	"github.com/spf13/cobra"

	"github.com/dropsight/catmig/redis"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all chunk state and locks so the next run starts from scratch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if !resetYes {
			log.Error("reset discards all migration progress; re-run with --yes to confirm")
			return cmd.Help()
		}

		sched, err := openScheduler()
		if err != nil {
			return err
		}
		defer redis.CloseConnection()

		if err := sched.Reset(ctx); err != nil {
			return err
		}
		log.Info("chunk state cleared")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm discarding all migration progress")
	rootCmd.AddCommand(resetCmd)
}
