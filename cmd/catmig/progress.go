package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/redis"
	"github.com/dropsight/catmig/scheduler"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Print the migration's chunk and record totals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sched, err := openScheduler()
		if err != nil {
			return err
		}
		defer redis.CloseConnection()

		progress, err := sched.GetProgress(ctx)
		if err != nil {
			return err
		}
		printProgress(progress)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

// openScheduler connects to the coordination service and returns a scheduler
// for read-only and administrative use.
func openScheduler() (*scheduler.Scheduler, error) {
	cfg, err := catmig.LoadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := redis.OpenConnectionWithURL(cfg.RedisURL); err != nil {
		return nil, err
	}
	opts := scheduler.DefaultOptions(cfg.WorkerID)
	opts.ChunkSize = cfg.ChunkSize
	opts.LockTTL = cfg.LockTTL
	return scheduler.New(redis.NewClient(), opts), nil
}

func printProgress(p catmig.Progress) {
	w := os.Stdout
	fmt.Fprintf(w, "chunks:     %d total, %d completed, %d processing, %d pending\n",
		p.TotalChunks, p.CompletedChunks, p.ProcessingChunks, p.PendingChunks)
	fmt.Fprintf(w, "records:    %d processed, %d errors, %d duplicates skipped\n",
		p.Totals.Processed, p.Totals.Errors, p.Totals.DuplicatesSkipped)
	fmt.Fprintf(w, "providers:  %d created\n", p.Totals.ProvidersCreated)
	fmt.Fprintf(w, "products:   %d created, %d updated\n", p.Totals.ProductsCreated, p.Totals.ProductsUpdated)
	fmt.Fprintf(w, "histories:  %d filled\n", p.Totals.HistoriesFilled)
	fmt.Fprintf(w, "multimedia: %d written\n", p.Totals.MultimediaCreated)
}
