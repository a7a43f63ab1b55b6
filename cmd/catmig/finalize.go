package main

import (
	log "log/slog"

	"github.com/spf13/cobra"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/migration"
	"github.com/dropsight/catmig/target"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Complete multimedia rows whose urls are missing a host",
	Long: `Finalize rewrites multimedia urls that are not absolute, prefixing each with
the CDN host of the product's country. The run command does this automatically
after the last chunk; finalize exists to repair rows written by interrupted or
older runs.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := catmig.LoadConfig()
		if err != nil {
			return err
		}
		conn, err := target.OpenConnection(ctx, target.DefaultConfig(cfg.ProductsDatabaseURL))
		if err != nil {
			return err
		}
		defer target.CloseConnection()

		n, err := target.NewMultimediaRepository(conn).FixIncompleteURLs(ctx, migration.CDNHosts(), migration.DefaultCDNHost)
		if err != nil {
			return err
		}
		log.Info("completed incomplete multimedia urls", "rows", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(finalizeCmd)
}
