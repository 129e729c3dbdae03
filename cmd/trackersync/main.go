package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set during build via ldflags.
var Version = "0.0.1-dev"

func main() {
	// Optional .env file for credentials; missing file is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "trackersync",
		Short: "Tracker metadata synchronization and episode resolution engine",
		Long: `trackersync keeps local catalogs of TV release trackers in sync and
resolves "<title> s01e02" style queries to direct download URLs.`,
	}

	rootCmd.Version = Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunSearchCommand())
	rootCmd.AddCommand(RunRewriteCommand())
	rootCmd.AddCommand(RunResetCacheCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
