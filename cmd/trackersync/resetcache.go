package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RunResetCacheCommand drops cached catalog data, and optionally the
// stored credentials too.
func RunResetCacheCommand() *cobra.Command {
	var (
		configPath  string
		site        string
		credentials bool
	)

	cmd := &cobra.Command{
		Use:   "reset-cache",
		Short: "Reset the cached tracker catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			if site != "" {
				if _, exists := app.registry.Get(site); !exists {
					return fmt.Errorf("unknown site %q", site)
				}
			}

			ctx := cmd.Context()
			if err := app.store.Reset(ctx, site); err != nil {
				return err
			}
			if credentials {
				if err := app.credentials.DeleteAll(ctx, site); err != nil {
					return err
				}
				app.sessions.Flush(site)
			}

			if site == "" {
				fmt.Println("The tracker cache has been reset")
			} else {
				fmt.Printf("The %s cache has been reset\n", site)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&site, "site", "", "limit the reset to one tracker")
	cmd.Flags().BoolVar(&credentials, "credentials", false, "also delete stored credentials")
	return cmd
}
