package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RunSearchCommand resolves queries against one tracker from the
// command line.
func RunSearchCommand() *cobra.Command {
	var (
		configPath string
		site       string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Resolve search queries to download URLs",
		Long: `Resolve one or more queries of the shape "<title> s01e02" or
"<title> 1x02" against a tracker's cached catalog.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			client, exists := app.clients[site]
			if !exists {
				return fmt.Errorf("site %q is not configured", site)
			}

			results, err := client.Search(cmd.Context(), args)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for _, result := range results {
				fmt.Printf("%s\t%s\n", result.Title, result.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&site, "site", "", "tracker site name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}
