package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RunRewriteCommand maps a topic page URL to its download URL.
func RunRewriteCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rewrite <url>",
		Short: "Rewrite a topic page URL to its download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			topicURL := args[0]
			for _, name := range app.registry.Names() {
				client, configured := app.clients[name]
				if !configured || !client.MatchesURL(topicURL) {
					continue
				}

				downloadURL, err := client.Rewrite(cmd.Context(), topicURL)
				if err != nil {
					return err
				}
				fmt.Println(downloadURL)
				return nil
			}

			return fmt.Errorf("URL does not belong to a configured site: %s", topicURL)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}
