package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage the published calendar feed",
}

var feedRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Issue a fresh feed token and print the subscription URL",
	Long: `Rotates the published-feed token. The previous feed URL stops working
immediately; calendar subscriptions must be updated to the new URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			URL string `json:"url"`
		}
		if err := api().Do(cmd.Context(), http.MethodPost, "/feed/token", nil, &resp); err != nil {
			return err
		}
		fmt.Println("Feed URL:")
		fmt.Println(resp.URL)
		return nil
	},
}

func init() {
	feedCmd.AddCommand(feedRotateCmd)
	rootCmd.AddCommand(feedCmd)
}
