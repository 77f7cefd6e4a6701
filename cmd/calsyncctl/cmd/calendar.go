package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/labkit-dev/calsync/domain"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Drive provider connections and sync runs",
}

func validProviderArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one provider argument")
	}
	if !domain.Provider(args[0]).Valid() {
		return fmt.Errorf("unknown provider %q (known: google, outlook)", args[0])
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var syncCmd = &cobra.Command{
	Use:   "sync <provider>",
	Short: "Export the calendar feed to the provider",
	Args:  validProviderArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Result domain.SyncResult `json:"result"`
		}
		err := api().Do(cmd.Context(), http.MethodPost, "/calendar/"+args[0]+"/sync", nil, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("Sync finished: %d synced, %d failed.\n", resp.Result.Synced, len(resp.Result.Errors))
		return printJSON(resp.Result)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <provider>",
	Short: "Import foreign provider events into the local calendar",
	Args:  validProviderArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Result domain.ImportResult `json:"result"`
		}
		err := api().Do(cmd.Context(), http.MethodPost, "/calendar/"+args[0]+"/import", nil, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("Import finished: %d imported, %d updated, %d skipped.\n",
			resp.Result.Imported, resp.Result.Updated, resp.Result.Skipped)
		return printJSON(resp.Result)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <provider>",
	Short: "Show the connection state for a provider",
	Args:  validProviderArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status map[string]any
		if err := api().Do(cmd.Context(), http.MethodGet, "/calendar/"+args[0]+"/status", nil, &status); err != nil {
			return err
		}
		return printJSON(status)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <provider>",
	Short: "Print the consent URL that connects the provider",
	Long: `Starts the OAuth flow and prints the provider consent URL. Open it in a
browser; the provider redirects back to the server, which stores the
credentials.`,
	Args: validProviderArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The auth endpoint answers with a redirect; surface its target.
		consentURL, err := api().RedirectLocation(cmd.Context(), "/calendar/"+args[0]+"/auth")
		if err != nil {
			return err
		}
		fmt.Println("Open this URL in a browser to connect:")
		fmt.Println(consentURL)
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <provider>",
	Short: "Remove the stored provider credentials and mappings",
	Args:  validProviderArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api().Do(cmd.Context(), http.MethodPost, "/calendar/"+args[0]+"/disconnect", nil, nil); err != nil {
			return err
		}
		fmt.Printf("Disconnected %s.\n", args[0])
		return nil
	},
}

func init() {
	calendarCmd.AddCommand(syncCmd, importCmd, statusCmd, connectCmd, disconnectCmd)
	rootCmd.AddCommand(calendarCmd)
}
