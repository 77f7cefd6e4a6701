package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/labkit-dev/calsync/cmd/calsyncctl/client"
	"github.com/labkit-dev/calsync/log"
)

var (
	appLogger log.Logger

	serverEndpoint string
	operatorUser   string
)

var rootCmd = &cobra.Command{
	Use:   "calsyncctl",
	Short: "calsyncctl is a CLI tool to interact with the calsync API",
	Long:  `A command-line interface for driving calendar sync, managing provider connections, feed tokens, and recurring operator jobs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = log.NewZerologAdapter(zerolog.WarnLevel, true)

		if serverEndpoint == "" {
			serverEndpoint = viper.GetString("server")
		}
		if operatorUser == "" {
			operatorUser = viper.GetString("user")
		}
		if operatorUser == "" {
			return fmt.Errorf("no user id set; use --user or CALSYNC_USER")
		}
		return nil
	},
}

// api builds the HTTP client from the resolved flags.
func api() *client.Client {
	return client.New(serverEndpoint, operatorUser)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverEndpoint, "server", "",
		"calsync server endpoint (default http://localhost:8080, env CALSYNC_SERVER)")
	rootCmd.PersistentFlags().StringVar(&operatorUser, "user", "",
		"operator user id sent as X-User-ID (env CALSYNC_USER)")

	viper.SetEnvPrefix("CALSYNC")
	viper.AutomaticEnv()
	viper.SetDefault("server", "http://localhost:8080")
}
