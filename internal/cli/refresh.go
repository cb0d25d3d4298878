package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh-token",
	Short: "Renew the access token and save it",
	Long: `Requests a new access token with the refresh token and writes it as TOKEN
to the config file when --config is set, or to the env file otherwise.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	client, err := newSieraClient()
	if err != nil {
		return err
	}

	if err := client.RefreshToken(cmd.Context()); err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}

	target := cfg.EnvFile
	if cfg.ConfigFile != "" {
		target = cfg.ConfigFile
	}
	cmd.Printf("Access token renewed and saved to %s.\n", target)
	return nil
}
