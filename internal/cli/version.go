package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Siera rules version",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	client, err := newSieraClient()
	if err != nil {
		return err
	}

	version, err := client.GetVersion(cmd.Context())
	if err != nil {
		return fmt.Errorf("getting version: %w", err)
	}

	cmd.Printf("siera rules version %s\n", version)
	return nil
}
