package cmd

import (
	"github.com/spf13/cobra"

	"njail-go/config"
)

var rerunFlags flagSet

var rerunCmd = &cobra.Command{
	Use:   "rerun -- command [args...]",
	Short: "jail the command on the supervisor's own stdio, repeating forever on each exit (STANDALONE_RERUN)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrive(&rerunFlags, config.ModeStandaloneRerun, args)
	},
}

func init() {
	registerFlags(rerunCmd, &rerunFlags)
	rootCmd.AddCommand(rerunCmd)
}
