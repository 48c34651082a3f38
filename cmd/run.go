package cmd

import (
	"github.com/spf13/cobra"

	"njail-go/config"
)

var runFlags flagSet

var runCmd = &cobra.Command{
	Use:   "run -- command [args...]",
	Short: "jail the command once on the supervisor's own stdio and exit with its status (STANDALONE_ONCE)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrive(&runFlags, config.ModeStandaloneOnce, args)
	},
}

func init() {
	registerFlags(runCmd, &runFlags)
	rootCmd.AddCommand(runCmd)
}
