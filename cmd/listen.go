package cmd

import (
	"github.com/spf13/cobra"

	"njail-go/config"
	"njail-go/jail"
)

var listenFlags flagSet

var listenCmd = &cobra.Command{
	Use:   "listen -- command [args...]",
	Short: "accept TCP connections forever, jailing each one (LISTEN_TCP)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrive(&listenFlags, config.ModeListenTCP, args)
	},
}

func init() {
	registerFlags(listenCmd, &listenFlags)
	rootCmd.AddCommand(listenCmd)
}

func runDrive(f *flagSet, mode config.Mode, args []string) error {
	cfg, err := buildConfiguration(f, mode, args)
	if err != nil {
		return err
	}
	log := setupLogging(f)
	return jail.Drive(GetContext(), cfg, log)
}
