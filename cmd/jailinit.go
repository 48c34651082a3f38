package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"njail-go/config"
	"njail-go/jail"
	"njail-go/logging"
)

// jailInitCmd is the re-exec target the orchestrator clones into; it is
// never invoked directly by a user. Its configuration arrives via
// environment variables set by jail.Spawn, not flags, since it runs
// inside the freshly cloned namespaces before any flag parsing would
// make sense.
var jailInitCmd = &cobra.Command{
	Use:    "jail-init",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runJailInit()
		return nil // unreachable on success: runJailInit calls execve or os.Exit
	},
}

func init() {
	rootCmd.AddCommand(jailInitCmd)
}

func runJailInit() {
	logPipe := os.NewFile(3, "logpipe")
	log := logging.NewLogger(logging.Config{Level: logging.ParseLevel("debug"), Format: "text", Output: logPipe})

	cfg, uid, gid, err := loadInitEnv()
	if err != nil {
		fmt.Fprintf(logPipe, "jail-init: load environment: %v\n", err)
		os.Exit(1)
	}

	files := jail.ChildFiles{
		Stdin:   os.NewFile(0, "stdin"),
		Stdout:  os.NewFile(1, "stdout"),
		Stderr:  os.NewFile(2, "stderr"),
		LogPipe: logPipe,
	}

	step, err := jail.RunChildEnvironment(cfg, files, uid, gid, log)
	if err != nil {
		fmt.Fprintf(logPipe, "jail-init: step %s failed: %v\n", step, err)
		os.Exit(1)
	}
	// RunChildEnvironment only returns on failure; execve never returns
	// on success.
}

func loadInitEnv() (*config.Configuration, int, int, error) {
	cfgJSON := os.Getenv("_NJAIL_CONFIG")
	if cfgJSON == "" {
		return nil, 0, 0, fmt.Errorf("missing _NJAIL_CONFIG")
	}
	var cfg config.Configuration
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, 0, 0, fmt.Errorf("unmarshal configuration: %w", err)
	}

	uid, err := strconv.Atoi(os.Getenv("_NJAIL_UID"))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("missing/invalid _NJAIL_UID: %w", err)
	}
	gid, err := strconv.Atoi(os.Getenv("_NJAIL_GID"))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("missing/invalid _NJAIL_GID: %w", err)
	}

	return &cfg, uid, gid, nil
}
