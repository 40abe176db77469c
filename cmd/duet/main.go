package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "duet",
		Short: "Supervise a frontend/backend service pair in a workspace",
		Long: "duet launches and supervises two cooperating services (a frontend and a " +
			"backend): it resolves their start commands, clears port contention, spawns " +
			"interactive sessions, polls health over HTTP, and restarts crashes with " +
			"bounded backoff.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "duet.toml", "path to duet.toml")

	root.AddCommand(
		createUpCommand(flags),
		createResolveCommand(flags),
		createStatusCommand(flags),
	)
	return root
}
