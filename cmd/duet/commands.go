package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/duet-sh/duet"
	"github.com/duet-sh/duet/internal/command"
	"github.com/duet-sh/duet/internal/interaction"
	"github.com/duet-sh/duet/internal/netport"
	"github.com/duet-sh/duet/internal/slot"
)

// UpFlags holds flags for the up command.
type UpFlags struct {
	NoRestart bool
	Docker    bool
	Profile   string
	Serve     bool
}

func createUpCommand(global *GlobalFlags) *cobra.Command {
	flags := &UpFlags{}
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start both services and supervise them until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := duet.LoadConfig(global.ConfigPath)
			if err != nil {
				return err
			}
			if flags.NoRestart {
				cfg.AutoRestart = false
			}
			if flags.Docker {
				cfg.UseDocker = true
			}
			if flags.Profile != "" {
				cfg.ActiveProfile = flags.Profile
			}
			if flags.Serve {
				cfg.Server.Enabled = true
			}

			host := interaction.NewTerminal(os.Stdin, os.Stderr)
			app, err := duet.NewApp(cfg, host, os.Stderr)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Startup(); err != nil {
				if errors.Is(err, duet.ErrAborted) {
					return nil
				}
				return err
			}
			app.StartServer()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			for s := range sig {
				// Shutdown prompts when sessions are active; a declined
				// prompt keeps supervising.
				if err := app.Shutdown(); err == nil {
					break
				}
				if s == syscall.SIGTERM {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.NoRestart, "no-restart", false, "disable automatic crash restart")
	cmd.Flags().BoolVar(&flags.Docker, "docker", false, "prefer docker commands when build files exist")
	cmd.Flags().StringVar(&flags.Profile, "profile", "", "activate a named command profile")
	cmd.Flags().BoolVar(&flags.Serve, "serve", false, "expose the status HTTP API")
	return cmd
}

func createResolveCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the commands and ports each slot would use (dry run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := duet.LoadConfig(global.ConfigPath)
			if err != nil {
				return err
			}
			for _, kind := range slot.Kinds() {
				svc := cfg.Service(kind)
				port := netport.PortFor(svc.Framework, kind)
				resolved := cfg.ProfileOverride(kind)
				source := "profile"
				if resolved == "" && cfg.UseDocker {
					if dc, ok := command.DockerCommand(cfg.WorkDir(kind), kind, port); ok {
						resolved, source = dc, "docker"
					}
				}
				if resolved == "" {
					resolved, source = command.Resolve(svc.Framework, kind, svc.Command), "framework"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s  port=%-5d  (%s)  %s\n", kind.String(), port, source, resolved)
			}
			return nil
		},
	}
}

func createStatusCommand(global *GlobalFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running duet's status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := duet.LoadConfig(global.ConfigPath)
			if err != nil {
				return err
			}
			url := fmt.Sprintf("http://%s%s/status", cfg.Server.Addr, cfg.Server.BasePath)
			client := &http.Client{Timeout: timeout}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("duet not reachable at %s - start it with 'duet up --serve': %w", url, err)
			}
			defer func() { _ = resp.Body.Close() }()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	return cmd
}
