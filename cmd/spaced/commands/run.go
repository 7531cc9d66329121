package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openspaces/spaced/pkg/engine"
	"github.com/openspaces/spaced/pkg/executor"
	"github.com/openspaces/spaced/pkg/providers"
)

func newRunCommand() *cobra.Command {
	var (
		mode     string
		sshHost  string
		sshPort  int
		sshUser  string
		sshKey   string
		sshKnown string
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision or revert a space with a built-in executor",
		Long: `Run a full provisioning session against a built-in executor: a persistent
local shell by default, or a persistent shell on a remote host when --ssh-host
is given. Reverting uses --mode revert and undoes providers in the same
dependency order, skipping providers that cannot revert.`,
		Example: `  # Provision locally
  spaced run -f space.cfg

  # Revert locally
  spaced run -f space.cfg --mode revert

  # Provision a remote host
  spaced run -f space.cfg --ssh-host box.example.com --ssh-user admin --ssh-key ~/.ssh/id_ed25519`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := engine.Mode(mode)
			if err := m.Validate(); err != nil {
				return err
			}

			var exec executor.Executor
			var err error
			if sshHost != "" {
				exec, err = executor.NewSSH(&executor.SSHConfig{
					Host:           sshHost,
					Port:           sshPort,
					User:           sshUser,
					PrivateKeyPath: sshKey,
					KnownHostsPath: sshKnown,
					Insecure:       insecure,
				})
			} else {
				exec, err = executor.NewLocal()
			}
			if err != nil {
				return err
			}
			defer exec.Close()

			return runSession(cmd.Context(), exec, m)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "provide", "execution mode: provide or revert")
	cmd.Flags().StringVar(&sshHost, "ssh-host", "", "provision a remote host over SSH")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "", "SSH user")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "SSH private key path")
	cmd.Flags().StringVar(&sshKnown, "ssh-known-hosts", "", "known_hosts path (default ~/.ssh/known_hosts)")
	cmd.Flags().BoolVar(&insecure, "ssh-insecure", false, "skip host key verification")

	return cmd
}

// runSession builds the plan for the executor's platform and drives it to
// completion.
func runSession(ctx context.Context, exec executor.Executor, mode engine.Mode) error {
	cfg, err := loadSpace()
	if err != nil {
		return err
	}
	factory := providers.NewFactory(detectPlatform(ctx, exec))
	entries, err := engine.BuildPlan(cfg, factory.New)
	if err != nil {
		return err
	}

	session := engine.NewSession(ctx, entries)
	defer session.Close()
	if err := session.Begin(mode); err != nil {
		return err
	}

	var outcome *engine.Outcome
	issued := 0
	for {
		adv, err := session.Next(outcome)
		if err != nil {
			return err
		}
		if adv.End {
			log.Info().Int("commands", issued).Str("mode", string(mode)).Msg("session completed")
			return nil
		}
		issued++
		log.Info().Str("section", adv.Section).Msg(adv.Description)
		if verbose {
			fmt.Printf("$ %s\n", adv.Command)
		}
		out, err := exec.Run(ctx, adv.Command)
		if err != nil {
			return fmt.Errorf("execute %q: %w", adv.Command, err)
		}
		log.Debug().Str("command", adv.Command).Int("status", out.Status).Msg("command finished")
		outcome = &out
	}
}

// detectPlatform identifies the executor's host from its os-release file.
// Spaces that never select a platform package provider run fine without one.
func detectPlatform(ctx context.Context, exec executor.Executor) providers.Platform {
	out, err := exec.Run(ctx, "cat /etc/os-release")
	if err != nil || !out.Ok() {
		return providers.Platform{}
	}
	return providers.ParseOSRelease(strings.Join(out.Stdout, "\n"))
}
