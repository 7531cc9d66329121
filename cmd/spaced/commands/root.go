package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openspaces/spaced/pkg/config"
	"github.com/openspaces/spaced/pkg/engine"
	"github.com/openspaces/spaced/pkg/providers"
)

var (
	// Global flags
	spaceFile string
	verbose   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spaced",
		Short: "spaced - provisioning execution engine for spaces",
		Long: `spaced turns a cascading space definition into an ordered stream of shell
commands and drives them to completion, locally, over SSH, or for a remote
executor speaking the wire protocol.

A space definition is a set of sections, each naming a provider and its
parameters. Sections cascade: [a b] inherits from [a], and [x]:key references
pull values across sections. Dependencies order the providers; each provider
suspends on every command it issues and resumes with its outcome.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&spaceFile, "file", "f", "space.cfg", "space definition file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newPipeCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newOrderCommand())

	return rootCmd
}

// loadSpace parses the space definition named by the global flag.
func loadSpace() (*config.Config, error) {
	data, err := os.ReadFile(spaceFile)
	if err != nil {
		return nil, fmt.Errorf("read space file: %w", err)
	}
	return config.ParseString(string(data), spaceFile)
}

// localPlatform reads this host's os-release identification. Providers that
// never consult the platform work fine with the zero value, so a missing
// file is not an error.
func localPlatform() providers.Platform {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return providers.Platform{}
	}
	return providers.ParseOSRelease(string(data))
}

// loadPlan parses the space definition and builds the ordered provider list
// for this host's platform.
func loadPlan() ([]engine.ProviderEntry, error) {
	cfg, err := loadSpace()
	if err != nil {
		return nil, err
	}
	factory := providers.NewFactory(localPlatform())
	return engine.BuildPlan(cfg, factory.New)
}
