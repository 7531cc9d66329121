package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openspaces/spaced/pkg/engine"
	"github.com/openspaces/spaced/pkg/providers"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a space definition",
		Long: `Validate a space definition without executing anything.

This command checks:
  - definition syntax (sections, options, continuations)
  - that every section resolves a provider and its parameters
  - that every dependency names a known section
  - that the dependency graph has no cycles`,
		Example: `  # Validate the default space.cfg
  spaced validate

  # Validate a specific definition
  spaced validate -f dev.cfg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSpace()
			if err != nil {
				return err
			}
			order, err := engine.NewGraphBuilder().Build(cfg)
			if err != nil {
				return err
			}
			factory := providers.NewFactory(localPlatform())
			if _, err := engine.BuildPlan(cfg, factory.New); err != nil {
				return err
			}

			log.Info().
				Str("file", spaceFile).
				Int("sections", len(order)).
				Msg("space definition is valid")
			fmt.Printf("%s: %d sections, no errors\n", spaceFile, len(order))
			return nil
		},
	}
	return cmd
}
