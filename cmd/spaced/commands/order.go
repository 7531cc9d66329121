package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openspaces/spaced/pkg/engine"
)

func newOrderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the dependency order of a space definition",
		Long: `Print the sections of a space definition in the order they would be
provisioned, one per line. The order is deterministic: sections with no
ordering constraint between them appear alphabetically.`,
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
			for _, section := range order {
				fmt.Println(section)
			}
			return nil
		},
	}
	return cmd
}
