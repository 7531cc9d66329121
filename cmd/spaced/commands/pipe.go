package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openspaces/spaced/pkg/engine"
	"github.com/openspaces/spaced/pkg/protocol"
)

func newPipeCommand() *cobra.Command {
	var (
		mode    string
		inPath  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Drive a session over a message pipe pair",
		Long: `Drive a provisioning session over the paired-pipe wire binding.

Commands go out one per line (INF description, CMD command, then ERR or END);
outcomes come back as STO/STE payload lines terminated by an XST line with
the exit status. By default the outbound channel is stdout and the inbound
channel is stdin, so an executor can be attached with an ordinary pipe pair
or two FIFOs.`,
		Example: `  # Drive over stdio
  spaced pipe -f space.cfg < from-executor > to-executor

  # Drive over two FIFOs
  spaced pipe -f space.cfg --in /run/spaced.in --out /run/spaced.out`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := engine.Mode(mode)
			if err := m.Validate(); err != nil {
				return err
			}
			entries, err := loadPlan()
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			var out io.Writer = os.Stdout
			if inPath != "" {
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("open inbound pipe: %w", err)
				}
				defer f.Close()
				in = f
			}
			if outPath != "" {
				f, err := os.OpenFile(outPath, os.O_WRONLY, 0)
				if err != nil {
					return fmt.Errorf("open outbound pipe: %w", err)
				}
				defer f.Close()
				out = f
			}

			session := engine.NewSession(cmd.Context(), entries)
			defer session.Close()
			driver := protocol.NewDriver(session, in, out, log.Logger)
			return driver.Run(cmd.Context(), m)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "provide", "execution mode: provide or revert")
	cmd.Flags().StringVar(&inPath, "in", "", "inbound pipe path (default stdin)")
	cmd.Flags().StringVar(&outPath, "out", "", "outbound pipe path (default stdout)")

	return cmd
}
