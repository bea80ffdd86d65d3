package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sarchlab/dynet/serialization"
	"github.com/sarchlab/dynet/simulation"
	"github.com/spf13/cobra"
)

func newExportCmd(flags *Flags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the initial topology of the configuration as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := simulation.MakeBuilder().
				WithConfig(*flags.Config).
				WithLogger(log.Logger).
				WithoutMonitoring().
				WithoutRecording().
				Build()
			if err != nil {
				return err
			}
			defer s.Terminate()

			data, err := serialization.YAML{}.Export(s.Topology())
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write topology: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout if empty")

	return cmd
}
