package main

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and agent topology",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ek, cleanup, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		printf(cmd, "Configuration OK: %d agents, %d tools\n", len(ek.Agents()), ek.Kernel().Tools().Len())
		return nil
	},
}
