package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/echokernel"
	"github.com/hupe1980/echokernel/core"
)

var memoryLimit int

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Add to or search the configured memory store",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Embed and store a text record",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(ek *echokernel.EchoKernel) error {
			id, err := ek.Memory().AddText(cmd.Context(), strings.Join(args, " "), map[string]any{
				core.MetadataProvenance: core.ProvenanceUser,
			})
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", id)
			return nil
		})
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search records by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(ek *echokernel.EchoKernel) error {
			results, err := ek.Memory().SearchText(cmd.Context(), strings.Join(args, " "), memoryLimit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				printf(cmd, "No matching records.\n")
				return nil
			}
			for _, r := range results {
				printf(cmd, "%.3f  %s  %s\n", r.Score, r.Record.ID, r.Record.Text)
			}
			return nil
		})
	},
}

func init() {
	memorySearchCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 5, "Maximum number of results")

	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memorySearchCmd)
}

func withMemory(cmd *cobra.Command, fn func(ek *echokernel.EchoKernel) error) error {
	ek, cleanup, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if ek.Memory() == nil {
		return errors.New("no memory configured (set memory.type and embedding.type)")
	}
	return fn(ek)
}
