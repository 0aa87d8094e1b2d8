package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/echokernel/kernel"
)

var generateSystem string

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Run a single kernel generation",
	Long: `Send a prompt to the configured text generation provider. Registered
tools are offered to the model and resolved by the kernel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateSystem, "system", "s", "", "System message")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	ek, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	gen, err := ek.Generate(ctx, strings.Join(args, " "), func(o *kernel.GenerateOptions) {
		o.SystemMessage = generateSystem
	})
	if err != nil {
		return err
	}

	printf(cmd, "%s\n", gen.Text)
	if gen.Capped() {
		printf(cmd, "\n[stopped after %d iterations]\n", gen.Iterations)
	}
	return nil
}
