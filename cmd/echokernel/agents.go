package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the declared agents",
	Long:  `Build the agent topology and list every agent in dependency order.`,
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

type describer interface {
	Description() string
}

type router interface {
	Specialists() []string
}

func runAgents(cmd *cobra.Command, args []string) error {
	ek, cleanup, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	names := ek.Agents()
	if len(names) == 0 {
		printf(cmd, "No agents declared.\n")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tDESCRIPTION")
	for _, name := range names {
		a, _ := ek.Agent(name)
		desc := ""
		if d, ok := a.(describer); ok {
			desc = d.Description()
		}
		if r, ok := a.(router); ok {
			desc = strings.TrimSpace(desc + " [routes: " + strings.Join(r.Specialists(), ", ") + "]")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, a.Kind(), desc)
	}
	return w.Flush()
}
