package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/echokernel"
	"github.com/hupe1980/echokernel/core"
)

var interactiveAgent string

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"repl"},
	Short:   "Start an interactive prompt",
	Long: `Read prompts line by line and print each response. Without --agent every
line is a single kernel generation; with --agent it runs the named agent.

Inside the prompt, "agent <name>" switches the agent, "agent" alone switches
back to plain generation, and "quit" or "exit" leaves.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	interactiveCmd.Flags().StringVarP(&interactiveAgent, "agent", "a", "", "Agent handling each line")
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	ek, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	agentName := interactiveAgent
	if agentName != "" {
		if _, ok := ek.Agent(agentName); !ok {
			return fmt.Errorf("%w: %s", echokernel.ErrAgentNotFound, agentName)
		}
	}

	printf(cmd, "EchoKernel interactive mode. Type 'help' for commands, 'quit' to exit.\n")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		printf(cmd, "%s> ", promptName(agentName))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch fields := strings.Fields(input); strings.ToLower(fields[0]) {
		case "quit", "exit", "q":
			printf(cmd, "Goodbye!\n")
			return nil
		case "help":
			showInteractiveHelp(cmd)
			continue
		case "agents":
			printf(cmd, "%s\n", strings.Join(ek.Agents(), ", "))
			continue
		case "agent":
			if len(fields) == 1 {
				agentName = ""
				continue
			}
			if _, ok := ek.Agent(fields[1]); !ok {
				printf(cmd, "Error: %v: %s\n", echokernel.ErrAgentNotFound, fields[1])
				continue
			}
			agentName = fields[1]
			continue
		}

		if ctx.Err() != nil {
			break
		}
		out, err := respond(ctx, ek, agentName, input)
		if err != nil {
			printf(cmd, "Error: %v\n", err)
			continue
		}
		printf(cmd, "%s\n", out)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	printf(cmd, "\n")
	return nil
}

func respond(ctx context.Context, ek *echokernel.EchoKernel, agentName, input string) (string, error) {
	if agentName == "" {
		gen, err := ek.Generate(ctx, input)
		if err != nil {
			return "", err
		}
		return gen.Text, nil
	}

	res, err := ek.Invoke(ctx, agentName, core.NewTask(input))
	if err != nil && res.Err == nil {
		return "", err
	}
	if !res.OK() {
		return res.Output, res.Err
	}
	return res.Output, nil
}

func promptName(agentName string) string {
	if agentName == "" {
		return "echokernel"
	}
	return agentName
}

func showInteractiveHelp(cmd *cobra.Command) {
	printf(cmd, `Commands:
  <text>          send text to the current agent, or generate when none is set
  agents          list the declared agents
  agent <name>    switch to agent <name>; "agent" alone returns to generation
  help            show this message
  quit | exit     leave
`)
}
