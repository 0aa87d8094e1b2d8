package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/echokernel/core"
)

var (
	runAgent    string
	runTimeout  time.Duration
	runMetadata []string
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a declared agent on a task",
	Long: `Run the named agent on the given task and print its output.

Metadata is attached with repeated --meta key=value flags. The exit status
is non-zero when the run does not succeed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runAgent, "agent", "a", "", "Agent name (required)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort the run after this duration")
	runCmd.Flags().StringArrayVar(&runMetadata, "meta", nil, "Task metadata as key=value")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
	_ = runCmd.MarkFlagRequired("agent")
}

type runOutput struct {
	Agent         string `json:"agent"`
	Status        string `json:"status"`
	Output        string `json:"output"`
	Steps         int    `json:"steps"`
	LowConfidence bool   `json:"low_confidence,omitempty"`
	Incomplete    bool   `json:"incomplete,omitempty"`
	Error         string `json:"error,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if runTimeout > 0 {
		var c context.CancelFunc
		ctx, c = context.WithTimeout(ctx, runTimeout)
		defer c()
	}

	task := core.NewTask(strings.Join(args, " "))
	for _, kv := range runMetadata {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid metadata %q (want key=value)", kv)
		}
		task = task.WithMetadata(k, v)
	}

	ek, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := ek.Invoke(ctx, runAgent, task)
	if err != nil && res.Err == nil {
		return err
	}

	if runJSON {
		out := runOutput{
			Agent:         runAgent,
			Status:        res.Status.String(),
			Output:        res.Output,
			Steps:         res.Steps,
			LowConfidence: res.LowConfidence,
			Incomplete:    res.Incomplete,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else if res.Output != "" {
		printf(cmd, "%s\n", res.Output)
	}

	if !res.OK() {
		if res.Err == nil {
			return fmt.Errorf("agent %s: %s", runAgent, res.Status)
		}
		return fmt.Errorf("agent %s: %s: %w", runAgent, res.Status, res.Err)
	}
	return nil
}
