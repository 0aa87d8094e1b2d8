package code

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hupe1980/echokernel/tool"
)

// ToolName is the registered name of the code execution tool.
const ToolName = "execute_code"

// ExecuteCodeArgs are the arguments of the execute_code tool.
type ExecuteCodeArgs struct {
	Code     string `json:"code" jsonschema:"description=Complete program source to run"`
	Language string `json:"language,omitempty" jsonschema:"description=Language of the program (defaults to python)"`
}

// NewToolSpec exposes exec as the execute_code tool. The tool output is the
// JSON encoded Result.
func NewToolSpec(exec Executor) (tool.Spec, error) {
	desc := "Executes a program in a sandboxed subprocess and returns stdout, stderr, exit_status and success. " +
		"Supported languages: " + strings.Join(exec.Languages(), ", ") + "."

	return tool.NewTyped(ToolName, desc, func(ctx context.Context, in ExecuteCodeArgs) (string, error) {
		if strings.TrimSpace(in.Code) == "" {
			return "", tool.NewToolError(ToolName, "code must not be empty", tool.CodeValidation)
		}

		res, err := exec.Execute(ctx, in.Language, in.Code)
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(res)
		if err != nil {
			return "", err
		}
		return string(out), nil
	})
}
