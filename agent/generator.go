package agent

import (
	"context"

	"github.com/hupe1980/echokernel/kernel"
)

// Generator is the text generation entry point agents depend on.
// *kernel.Kernel implements it.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, optFns ...func(o *kernel.GenerateOptions)) (kernel.Generation, error)
}

var _ Generator = (*kernel.Kernel)(nil)

// plainText disables tools for classification and planning requests.
func plainText(o *kernel.GenerateOptions) { o.DisableTools = true }
