// Package logging provides a minimal logging interface and adapters for EchoKernel.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the kernel, agents and runner use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - KernelLogger with contextual attributes and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	k := kernel.New(func(o *kernel.Options) { o.Logger = logger })
//
// Event names are dotted lowercase identifiers such as "kernel.generate.start"
// and "agent.loop.step"; details travel as key/value pairs.
package logging
