// Package kernel implements the central registry of EchoKernel: provider
// registration by capability category, the tool registry, and the bounded
// tool-call resolution loop behind GenerateText.
//
// A Kernel is constructed explicitly and passed to agents; there is no
// process-wide instance. Registration is an administrative operation and
// must not run concurrently with active generations. Everything else is safe
// for concurrent use.
//
// Each provider call runs under its own timeout. Failures are classified as
//
//	deadline exceeded         -> core.KindProviderTimeout
//	caller cancelled          -> core.KindCancelled
//	any other provider error  -> core.KindProviderUnavailable
//	no provider registered    -> core.KindProviderUnavailable
//
// so that agents can retry the transient ones.
package kernel
