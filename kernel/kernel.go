package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/logging"
	"github.com/hupe1980/echokernel/metrics"
	"github.com/hupe1980/echokernel/model"
	"github.com/hupe1980/echokernel/tool"
)

// Category is a provider capability category.
type Category string

const (
	TextGeneration Category = "text_generation"
	Embedding      Category = "embedding"
	Memory         Category = "memory"
)

// ParseCategory converts a configuration string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case TextGeneration, "text", "generation":
		return TextGeneration, nil
	case Embedding, "embeddings":
		return Embedding, nil
	case Memory, "store":
		return Memory, nil
	default:
		return "", fmt.Errorf("unknown provider category %q", s)
	}
}

// ToolErrorPolicy decides what happens when a tool call fails during a generation.
type ToolErrorPolicy int

const (
	// ToolErrorFail aborts the generation with the kind-tagged tool error.
	ToolErrorFail ToolErrorPolicy = iota
	// ToolErrorFeedback sends "Error: <msg>" back to the model as the tool result.
	ToolErrorFeedback
)

// ParseToolErrorPolicy converts "fail" or "feedback".
func ParseToolErrorPolicy(s string) (ToolErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return ToolErrorFail, nil
	case "feedback":
		return ToolErrorFeedback, nil
	default:
		return ToolErrorFail, fmt.Errorf("unknown tool error policy %q", s)
	}
}

// Options configure a Kernel.
type Options struct {
	// MaxIterations bounds the provider requests issued by one GenerateText call.
	MaxIterations int
	// ProviderTimeout applies to every individual port call. Zero disables it.
	ProviderTimeout time.Duration
	// ToolErrorPolicy is the default policy for failed tool calls.
	ToolErrorPolicy ToolErrorPolicy
	// MaxParallelTools limits concurrent tool executions of one response; 0 means no limit.
	MaxParallelTools int
	// Defaults applied to every GenerateText call before per-call options.
	Temperature *float64
	MaxTokens   int64

	Logger  logging.Logger
	Metrics metrics.Recorder
}

// Kernel holds provider and tool registrations and resolves tool calls.
type Kernel struct {
	mu       sync.RWMutex
	text     model.Model
	embedder core.Embedder
	store    core.MemoryStore

	tools *tool.Registry
	opts  Options

	logger  logging.Logger
	metrics metrics.Recorder
}

var _ core.Embedder = (*Kernel)(nil)

// New creates an empty Kernel.
func New(optFns ...func(o *Options)) *Kernel {
	opts := Options{
		MaxIterations:   10,
		ProviderTimeout: 60 * time.Second,
		ToolErrorPolicy: ToolErrorFail,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}

	logger := logging.OrNoOp(opts.Logger)

	return &Kernel{
		tools:   tool.NewRegistry(logger),
		opts:    opts,
		logger:  logger,
		metrics: metrics.OrNoop(opts.Metrics),
	}
}

// RegisterProvider stores provider under category, replacing any previous
// registration. The provider must implement the category's port.
func (k *Kernel) RegisterProvider(category Category, provider any) error {
	const op = "kernel.register_provider"
	if provider == nil {
		return core.NewError(core.KindValidation, op, "provider is nil", nil)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	switch category {
	case TextGeneration:
		m, ok := provider.(model.Model)
		if !ok {
			return core.NewError(core.KindValidation, op, fmt.Sprintf("%T does not implement model.Model", provider), nil)
		}
		k.text = m
	case Embedding:
		e, ok := provider.(core.Embedder)
		if !ok {
			return core.NewError(core.KindValidation, op, fmt.Sprintf("%T does not implement core.Embedder", provider), nil)
		}
		k.embedder = e
	case Memory:
		s, ok := provider.(core.MemoryStore)
		if !ok {
			return core.NewError(core.KindValidation, op, fmt.Sprintf("%T does not implement core.MemoryStore", provider), nil)
		}
		k.store = s
	default:
		return core.NewError(core.KindValidation, op, fmt.Sprintf("unknown category %q", category), nil)
	}

	k.logger.Debug("kernel.provider.registered", "category", string(category), "provider", fmt.Sprintf("%T", provider))
	return nil
}

// RegisterTool adds spec to the tool registry. Name collisions fail with core.ErrDuplicateTool.
func (k *Kernel) RegisterTool(spec tool.Spec) error {
	if err := k.tools.Register(spec); err != nil {
		return err
	}
	k.logger.Debug("kernel.tool.registered", "tool", spec.Name)
	return nil
}

// Tools exposes the tool registry.
func (k *Kernel) Tools() *tool.Registry { return k.tools }

// HasProvider reports whether a provider is registered under category.
func (k *Kernel) HasProvider(category Category) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	switch category {
	case TextGeneration:
		return k.text != nil
	case Embedding:
		return k.embedder != nil
	case Memory:
		return k.store != nil
	default:
		return false
	}
}

func (k *Kernel) textModel() model.Model {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.text
}

func (k *Kernel) embeddingProvider() core.Embedder {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.embedder
}

func (k *Kernel) memoryStore() core.MemoryStore {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.store
}

// Embed implements core.Embedder using the registered embedding provider.
func (k *Kernel) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "kernel.embed"
	e := k.embeddingProvider()
	if e == nil {
		return nil, unavailable(op, Embedding)
	}

	var vec []float32
	err := k.withTimeout(ctx, op, func(callCtx context.Context) error {
		var err error
		vec, err = e.Embed(callCtx, text)
		return err
	})
	return vec, err
}

// Memory returns a store view that resolves the registered memory provider
// at call time and applies the provider timeout to each call.
func (k *Kernel) Memory() core.MemoryStore { return &timedStore{k: k} }

// withTimeout runs fn under the provider timeout and classifies its error.
func (k *Kernel) withTimeout(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return core.Cancelled(op, err)
	}

	callCtx := ctx
	if k.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, k.opts.ProviderTimeout)
		defer cancel()
	}

	return classify(ctx, callCtx, op, fn(callCtx))
}

// classify maps a provider error onto the kernel error kinds. parent is the
// caller's context, callCtx the one carrying the provider timeout.
func classify(parent, callCtx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return core.NewError(core.KindProviderTimeout, op, "caller deadline exceeded", err)
		}
		return core.Cancelled(op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return core.NewError(core.KindProviderTimeout, op, "", err)
	}

	if errors.Is(err, core.ErrRecordNotFound) {
		return err
	}

	var ce *core.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case core.KindProviderTimeout, core.KindProviderUnavailable, core.KindBudgetExceeded, core.KindCancelled:
			return err
		}
	}

	return core.NewError(core.KindProviderUnavailable, op, "", err)
}

func unavailable(op string, category Category) error {
	return core.NewError(core.KindProviderUnavailable, op, fmt.Sprintf("no %s provider registered", category), nil)
}
