// Package echokernel wires a kernel, its providers, memory, tools, a runner
// and a declarative agent topology from a config.Config. Most applications
// interact with this package by:
//  1. Loading a config.Config (config.Load) or starting from config.Default()
//  2. Creating an EchoKernel via New(), optionally overriding providers
//  3. Invoking agents by name (Invoke, Start) or generating text directly
//
// Agents declared in the config may refer to each other by name. They are
// built in dependency order and reference cycles are rejected.
package echokernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"

	"github.com/hupe1980/echokernel/code"
	"github.com/hupe1980/echokernel/config"
	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/embedding"
	openaiemb "github.com/hupe1980/echokernel/embedding/openai"
	"github.com/hupe1980/echokernel/kernel"
	"github.com/hupe1980/echokernel/logging"
	"github.com/hupe1980/echokernel/memory"
	"github.com/hupe1980/echokernel/metrics"
	"github.com/hupe1980/echokernel/model"
	"github.com/hupe1980/echokernel/model/anthropic"
	openaimodel "github.com/hupe1980/echokernel/model/openai"
	"github.com/hupe1980/echokernel/runner"
	"github.com/hupe1980/echokernel/tool"
	"github.com/hupe1980/echokernel/tool/web"
)

// ErrAgentNotFound is returned for unknown agent names.
var ErrAgentNotFound = errors.New("agent not found")

// Options overrides parts of the configuration with ready-made components.
type Options struct {
	// Logger replaces the logger built from cfg.Logging.
	Logger logging.Logger
	// Metrics replaces the recorder built from cfg.Metrics.
	Metrics metrics.Recorder
	// Model replaces the text generation provider built from cfg.Provider.
	Model model.Model
	// Embedder replaces the embedding provider built from cfg.Embedding.
	Embedder core.Embedder
	// MemoryStore replaces the store built from cfg.Memory.
	MemoryStore core.MemoryStore
	// Tools are registered in addition to the configured built-in tools.
	Tools []tool.Spec
}

// EchoKernel is the high-level facade aggregating kernel, runner and agents.
type EchoKernel struct {
	cfg    *config.Config
	kernel *kernel.Kernel
	runner *runner.Runner
	memory *memory.TextMemory
	logger logging.Logger

	gatherer prometheus.Gatherer
	closers  []io.Closer

	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string
}

// New creates an EchoKernel from cfg. A nil cfg uses config.Default().
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*EchoKernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ek := &EchoKernel{
		cfg:    cfg,
		agents: make(map[string]core.Agent),
	}

	logger, err := newLogger(cfg.Logging, opts.Logger)
	if err != nil {
		return nil, err
	}
	ek.logger = logger

	rec := opts.Metrics
	if rec == nil && cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		rec = metrics.NewPrometheus(reg)
		ek.gatherer = reg
	}

	toolPolicy, err := kernel.ParseToolErrorPolicy(cfg.Kernel.ToolErrorPolicy)
	if err != nil {
		return nil, err
	}

	ek.kernel = kernel.New(func(o *kernel.Options) {
		o.MaxIterations = cfg.Kernel.MaxIterations
		o.ProviderTimeout = cfg.Kernel.ProviderTimeout
		o.ToolErrorPolicy = toolPolicy
		o.MaxParallelTools = cfg.Kernel.MaxParallelTools
		o.Temperature = cfg.Kernel.Temperature
		o.MaxTokens = cfg.Kernel.MaxTokens
		o.Logger = component(logger, "kernel")
		o.Metrics = rec
	})

	if err := ek.registerProviders(ctx, opts); err != nil {
		_ = ek.Close()
		return nil, err
	}

	if err := ek.registerTools(opts.Tools); err != nil {
		_ = ek.Close()
		return nil, err
	}

	ek.runner = runner.New(func(o *runner.Options) {
		o.MaxConcurrentInvocations = cfg.Runner.MaxConcurrentInvocations
		o.MaxModelCalls = cfg.Runner.MaxModelCalls
		o.Logger = component(logger, "runner")
		o.Metrics = rec
	})

	if err := ek.buildAgents(cfg.Agents); err != nil {
		_ = ek.Close()
		return nil, err
	}

	logger.Info("echokernel.ready",
		"provider", cfg.Provider.Type,
		"embedding", cfg.Embedding.Type,
		"memory", cfg.Memory.Type,
		"tools", ek.kernel.Tools().Len(),
		"agents", len(ek.order),
	)

	return ek, nil
}

func newLogger(cfg config.LoggingConfig, override logging.Logger) (logging.Logger, error) {
	if override != nil {
		return override, nil
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewSlogLogger(level, cfg.Format, cfg.AddSource), nil
}

// component tags l with a component name when it supports it.
func component(l logging.Logger, name string) logging.Logger {
	if kl, ok := l.(*logging.KernelLogger); ok {
		return kl.WithComponent(name)
	}
	return l
}

func (ek *EchoKernel) registerProviders(ctx context.Context, opts Options) error {
	m := opts.Model
	if m == nil {
		var err error
		if m, err = newModel(ek.cfg.Provider); err != nil {
			return err
		}
	}
	if err := ek.kernel.RegisterProvider(kernel.TextGeneration, m); err != nil {
		return err
	}

	emb := opts.Embedder
	if emb == nil {
		emb = newEmbedder(ek.cfg.Embedding)
	}
	if emb != nil {
		if err := ek.kernel.RegisterProvider(kernel.Embedding, emb); err != nil {
			return err
		}
	}

	store := opts.MemoryStore
	if store == nil {
		var err error
		if store, err = ek.newStore(ctx); err != nil {
			return err
		}
	}
	if store != nil {
		if err := ek.kernel.RegisterProvider(kernel.Memory, store); err != nil {
			return err
		}
		if emb != nil {
			ek.memory = memory.NewTextMemory(ek.kernel, ek.kernel.Memory())
		}
	}

	return nil
}

func newModel(cfg config.ProviderConfig) (model.Model, error) {
	var m model.Model

	switch cfg.Type {
	case "mock":
		m = model.NewMockModel(orDefault(cfg.Model, "mock"), "mock")
	case "openai":
		var clientOpts []option.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
		}
		m = openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.ClientOptions = clientOpts
		})
	case "azure":
		m = openaimodel.NewAzureModel(openaimodel.AzureConfig{
			Endpoint:   cfg.BaseURL,
			APIVersion: cfg.APIVersion,
			APIKey:     cfg.APIKey,
		}, cfg.Model)
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.APIKey = cfg.APIKey
			if cfg.BaseURL != "" {
				o.ClientOptions = append(o.ClientOptions, anthropicopt.WithBaseURL(cfg.BaseURL))
			}
		})
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}

	return model.NewRateLimited(m, cfg.RequestsPerSecond, cfg.Burst), nil
}

func newEmbedder(cfg config.EmbeddingConfig) core.Embedder {
	switch cfg.Type {
	case "hash":
		return embedding.NewHashEmbedder(cfg.Dimensions)
	case "openai":
		var clientOpts []option.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
		}
		return openaiemb.NewEmbedder(func(o *openaiemb.Options) {
			if cfg.Model != "" {
				o.Model = openaisdk.EmbeddingModel(cfg.Model)
			}
			o.Dimensions = int64(cfg.Dimensions)
			o.ClientOptions = clientOpts
		})
	case "azure":
		return openaiemb.NewAzureEmbedder(cfg.BaseURL, cfg.APIVersion, cfg.APIKey, cfg.Model, func(o *openaiemb.Options) {
			o.Dimensions = int64(cfg.Dimensions)
		})
	default:
		return nil
	}
}

func (ek *EchoKernel) newStore(ctx context.Context) (core.MemoryStore, error) {
	cfg := ek.cfg.Memory

	switch cfg.Type {
	case "inmemory":
		return memory.NewInMemoryStore(), nil
	case "chromem":
		return memory.NewChromemStore(func(o *memory.ChromemOptions) {
			o.Collection = cfg.Collection
			o.PersistPath = cfg.Path
			o.Compress = cfg.Compress
		})
	case "qdrant":
		dims := ek.cfg.Embedding.Dimensions
		if dims <= 0 {
			vec, err := ek.kernel.Embed(ctx, "dimension check")
			if err != nil {
				return nil, fmt.Errorf("detect embedding dimensions: %w", err)
			}
			dims = len(vec)
		}
		store, err := memory.NewQdrantStore(func(o *memory.QdrantOptions) {
			o.Host = cfg.Host
			o.Port = cfg.Port
			o.APIKey = cfg.APIKey
			o.UseTLS = cfg.UseTLS
			o.Collection = cfg.Collection
			o.Dimensions = dims
		})
		if err != nil {
			return nil, err
		}
		ek.closers = append(ek.closers, store)
		return store, nil
	default:
		return nil, nil
	}
}

func (ek *EchoKernel) registerTools(extra []tool.Spec) error {
	var specs []tool.Spec
	tc := ek.cfg.Tools

	if tc.Code.Enabled {
		exec := code.NewProcessExecutor(func(o *code.ProcessOptions) {
			if tc.Code.DefaultLanguage != "" {
				o.DefaultLanguage = tc.Code.DefaultLanguage
			}
			if tc.Code.Timeout > 0 {
				o.Timeout = tc.Code.Timeout
			}
			if tc.Code.MaxOutputBytes > 0 {
				o.MaxOutputBytes = tc.Code.MaxOutputBytes
			}
			o.Logger = component(ek.logger, "code")
		})
		spec, err := code.NewToolSpec(exec)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	if tc.Web.Enabled {
		client := web.NewClient(func(o *web.Options) {
			o.RequestsPerSecond = tc.Web.RequestsPerSecond
			if tc.Web.Timeout > 0 {
				o.HTTPClient = &http.Client{Timeout: tc.Web.Timeout}
			}
			if tc.Web.SearchURL != "" && tc.Web.SearchProvider == "duckduckgo" {
				o.SearchURL = tc.Web.SearchURL
			}
			if tc.Web.MaxTextChars > 0 {
				o.MaxTextChars = tc.Web.MaxTextChars
			}
			o.Logger = component(ek.logger, "web")
		})
		var searcher web.Searcher
		switch tc.Web.SearchProvider {
		case "bing":
			searcher = web.NewBingSearcher(client, tc.Web.SearchAPIKey, tc.Web.SearchURL)
		case "google":
			searcher = web.NewGoogleSearcher(client, tc.Web.SearchAPIKey, tc.Web.SearchEngineID, tc.Web.SearchURL)
		}
		webSpecs, err := web.Tools(client, searcher)
		if err != nil {
			return err
		}
		specs = append(specs, webSpecs...)
	}

	if tc.Memory {
		if ek.memory == nil {
			return errors.New("memory tools require an embedding provider and a memory store")
		}
		search, err := memory.NewSearchTool(ek.memory)
		if err != nil {
			return err
		}
		save, err := memory.NewSaveTool(ek.memory)
		if err != nil {
			return err
		}
		specs = append(specs, search, save)
	}

	for _, s := range append(specs, extra...) {
		if err := ek.kernel.RegisterTool(s); err != nil {
			return fmt.Errorf("register tool %s: %w", s.Name, err)
		}
	}
	return nil
}

// Kernel returns the underlying kernel.
func (ek *EchoKernel) Kernel() *kernel.Kernel { return ek.kernel }

// Runner returns the runner used by Invoke and Start.
func (ek *EchoKernel) Runner() *runner.Runner { return ek.runner }

// Memory returns the text memory, or nil when no embedder or store is configured.
func (ek *EchoKernel) Memory() *memory.TextMemory { return ek.memory }

// Config returns the configuration the instance was built from.
func (ek *EchoKernel) Config() *config.Config { return ek.cfg }

// Logger returns the instance logger.
func (ek *EchoKernel) Logger() logging.Logger { return ek.logger }

// Gatherer returns the metrics registry when metrics are enabled by config.
func (ek *EchoKernel) Gatherer() prometheus.Gatherer { return ek.gatherer }

// RegisterAgent adds a ready-made agent. Names must be unique.
func (ek *EchoKernel) RegisterAgent(a core.Agent) error {
	ek.mu.Lock()
	defer ek.mu.Unlock()

	if _, exists := ek.agents[a.Name()]; exists {
		return fmt.Errorf("agent %q already registered", a.Name())
	}
	ek.agents[a.Name()] = a
	ek.order = append(ek.order, a.Name())
	return nil
}

// Agent returns the agent registered under name.
func (ek *EchoKernel) Agent(name string) (core.Agent, bool) {
	ek.mu.RLock()
	defer ek.mu.RUnlock()
	a, ok := ek.agents[name]
	return a, ok
}

// Agents returns the agent names in registration order.
func (ek *EchoKernel) Agents() []string {
	ek.mu.RLock()
	defer ek.mu.RUnlock()
	return slices.Clone(ek.order)
}

func (ek *EchoKernel) lookup(name string) (core.Agent, error) {
	a, ok := ek.Agent(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// Invoke runs the named agent and blocks until it finishes.
func (ek *EchoKernel) Invoke(ctx context.Context, agentName string, task core.Task) (core.Result, error) {
	a, err := ek.lookup(agentName)
	if err != nil {
		return core.Result{}, err
	}
	return ek.runner.Invoke(ctx, a, task)
}

// Start runs the named agent asynchronously.
func (ek *EchoKernel) Start(ctx context.Context, agentName string, task core.Task) (string, <-chan runner.Run, error) {
	a, err := ek.lookup(agentName)
	if err != nil {
		return "", nil, err
	}
	id, ch := ek.runner.Start(ctx, a, task)
	return id, ch, nil
}

// Cancel stops a run started with Start.
func (ek *EchoKernel) Cancel(runID string) error { return ek.runner.Cancel(runID) }

// Generate runs a single kernel generation under the runner's model call budget.
func (ek *EchoKernel) Generate(ctx context.Context, prompt string, optFns ...func(o *kernel.GenerateOptions)) (kernel.Generation, error) {
	if ek.cfg.Runner.MaxModelCalls > 0 && core.ModelLimiterFrom(ctx) == nil {
		ctx = core.WithModelLimiter(ctx, core.NewModelLimiter(ek.cfg.Runner.MaxModelCalls))
	}
	return ek.kernel.GenerateText(ctx, prompt, optFns...)
}

// Close releases provider connections.
func (ek *EchoKernel) Close() error {
	var errs []error
	for _, c := range ek.closers {
		errs = append(errs, c.Close())
	}
	ek.closers = nil
	return errors.Join(errs...)
}
