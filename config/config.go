// Package config loads echokernel configuration from defaults, an optional
// YAML file and ECHOKERNEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ECHOKERNEL_KERNEL_MAX_ITERATIONS.
const EnvPrefix = "ECHOKERNEL"

// DefaultAzureAPIVersion is the Azure OpenAI api-version used when none is configured.
const DefaultAzureAPIVersion = "2024-02-15-preview"

// Config holds all configuration for an echokernel instance.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Kernel    KernelConfig    `mapstructure:"kernel"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Agents    []AgentConfig   `mapstructure:"agents"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"` // text or json
	AddSource bool   `mapstructure:"add_source"`
}

// ProviderConfig selects the text generation provider.
type ProviderConfig struct {
	Type string `mapstructure:"type"` // mock, openai, azure or anthropic
	// Model is the deployment name for azure.
	Model string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
	// BaseURL is the resource endpoint for azure.
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"` // azure only
	// RequestsPerSecond throttles provider calls; 0 disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Type       string `mapstructure:"type"` // none, hash, openai or azure
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"` // azure only
	Dimensions int    `mapstructure:"dimensions"`
}

// MemoryConfig selects the memory store.
type MemoryConfig struct {
	Type       string `mapstructure:"type"` // none, inmemory, chromem or qdrant
	Collection string `mapstructure:"collection"`
	// Path persists the chromem database when set.
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	APIKey   string `mapstructure:"api_key"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// KernelConfig mirrors kernel.Options.
type KernelConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations"`
	ProviderTimeout  time.Duration `mapstructure:"provider_timeout"`
	ToolErrorPolicy  string        `mapstructure:"tool_error_policy"` // fail or feedback
	MaxParallelTools int           `mapstructure:"max_parallel_tools"`
	Temperature      *float64      `mapstructure:"temperature"`
	MaxTokens        int64         `mapstructure:"max_tokens"`
}

// RunnerConfig mirrors runner.Options.
type RunnerConfig struct {
	MaxConcurrentInvocations int `mapstructure:"max_concurrent_invocations"`
	MaxModelCalls            int `mapstructure:"max_model_calls"`
}

// ToolsConfig enables the built-in tools.
type ToolsConfig struct {
	Code   CodeToolConfig `mapstructure:"code"`
	Web    WebToolConfig  `mapstructure:"web"`
	Memory bool           `mapstructure:"memory"` // search_memory and save_memory
}

// CodeToolConfig configures execute_code.
type CodeToolConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLanguage string        `mapstructure:"default_language"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxOutputBytes  int           `mapstructure:"max_output_bytes"`
}

// WebToolConfig configures get_web_content and search_web.
type WebToolConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	// SearchProvider selects the search_web backend: duckduckgo, bing or google.
	SearchProvider string `mapstructure:"search_provider"`
	// SearchURL overrides the endpoint of the selected backend.
	SearchURL      string `mapstructure:"search_url"`
	SearchAPIKey   string `mapstructure:"search_api_key"`
	SearchEngineID string `mapstructure:"search_engine_id"` // google only
	MaxTextChars   int    `mapstructure:"max_text_chars"`
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Agent types accepted in AgentConfig.Type.
const (
	AgentModel            = "model"
	AgentTaskDecomposer   = "task_decomposer"
	AgentRouter           = "router"
	AgentSpecialistRouter = "specialist_router"
	AgentLoop             = "loop"
	AgentMemory           = "memory"
	AgentCollaborative    = "collaborative"
)

var agentTypes = []string{AgentModel, AgentTaskDecomposer, AgentRouter, AgentSpecialistRouter, AgentLoop, AgentMemory, AgentCollaborative}

// AgentConfig declares one agent of the topology. Composite agents refer to
// other agents by name; which fields apply depends on Type.
type AgentConfig struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Description string `mapstructure:"description"`
	Strict      bool   `mapstructure:"strict"`

	// model
	Instruction     string   `mapstructure:"instruction"`
	Tools           []string `mapstructure:"tools"`
	DisableTools    bool     `mapstructure:"disable_tools"`
	Temperature     *float64 `mapstructure:"temperature"`
	MaxTokens       int64    `mapstructure:"max_tokens"`
	MaxIterations   int      `mapstructure:"max_iterations"`
	ToolErrorPolicy string   `mapstructure:"tool_error_policy"`

	// task_decomposer
	Executor     string `mapstructure:"executor"`
	PlanPrompt   string `mapstructure:"plan_prompt"`
	ChainResults bool   `mapstructure:"chain_results"`
	MaxSubtasks  int    `mapstructure:"max_subtasks"`

	// router, specialist_router and collaborative (exactly two)
	Agents []string `mapstructure:"agents"`
	// router
	Prompt  string `mapstructure:"prompt"`
	Default string `mapstructure:"default"`
	// specialist_router
	RetryCount       int    `mapstructure:"retry_count"`
	ExhaustionPolicy string `mapstructure:"exhaustion_policy"` // low_confidence or fail
	// Validator selects the output check: non_empty, contains or judge.
	Validator string `mapstructure:"validator"`
	// ValidatorTerms are the required terms of the contains validator.
	ValidatorTerms []string `mapstructure:"validator_terms"`
	// ValidatorCriteria is passed to the judge validator.
	ValidatorCriteria string `mapstructure:"validator_criteria"`

	// loop and memory
	Inner string `mapstructure:"inner"`
	// loop
	MaxSteps   int           `mapstructure:"max_steps"`
	StopPhrase string        `mapstructure:"stop_phrase"`
	Interval   time.Duration `mapstructure:"interval"`
	// memory
	TopK     int     `mapstructure:"top_k"`
	MinScore float64 `mapstructure:"min_score"`
	Persist  bool    `mapstructure:"persist"`

	// collaborative
	RoleA      string `mapstructure:"role_a"`
	RoleB      string `mapstructure:"role_b"`
	MaxTurns   int    `mapstructure:"max_turns"`
	Transcript bool   `mapstructure:"transcript"`

	// TransientRetries overrides the retry count for transient provider errors.
	TransientRetries *int `mapstructure:"transient_retries"`
}

// Dependencies returns the names of the agents this agent delegates to.
func (a AgentConfig) Dependencies() []string {
	var deps []string
	switch a.Type {
	case AgentTaskDecomposer:
		deps = append(deps, a.Executor)
	case AgentRouter, AgentSpecialistRouter, AgentCollaborative:
		deps = append(deps, a.Agents...)
	case AgentLoop, AgentMemory:
		deps = append(deps, a.Inner)
	}
	return deps
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)

	v.SetDefault("provider.type", "mock")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_version", DefaultAzureAPIVersion)
	v.SetDefault("provider.requests_per_second", 0)
	v.SetDefault("provider.burst", 1)

	v.SetDefault("embedding.type", "hash")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_version", DefaultAzureAPIVersion)
	v.SetDefault("embedding.dimensions", 256)

	v.SetDefault("memory.type", "inmemory")
	v.SetDefault("memory.collection", "echokernel")
	v.SetDefault("memory.path", "")
	v.SetDefault("memory.compress", false)
	v.SetDefault("memory.host", "localhost")
	v.SetDefault("memory.port", 6334)
	v.SetDefault("memory.api_key", "")
	v.SetDefault("memory.use_tls", false)

	v.SetDefault("kernel.max_iterations", 10)
	v.SetDefault("kernel.provider_timeout", 60*time.Second)
	v.SetDefault("kernel.tool_error_policy", "fail")
	v.SetDefault("kernel.max_parallel_tools", 0)
	v.SetDefault("kernel.max_tokens", 0)

	v.SetDefault("runner.max_concurrent_invocations", 10)
	v.SetDefault("runner.max_model_calls", 100)

	v.SetDefault("tools.memory", false)
	v.SetDefault("tools.code.enabled", false)
	v.SetDefault("tools.code.default_language", "python")
	v.SetDefault("tools.code.timeout", 30*time.Second)
	v.SetDefault("tools.code.max_output_bytes", 64*1024)
	v.SetDefault("tools.web.enabled", false)
	v.SetDefault("tools.web.requests_per_second", 1.0)
	v.SetDefault("tools.web.timeout", 30*time.Second)
	v.SetDefault("tools.web.search_provider", "duckduckgo")
	v.SetDefault("tools.web.search_url", "")
	v.SetDefault("tools.web.search_api_key", "")
	v.SetDefault("tools.web.search_engine_id", "")
	v.SetDefault("tools.web.max_text_chars", 20000)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Load reads configuration. Precedence (highest to lowest):
//  1. ECHOKERNEL_* environment variables (ECHOKERNEL_PROVIDER_TYPE, ...)
//  2. the YAML file at path, when path is not empty
//  3. built-in defaults
//
// Empty provider and embedding API keys fall back to OPENAI_API_KEY,
// AZURE_OPENAI_API_KEY or ANTHROPIC_API_KEY, and an empty azure endpoint to
// AZURE_OPENAI_ENDPOINT. Keyed search backends read BING_SEARCH_API_KEY or
// GOOGLE_API_KEY and GOOGLE_SEARCH_ENGINE_ID. ${VAR} references in API keys
// are expanded.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.expand()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) expand() {
	c.Provider.APIKey = os.ExpandEnv(c.Provider.APIKey)
	c.Embedding.APIKey = os.ExpandEnv(c.Embedding.APIKey)
	c.Memory.APIKey = os.ExpandEnv(c.Memory.APIKey)
	c.Tools.Web.SearchAPIKey = os.ExpandEnv(c.Tools.Web.SearchAPIKey)

	if c.Provider.APIKey == "" {
		c.Provider.APIKey = ProviderAPIKey(c.Provider.Type)
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = ProviderAPIKey(c.Embedding.Type)
	}
	if c.Provider.Type == "azure" && c.Provider.BaseURL == "" {
		c.Provider.BaseURL = azureEndpoint()
	}
	if c.Embedding.Type == "azure" && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = azureEndpoint()
	}

	web := &c.Tools.Web
	switch web.SearchProvider {
	case "bing":
		if web.SearchAPIKey == "" {
			web.SearchAPIKey = os.Getenv("BING_SEARCH_API_KEY")
		}
	case "google":
		if web.SearchAPIKey == "" {
			web.SearchAPIKey = os.Getenv("GOOGLE_API_KEY")
		}
		if web.SearchEngineID == "" {
			web.SearchEngineID = os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
		}
	}
}

func azureEndpoint() string {
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		return v
	}
	return os.Getenv("AZURE_OPENAI_API_BASE")
}

// ProviderAPIKey returns the conventional environment API key of a provider type.
func ProviderAPIKey(providerType string) string {
	switch providerType {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "azure":
		return os.Getenv("AZURE_OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// Validate checks enumerations and the agent topology declarations. Cycles
// are detected when the topology is built.
func (c *Config) Validate() error {
	var errs []error

	check := func(field, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: unsupported value %q (allowed: %s)", field, value, strings.Join(allowed, ", ")))
		}
	}

	check("logging.format", c.Logging.Format, "text", "json")
	check("provider.type", c.Provider.Type, "mock", "openai", "azure", "anthropic")
	check("embedding.type", c.Embedding.Type, "none", "hash", "openai", "azure")
	check("memory.type", c.Memory.Type, "none", "inmemory", "chromem", "qdrant")
	check("kernel.tool_error_policy", c.Kernel.ToolErrorPolicy, "fail", "feedback")

	if c.Provider.Type == "azure" {
		errs = append(errs, azureErrors("provider", c.Provider.BaseURL, c.Provider.Model, c.Provider.APIVersion)...)
	}
	if c.Embedding.Type == "azure" {
		errs = append(errs, azureErrors("embedding", c.Embedding.BaseURL, c.Embedding.Model, c.Embedding.APIVersion)...)
	}
	if c.Tools.Web.Enabled {
		web := c.Tools.Web
		check("tools.web.search_provider", web.SearchProvider, "duckduckgo", "bing", "google")
		if (web.SearchProvider == "bing" || web.SearchProvider == "google") && web.SearchAPIKey == "" {
			errs = append(errs, fmt.Errorf("tools.web.search_api_key is required by the %s backend", web.SearchProvider))
		}
		if web.SearchProvider == "google" && web.SearchEngineID == "" {
			errs = append(errs, errors.New("tools.web.search_engine_id is required by the google backend"))
		}
	}

	if c.Memory.Type != "none" && c.Embedding.Type == "none" {
		errs = append(errs, errors.New("memory requires an embedding provider"))
	}
	if c.Tools.Memory && c.Memory.Type == "none" {
		errs = append(errs, errors.New("tools.memory requires a memory store"))
	}

	names := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", field))
			continue
		}
		field = fmt.Sprintf("agents[%s]", a.Name)
		if names[a.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate agent name", field))
		}
		names[a.Name] = true

		check(field+".type", a.Type, agentTypes...)
		if a.ToolErrorPolicy != "" {
			check(field+".tool_error_policy", a.ToolErrorPolicy, "fail", "feedback")
		}
		if a.ExhaustionPolicy != "" {
			check(field+".exhaustion_policy", a.ExhaustionPolicy, "low_confidence", "fail")
		}
		if a.Validator != "" {
			check(field+".validator", a.Validator, "non_empty", "contains", "judge")
			if a.Validator == "contains" && len(a.ValidatorTerms) == 0 {
				errs = append(errs, fmt.Errorf("%s: validator_terms are required by the contains validator", field))
			}
		}

		switch a.Type {
		case AgentTaskDecomposer:
			if a.Executor == "" {
				errs = append(errs, fmt.Errorf("%s: executor is required", field))
			}
		case AgentRouter, AgentSpecialistRouter:
			if len(a.Agents) == 0 {
				errs = append(errs, fmt.Errorf("%s: at least one agent is required", field))
			}
		case AgentCollaborative:
			if len(a.Agents) != 2 {
				errs = append(errs, fmt.Errorf("%s: exactly two agents are required", field))
			}
		case AgentLoop, AgentMemory:
			if a.Inner == "" {
				errs = append(errs, fmt.Errorf("%s: inner is required", field))
			}
		}
		if a.Type == AgentMemory && c.Memory.Type == "none" {
			errs = append(errs, fmt.Errorf("%s: memory agent requires a memory store", field))
		}
	}

	for _, a := range c.Agents {
		for _, dep := range a.Dependencies() {
			if dep != "" && !names[dep] {
				errs = append(errs, fmt.Errorf("agents[%s]: unknown agent %q", a.Name, dep))
			}
		}
	}

	return errors.Join(errs...)
}

func azureErrors(section, endpoint, deployment, version string) []error {
	var errs []error
	if endpoint == "" {
		errs = append(errs, fmt.Errorf("%s.base_url: azure endpoint is required", section))
	}
	if deployment == "" {
		errs = append(errs, fmt.Errorf("%s.model: azure deployment name is required", section))
	}
	if version == "" {
		errs = append(errs, fmt.Errorf("%s.api_version: azure api version is required", section))
	}
	return errs
}
