package openai

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// AzureConfig addresses an Azure OpenAI resource. Requests name the
// deployment through Options.Model.
type AzureConfig struct {
	Endpoint   string
	APIVersion string
	APIKey     string
}

// ClientOptions returns the request options routing a client to the resource.
func (c AzureConfig) ClientOptions() []option.RequestOption {
	opts := []option.RequestOption{azure.WithEndpoint(c.Endpoint, c.APIVersion)}
	if c.APIKey != "" {
		opts = append(opts, azure.WithAPIKey(c.APIKey))
	}
	return opts
}

// NewAzureModel creates a Model served by an Azure OpenAI deployment.
func NewAzureModel(cfg AzureConfig, deployment string, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	opts.Model = deployment
	for _, fn := range optFns {
		fn(&opts)
	}
	client := openai.NewClient(append(cfg.ClientOptions(), opts.ClientOptions...)...)
	return &Model{client: &client, opts: opts, provider: "azure"}
}
