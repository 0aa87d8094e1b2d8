// Package openai implements core.Embedder with the OpenAI Embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/echokernel/core"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// Options configure the embedder.
type Options struct {
	Model openai.EmbeddingModel
	// Dimensions optionally shortens the embedding (text-embedding-3 models only).
	Dimensions    int64
	ClientOptions []option.RequestOption
}

// Embedder calls the OpenAI Embeddings API.
type Embedder struct {
	client *openai.Client
	opts   Options
}

var _ core.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder with its own client.
func NewEmbedder(optFns ...func(o *Options)) *Embedder {
	opts := Options{Model: openai.EmbeddingModelTextEmbedding3Small}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := openai.NewClient(opts.ClientOptions...)
	return &Embedder{client: &client, opts: opts}
}

// NewEmbedderFromClient creates an Embedder sharing an existing client.
func NewEmbedderFromClient(client *openai.Client, optFns ...func(o *Options)) *Embedder {
	opts := Options{Model: openai.EmbeddingModelTextEmbedding3Small}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{client: client, opts: opts}
}

// NewAzureEmbedder creates an Embedder served by the Azure OpenAI embedding
// deployment at endpoint.
func NewAzureEmbedder(endpoint, apiVersion, apiKey, deployment string, optFns ...func(o *Options)) *Embedder {
	opts := Options{Model: openai.EmbeddingModel(deployment)}
	for _, fn := range optFns {
		fn(&opts)
	}
	clientOpts := []option.RequestOption{azure.WithEndpoint(endpoint, apiVersion)}
	if apiKey != "" {
		clientOpts = append(clientOpts, azure.WithAPIKey(apiKey))
	}
	client := openai.NewClient(append(clientOpts, opts.ClientOptions...)...)
	return &Embedder{client: &client, opts: opts}
}

// Embed implements core.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: e.opts.Model,
	}
	if e.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(e.opts.Dimensions)
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}
