package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient embeds text through the OpenAI embeddings API. Used when
// no self-hosted embedding service is available.
type OpenAIClient struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

var _ Embedder = (*OpenAIClient)(nil)

// openAIDimension is the vector size of text-embedding-ada-002.
const openAIDimension = 1536

// NewOpenAIClient creates an Embedder backed by the OpenAI API.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return &OpenAIClient{
		client:    openai.NewClient(apiKey),
		model:     openai.AdaEmbeddingV2,
		dimension: openAIDimension,
	}, nil
}

// Dimension returns the vector size produced by the configured model.
func (c *OpenAIClient) Dimension() int { return c.dimension }

// Embed returns the vector for a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text in input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, "embed_batch", texts)
}

func (c *OpenAIClient) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &Error{Op: op, Err: ErrEmptyInput}
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &Error{
			Op:  op,
			Err: fmt.Errorf("got %d vectors for %d texts", len(resp.Data), len(texts)),
		}
	}

	// The API may reorder results; Index restores input order.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &Error{Op: op, Err: fmt.Errorf("vector index %d out of range", d.Index)}
		}
		if len(d.Embedding) == 0 {
			return nil, &Error{Op: op, Err: fmt.Errorf("service returned an empty embedding")}
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("missing vector for text %d", i)}
		}
	}
	return vectors, nil
}
