// Package embedding turns text into dense vectors through an external
// embedding service. The engine depends only on the Embedder interface;
// this package ships an HTTP client for a self-hosted embedding API and
// an OpenAI-backed client.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Embedder produces embedding vectors for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	// It fails as a whole: either every text embeds or none do.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrEmptyInput is returned when the text to embed is empty.
var ErrEmptyInput = errors.New("embedding: empty input text")

// Error describes a failed call to the embedding service.
type Error struct {
	// Op is the operation that failed, "embed" or "embed_batch".
	Op string
	// Status is the HTTP status code, 0 when the request never
	// completed (timeout, connection refused).
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("embedding %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsError reports whether err originates from the embedding service.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
