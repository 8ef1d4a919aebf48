// Package embedding turns memory text into vectors for the recall index.
// Two providers are supported, an OpenAI-compatible HTTP endpoint and a
// local Ollama instance; which one runs is a configuration choice, the
// recall index only sees the Provider interface.
package embedding

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Provider generates vector embeddings for batches of memory text. Embed
// returns one vector per input in order; Dimension reports the vector width
// the recall collection must be created with.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config selects and parameterizes an embedding provider.
type Config struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// Defaults for the local path. The API path carries no model default
// because OpenAI-compatible endpoints disagree on model naming.
const (
	defaultLocalModel = "nomic-embed-text"
	defaultDimension  = 768
)

// httpClient is shared by both providers. Embedding runs on the message
// hot path after every store_memory, so calls must not hang open.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// dimCache pins the vector width observed on the first successful embed.
// The configured width applies until then; once a real vector has been
// seen, its width wins, since mismatched widths would poison the
// collection.
type dimCache struct {
	once sync.Once
	dim  int
}

func (c *dimCache) observe(vecs [][]float32) {
	if len(vecs) > 0 && len(vecs[0]) > 0 {
		c.once.Do(func() { c.dim = len(vecs[0]) })
	}
}

func (c *dimCache) value(configured int) int {
	if c.dim > 0 {
		return c.dim
	}
	if configured > 0 {
		return configured
	}
	return defaultDimension
}
