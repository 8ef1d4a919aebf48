package recall

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/codsworth/internal/embedding"
	"github.com/nidhogg/codsworth/internal/engine"
	"github.com/nidhogg/codsworth/internal/vectorstore"
)

// CollMemories is the Qdrant collection holding embedded memory items.
const CollMemories = "memories"

// Index embeds stored memories and answers free-text recall queries over
// them. Exact-key lookups go through the repository; this path covers
// "what did I say about ..." questions where no key is known.
type Index struct {
	embedder embedding.Provider
	qdrant   *vectorstore.Client
	logger   *zap.Logger
}

// NewIndex creates a recall index.
func NewIndex(embedder embedding.Provider, qdrant *vectorstore.Client, logger *zap.Logger) *Index {
	return &Index{embedder: embedder, qdrant: qdrant, logger: logger}
}

// Init ensures the memories collection exists.
func (x *Index) Init(ctx context.Context) error {
	dim := uint64(x.embedder.Dimension())
	if dim == 0 {
		dim = 1024
	}
	if err := x.qdrant.EnsureCollection(ctx, CollMemories, dim); err != nil {
		return fmt.Errorf("init collection %s: %w", CollMemories, err)
	}
	return nil
}

// Store embeds one memory item under its category for later recall.
func (x *Index) Store(ctx context.Context, userID, category string, item *engine.MemoryItem) error {
	content := item.Key + ": " + item.Value
	vectors, err := x.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("empty embedding result")
	}

	payload := map[string]string{
		"user_id":    userID,
		"category":   category,
		"key":        item.Key,
		"value":      item.Value,
		"indexed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return x.qdrant.Upsert(ctx, CollMemories, uuid.New().String(), vectors[0], payload)
}

// Result is a single recall hit.
type Result struct {
	Category string
	Key      string
	Value    string
	Score    float32
}

// Query embeds the query text and returns the user's top-K most similar
// memories.
func (x *Index) Query(ctx context.Context, userID, query string, topK int) ([]Result, error) {
	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := x.qdrant.Search(ctx, CollMemories, vectors[0], uint64(topK), map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("recall search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Category: h.Payload["category"],
			Key:      h.Payload["key"],
			Value:    h.Payload["value"],
			Score:    h.Score,
		})
	}
	return results, nil
}

// Format renders recall results into a reply-friendly block.
func Format(results []Result) string {
	if len(results) == 0 {
		return "Nothing relevant in memory."
	}
	out := ""
	for i, r := range results {
		out += fmt.Sprintf("%d. [%s] %s: %s (%.2f)\n", i+1, r.Category, r.Key, r.Value, r.Score)
	}
	return out
}
