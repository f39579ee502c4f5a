// internal/providers/embedcache/cache.go
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/metrics"
	"support-drafts/internal/models"
)

const keyPrefix = "draft:embedding:"

// Embedder is the provider being decorated.
type Embedder interface {
	Embed(ctx context.Context, text string) (*models.Embedding, error)
}

// Store is the key-value surface of database.RedisClient used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Cache is a read-through embedding cache in redis. Cache failures never fail
// a lookup; they fall back to the provider.
type Cache struct {
	next   Embedder
	store  Store
	model  string
	ttl    time.Duration
	logger logger.Logger
}

func New(next Embedder, store Store, model string, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		next:  next,
		store: store,
		model: model,
		ttl:   ttl,
		logger: log.With(map[string]interface{}{
			"component": "embedding_cache",
		}),
	}
}

type cachedEmbedding struct {
	Vector     []float32 `json:"vector"`
	TokenCount int       `json:"tokenCount"`
}

func (c *Cache) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	key := c.key(text)

	val, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached cachedEmbedding
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil && len(cached.Vector) > 0 {
			metrics.EmbeddingCacheLookups.WithLabelValues("hit").Inc()
			return &models.Embedding{Vector: cached.Vector, TokenCount: cached.TokenCount}, nil
		}
		metrics.EmbeddingCacheLookups.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.EmbeddingCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.EmbeddingCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("embedding cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	emb, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cachedEmbedding{Vector: emb.Vector, TokenCount: emb.TokenCount})
	if err == nil {
		if setErr := c.store.Set(ctx, key, data, c.ttl); setErr != nil {
			c.logger.Warn("embedding cache write failed", map[string]interface{}{
				"error": setErr.Error(),
			})
		}
	}

	return emb, nil
}

// key hashes the text so customer content never appears in redis keys.
func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}
