package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ryanjzheng/Le-Coach/internal/redis"
)

const cacheKey = "credentials:generation-token"

// DefaultCacheTTL bounds how long a fetched credential may be reused.
const DefaultCacheTTL = 30 * time.Minute

// tokenCache is the subset of the redis wrapper the cache needs.
type tokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Cached decorates a provider with a redis-backed cache. Cached values are
// AES-GCM encrypted at rest when LECOACH_TOKEN_KEY is set; without a key the
// cache is skipped entirely. Fallback tokens are never cached.
type Cached struct {
	inner  Provider
	cache  tokenCache
	cipher *tokenCipher
	ttl    time.Duration
}

func NewCached(inner Provider, cache *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cipher, err := newTokenCipherFromEnv()
	if err != nil {
		log.Printf("credential cache disabled: %v", err)
		cipher = nil
	}
	c := &Cached{inner: inner, cipher: cipher, ttl: ttl}
	if cache != nil {
		c.cache = cache
	}
	return c
}

func (c *Cached) Fetch(ctx context.Context) (Token, error) {
	if tok, ok := c.lookup(ctx); ok {
		return tok, nil
	}
	tok, err := c.inner.Fetch(ctx)
	if err != nil {
		return Token{}, err
	}
	if tok.Source != SourceFallback {
		c.store(ctx, tok)
	}
	return tok, nil
}

func (c *Cached) lookup(ctx context.Context) (Token, bool) {
	if c.cache == nil || c.cipher == nil {
		return Token{}, false
	}
	raw, err := c.cache.Get(ctx, cacheKey)
	if errors.Is(err, redis.ErrCacheMiss) {
		return Token{}, false
	}
	if err != nil {
		log.Printf("credential cache read: %v", err)
		return Token{}, false
	}
	plain, err := c.cipher.Decrypt(raw)
	if err != nil {
		// Stale or tampered entry; drop it and fetch fresh.
		_ = c.cache.Del(ctx, cacheKey)
		return Token{}, false
	}
	var tok Token
	if err := json.Unmarshal([]byte(plain), &tok); err != nil {
		_ = c.cache.Del(ctx, cacheKey)
		return Token{}, false
	}
	tok.Source = SourceCache
	return tok, true
}

func (c *Cached) store(ctx context.Context, tok Token) {
	if c.cache == nil || c.cipher == nil {
		return
	}
	plain, err := json.Marshal(tok)
	if err != nil {
		return
	}
	sealed, err := c.cipher.Encrypt(string(plain))
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey, sealed, c.ttl); err != nil {
		log.Printf("cache credential: %v", err)
	}
}
