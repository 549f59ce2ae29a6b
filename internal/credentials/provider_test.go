package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ryanjzheng/Le-Coach/internal/redis"
)

type fakeCache struct {
	data   map[string]string
	getErr error
	sets   int
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.sets++
	f.data[key] = value.(string)
	return nil
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func newTestCipher(t *testing.T) *tokenCipher {
	t.Helper()
	t.Setenv(tokenKeyEnv, strings.Repeat("k", 32))
	cipher, err := newTokenCipherFromEnv()
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return cipher
}

func TestStaticProvider(t *testing.T) {
	tok, err := NewStatic("sk-test").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Value != "sk-test" || tok.Source != SourceStatic {
		t.Fatalf("unexpected token: %#v", tok)
	}
}

func TestStaticProviderEmpty(t *testing.T) {
	if _, err := NewStatic("  ").Fetch(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("LECOACH_TEST_TOKEN", "sk-from-env")

	tok, err := NewEnv("LECOACH_TEST_TOKEN").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Value != "sk-from-env" || tok.Source != SourceEnv {
		t.Fatalf("unexpected token: %#v", tok)
	}
}

func TestEnvProviderMissing(t *testing.T) {
	if _, err := NewEnv("LECOACH_TEST_TOKEN_UNSET").Fetch(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestFallbackIsExplicitAndVisible(t *testing.T) {
	// Without the wrapper, a failed fetch stays an error.
	inner := NewStatic("")
	if _, err := inner.Fetch(context.Background()); err == nil {
		t.Fatal("expected error from empty provider")
	}

	tok, err := WithFallback(inner, "dummy").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fallback fetch: %v", err)
	}
	if tok.Value != "dummy" {
		t.Fatalf("expected fallback value, got %q", tok.Value)
	}
	if tok.Source != SourceFallback {
		t.Fatalf("fallback must be visible via Source, got %q", tok.Source)
	}
}

func TestFallbackPassesThroughSuccess(t *testing.T) {
	tok, err := WithFallback(NewStatic("real"), "dummy").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Value != "real" || tok.Source != SourceStatic {
		t.Fatalf("wrapper must not rewrite successful fetches: %#v", tok)
	}
}

func TestCachedWithoutRedisDelegates(t *testing.T) {
	c := NewCached(NewStatic("sk-test"), nil, time.Minute)

	tok, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Value != "sk-test" || tok.Source != SourceStatic {
		t.Fatalf("unexpected token: %#v", tok)
	}
}

func TestCachedMissFetchesThenHits(t *testing.T) {
	cache := &fakeCache{data: map[string]string{}}
	c := &Cached{inner: NewStatic("sk-test"), cache: cache, cipher: newTestCipher(t), ttl: time.Minute}

	tok, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Source != SourceStatic || cache.sets != 1 {
		t.Fatalf("miss should fetch and store: %#v, sets=%d", tok, cache.sets)
	}

	tok, err = c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if tok.Value != "sk-test" || tok.Source != SourceCache {
		t.Fatalf("expected cache hit: %#v", tok)
	}
}

func TestCachedTransportErrorDelegates(t *testing.T) {
	cache := &fakeCache{data: map[string]string{}, getErr: errors.New("connection refused")}
	c := &Cached{inner: NewStatic("sk-test"), cache: cache, cipher: newTestCipher(t), ttl: time.Minute}

	tok, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Value != "sk-test" || tok.Source != SourceStatic {
		t.Fatalf("transport error must not be a hit: %#v", tok)
	}
}

func TestCachedSkipsFallbackTokens(t *testing.T) {
	cache := &fakeCache{data: map[string]string{}}
	c := &Cached{inner: WithFallback(NewStatic(""), "dummy"), cache: cache, cipher: newTestCipher(t), ttl: time.Minute}

	tok, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tok.Source != SourceFallback {
		t.Fatalf("expected fallback token: %#v", tok)
	}
	if cache.sets != 0 {
		t.Fatalf("fallback token must not be cached, sets=%d", cache.sets)
	}
}

func TestTokenCipherRoundTrip(t *testing.T) {
	t.Setenv(tokenKeyEnv, strings.Repeat("k", 32))

	cipher, err := newTokenCipherFromEnv()
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err := cipher.Encrypt("sk-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if sealed == "sk-secret" {
		t.Fatal("token stored in plaintext")
	}
	plain, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "sk-secret" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestTokenCipherRejectsGarbage(t *testing.T) {
	t.Setenv(tokenKeyEnv, strings.Repeat("k", 32))

	cipher, err := newTokenCipherFromEnv()
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if _, err := cipher.Decrypt("not-base64!!"); err == nil {
		t.Fatal("expected error for invalid ciphertext")
	}
}
