package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

type contextKey string

const cacheContextKey = contextKey("app-cache")

// Cache holds values for the duration of one invocation.
type Cache struct {
	items map[string]any
	mu    sync.RWMutex
}

func cacheKey(args ...any) string {
	largs := make([]string, len(args))
	for i, a := range args {
		largs[i] = fmt.Sprintf("%v", a)
	}
	return strings.Join(largs, "/")
}

func cacheFrom(ctx context.Context) *Cache {
	cache, _ := ctx.Value(cacheContextKey).(*Cache)
	return cache
}

func GetCacheValue[T any](ctx context.Context, key []any, fallback T) (val T, found bool) {
	cache := cacheFrom(ctx)
	if cache == nil {
		return fallback, false
	}
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	res, inCache := cache.items[cacheKey(key...)]
	if inCache {
		val, assertOk := res.(T)
		if assertOk {
			return val, true
		}
	}
	return fallback, false
}

// SetCacheValue stores val and returns a func restoring the previous value.
// Without a cache in ctx it is a no-op.
func SetCacheValue(ctx context.Context, key []any, val any) func() {
	cache := cacheFrom(ctx)
	if cache == nil {
		return func() {}
	}
	cache.mu.Lock()

	ck := cacheKey(key...)
	original, originalFound := cache.items[ck]
	cache.items[ck] = val

	cache.mu.Unlock()

	return func() {
		cache.mu.Lock()

		if originalFound {
			cache.items[ck] = original
		} else {
			delete(cache.items, ck)
		}

		cache.mu.Unlock()
	}
}

// GetOrSet returns the cached value for key, computing and storing it on a miss.
func GetOrSet[T any](ctx context.Context, key []any, compute func() (T, error)) (T, error) {
	if val, found := GetCacheValue[T](ctx, key, *new(T)); found {
		return val, nil
	}
	val, err := compute()
	if err != nil {
		return val, err
	}
	SetCacheValue(ctx, key, val)
	return val, nil
}

func ContextWithCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheContextKey, &Cache{
		items: map[string]any{},
	})
}

// WithCache gives every invocation of any lambda handler a fresh cache.
func WithCache[E, R any](function func(context.Context, E) (R, error)) func(context.Context, E) (R, error) {
	return func(ctx context.Context, event E) (R, error) {
		return function(ContextWithCache(ctx), event)
	}
}

func CacheMiddleware(function APIFunction) APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		return function(ContextWithCache(ctx), request)
	}
}
