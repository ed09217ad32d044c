package api

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// IdempotencyHeader carries the client-chosen idempotency key.
	IdempotencyHeader = "Idempotency-Key"

	idempotencyCachePrefix = "payflow:idempotency:"
	idempotencyLockPrefix  = "payflow:lock:"

	// idempotencyLockTimeout bounds how long a crashed request can hold
	// the in-flight lock.
	idempotencyLockTimeout = 10 * time.Second
)

// responseRecorder captures status and body so a successful response can
// be replayed for a repeated key.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency is a response-cache middleware keyed on the Idempotency-Key
// header. It is a transport-level convenience on top of the store-level
// key constraint: a replayed request gets the original response back, and
// concurrent requests with the same key are rejected with 409 while the
// first is in flight. Requests without the header pass through untouched.
func Idempotency(rdb *redis.Client, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.Background()
			cacheKey := idempotencyCachePrefix + key
			lockKey := idempotencyLockPrefix + key

			cached, err := rdb.Get(ctx, cacheKey).Result()
			if err == nil {
				w.Header().Set("X-Idempotency-Replay", "true")
				w.Write([]byte(cached))
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", idempotencyLockTimeout).Result()
			if err != nil {
				log.Printf("[api] idempotency lock error: %v", err)
				writeError(w, http.StatusInternalServerError, "idempotency lock unavailable")
				return
			}
			if !acquired {
				writeError(w, http.StatusConflict,
					"a request with this idempotency key is currently being processed")
				return
			}
			defer func() {
				if err := rdb.Del(ctx, lockKey).Err(); err != nil {
					log.Printf("[api] idempotency lock release: %v", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Only successful responses are worth replaying.
			if rec.statusCode >= 200 && rec.statusCode < 300 {
				if err := rdb.Set(ctx, cacheKey, rec.body.String(), ttl).Err(); err != nil {
					log.Printf("[api] idempotency cache write: %v", err)
				}
			}
		})
	}
}
