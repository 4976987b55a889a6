package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"

	// Long enough to cover mobile retry storms after connectivity gaps;
	// trips themselves live much longer than this.
	idempotencyTTL = 24 * time.Hour
)

// storedResponse is the replayable outcome of a keyed request.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// captureWriter tees the response body so it can be stored after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key, so transition and confirmation retries hit the service
// at most once. Requests without the header pass through untouched.
func IdempotencyMiddleware(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		// Scope the key to the route so one client key cannot replay a
		// response across different operations.
		redisKey := "idempotency:" + c.Request.Method + ":" + c.FullPath() + ":" + key

		if stored := loadResponse(ctx, client, redisKey); stored != nil {
			c.Header(replayHeader, "true")
			c.Data(stored.Status, "application/json", stored.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Server errors stay retryable; everything the service decided
		// deterministically (including rejections) is replayed as-is.
		if status := c.Writer.Status(); status < http.StatusInternalServerError {
			saveResponse(ctx, client, redisKey, storedResponse{
				Status: status,
				Body:   w.buf.Bytes(),
			})
		}
	}
}

func loadResponse(ctx context.Context, client *redis.Client, key string) *storedResponse {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil and transport errors alike: fall through to the
		// handler rather than failing the request.
		return nil
	}

	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil
	}
	return &stored
}

func saveResponse(ctx context.Context, client *redis.Client, key string, stored storedResponse) {
	data, err := json.Marshal(stored)
	if err != nil {
		return
	}
	client.Set(ctx, key, data, idempotencyTTL)
}
