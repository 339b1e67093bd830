package cache

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// PageCacheMiddleware caches successful GET responses in Redis under
// "<prefix><request path>" for ttl. Entries are dropped by RedisInvalidator.
func PageCacheMiddleware(client *redis.Client, prefix string, ttl time.Duration) gin.HandlerFunc {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		key := prefix + c.Request.URL.Path
		if b, err := client.Get(c.Request.Context(), key).Bytes(); err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", b)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Header("X-Cache", "MISS")
		c.Next()

		if c.Writer.Status() == http.StatusOK && rec.buf.Len() > 0 {
			_ = client.Set(c.Request.Context(), key, rec.buf.Bytes(), ttl).Err()
		}
	}
}
