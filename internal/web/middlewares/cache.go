package middleware

// In-memory LRU response cache for the read-heavy history endpoint. Keys
// include the retention store's generation counter, so any buffer mutation
// invalidates cached bodies without explicit eviction.

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
)

type cachedResponse struct {
	contentType string
	body        []byte
}

// ResponseCache is a bounded cache of successful response bodies.
type ResponseCache struct {
	cache *lru.Cache
}

// NewResponseCache creates an LRU cache with the specified size.
func NewResponseCache(size int) (*ResponseCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{cache: cache}, nil
}

// Middleware serves cached bodies for matching keys and captures fresh 200
// responses. keyFn derives the cache key from the request; an empty key
// bypasses the cache.
func (rc *ResponseCache) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		if v, ok := rc.cache.Get(key); ok {
			resp := v.(cachedResponse)
			c.Data(http.StatusOK, resp.contentType, resp.body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		if w.Status() == http.StatusOK {
			rc.cache.Add(key, cachedResponse{
				contentType: w.Header().Get("Content-Type"),
				body:        w.buf.Bytes(),
			})
		}
	}
}

type captureWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
