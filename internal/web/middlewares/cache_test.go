package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCachedRouter(t *testing.T, keyFn func(*gin.Context) string) (*gin.Engine, *int) {
	t.Helper()

	cache, err := NewResponseCache(4)
	assert.NoError(t, err)

	hits := 0
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/data", cache.Middleware(keyFn), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	})
	r.GET("/fail", cache.Middleware(keyFn), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return r, &hits
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestCacheServesRepeatedRequests(t *testing.T) {
	r, hits := newCachedRouter(t, func(c *gin.Context) string { return "fixed" })

	first := get(r, "/data")
	assert.Equal(t, http.StatusOK, first.Code)

	second := get(r, "/data")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, *hits, "second request must not reach the handler")
}

func TestCacheKeyChangeBypassesCachedBody(t *testing.T) {
	generation := 0
	r, hits := newCachedRouter(t, func(c *gin.Context) string {
		return "gen:" + strconv.Itoa(generation)
	})

	get(r, "/data")
	generation++
	get(r, "/data")
	assert.Equal(t, 2, *hits)
}

func TestCacheSkipsErrorsAndEmptyKeys(t *testing.T) {
	r, hits := newCachedRouter(t, func(c *gin.Context) string {
		if c.FullPath() == "/fail" {
			return "failkey"
		}
		return ""
	})

	get(r, "/fail")
	get(r, "/fail")
	assert.Equal(t, 2, *hits, "error responses are never cached")

	get(r, "/data")
	get(r, "/data")
	assert.Equal(t, 4, *hits, "empty key bypasses the cache")
}
