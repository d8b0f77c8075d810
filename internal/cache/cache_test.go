package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelens/ir-deck-meter/internal/monitoring"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)

	key := c.generateKey("payload")
	c.Set(key, []byte("result"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("result"), got)
	assert.Equal(t, 1, c.Size())
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)

	c.Set("k", []byte("v"))
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheClearBumpsGeneration(t *testing.T) {
	c := NewCache(time.Minute)

	before := c.generateKey("payload")
	c.Set(before, []byte("v"))

	c.Clear()

	assert.Equal(t, 0, c.Size())
	after := c.generateKey("payload")
	assert.NotEqual(t, before, after, "keys from before a clear must not match")
}

func TestHasDeckName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"named deck", `{"stage":"seed","deck_name":"acme"}`, true},
		{"empty deck name", `{"stage":"seed","deck_name":""}`, false},
		{"no deck name", `{"stage":"seed"}`, false},
		{"not json", `stage=seed`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasDeckName([]byte(tt.body)))
		})
	}
}

func TestMiddlewareBypassesNamedDecks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()

	handlerHits := 0
	r := gin.New()
	r.Use(c.Middleware(metrics))
	r.POST("/evaluate", func(ctx *gin.Context) {
		handlerHits++
		ctx.JSON(http.StatusOK, gin.H{"hits": handlerHits})
	})

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	// Anonymous bodies are cached: the second identical request never
	// reaches the handler.
	require.Equal(t, http.StatusOK, post(`{"stage":"seed"}`).Code)
	require.Equal(t, http.StatusOK, post(`{"stage":"seed"}`).Code)
	assert.Equal(t, 1, handlerHits)
	assert.Equal(t, 1, c.Size())

	// Named-deck bodies run the handler every time: recording history
	// and bumping evaluation metrics are handler side effects.
	require.Equal(t, http.StatusOK, post(`{"stage":"seed","deck_name":"acme"}`).Code)
	require.Equal(t, http.StatusOK, post(`{"stage":"seed","deck_name":"acme"}`).Code)
	assert.Equal(t, 3, handlerHits)
	assert.Equal(t, 1, c.Size(), "named-deck responses must not be cached")
}
