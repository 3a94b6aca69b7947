package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"s3stream/config"
)

// newRouter serves /health, /metrics and streams every other GET or HEAD
// path as an object key.
func newRouter(cfg config.Config, provider Provider, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()
	r.UseRawPath = false
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handles := make([]gin.HandlerFunc, 0)
	handles = append(handles, methodHandle(), ParsePathHandle(cfg))
	if cfg.Hmac.Activated {
		handles = append(handles, VerifyHMACHandle(cfg))
	}
	handles = append(handles, CacheControlHandle(cfg), StreamObjectHandle(provider, cfg.Stream.BufferSize))

	r.NoRoute(handles...)
	return r
}

func methodHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
			c.Abort()
			return
		}
		c.Next()
	}
}
