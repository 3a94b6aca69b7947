package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"net/http"
	"s3stream/config"
	"s3stream/sink"
	"s3stream/stream"
	"strconv"
	"strings"
)

func StreamObjectHandle(p Provider, bufferSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("filepath")

		reader, err := p.Open(c.Request.Context(), key)
		if err != nil {
			c.Header("Cache-Control", "no-store")
			switch {
			case errors.Is(err, stream.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			case errors.Is(err, stream.ErrInvalidConfig):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Path"})
			default:
				logrus.Errorln("Error opening object:", key, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "Error reading object"})
			}
			return
		}
		defer reader.Close()

		c.Writer.Header().Set("Content-Type", "application/octet-stream")
		c.Writer.Header().Set("Content-Length", strconv.FormatInt(reader.Size(), 10))
		c.Writer.WriteHeader(http.StatusOK)
		if c.Request.Method == http.MethodHead {
			return
		}

		n, err := sink.ToWriter(c.Request.Context(), reader, c.Writer, bufferSize)
		if err != nil {
			// The status line is already sent; the short body tells the client.
			logrus.Errorf("Error streaming %s after %d of %d bytes: %v", key, n, reader.Size(), err)
			c.Abort()
			return
		}
		logrus.Infof("Streamed %s (%d bytes)", key, n)
	}
}

func CacheControlHandle(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.CacheController.Activated {
			c.Writer.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", cfg.CacheController.MaxAge))
		}
		c.Next()
	}
}

func VerifyHMACHandle(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Hmac.Activated {
			c.Next()
			return
		}

		message := c.GetString("message")
		messageMAC := c.GetString("hmac")
		if !hmacVerify(cfg.Hmac, message, messageMAC) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ParsePathHandle extracts the object key from paths of the form /<key> or,
// with HMAC activated, /<mac>/<key>. Keys may contain slashes.
func ParsePathHandle(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		var messageMAC string
		rest := path
		if cfg.Hmac.Activated {
			idx := strings.Index(strings.TrimPrefix(path, "/"), "/")
			if idx < 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
				c.Abort()
				return
			}
			messageMAC = path[1 : idx+1]
			rest = path[idx+1:]
		}

		filepath := strings.TrimPrefix(rest, "/")
		if filepath == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
			c.Abort()
			return
		}

		if cfg.Base64Path {
			decoded, err := base64.RawURLEncoding.DecodeString(filepath)
			if err != nil || len(decoded) == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "Invalid Path"})
				c.Abort()
				return
			}
			filepath = string(decoded)
		}
		c.Set("filepath", filepath)
		c.Set("hmac", messageMAC)
		c.Set("message", rest)
		c.Next()
	}
}
