package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"s3stream/config"
	"strings"
)

func hmacSum(cfg config.HMAC, message string) []byte {
	mac := hmac.New(sha256.New, []byte(cfg.SecretKey))
	mac.Write([]byte(message))
	mac.Write([]byte(cfg.Salt))
	sum := mac.Sum(nil)
	if cfg.Length > 0 && cfg.Length < len(sum) {
		sum = sum[:cfg.Length]
	}
	return sum
}

func hmacVerify(cfg config.HMAC, message string, messageMAC string) bool {
	messageMACBytes, err := base64.RawURLEncoding.DecodeString(messageMAC)
	if err != nil {
		return false
	}
	return hmac.Equal(messageMACBytes, hmacSum(cfg, message))
}

// signedPath returns the request path that serves key. The MAC covers the
// unescaped path that follows it.
func signedPath(cfg config.Config, key string) string {
	rest := "/" + key
	if cfg.Base64Path {
		rest = "/" + base64.RawURLEncoding.EncodeToString([]byte(key))
	}
	escaped := escapePath(rest)
	if !cfg.Hmac.Activated {
		return escaped
	}
	return "/" + base64.RawURLEncoding.EncodeToString(hmacSum(cfg.Hmac, rest)) + escaped
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
