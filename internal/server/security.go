package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/starteducation/starteducation/internal/httputil"
)

type SecurityConfig struct {
	BaseURL               string
	StorageEndpoint       string
	PlayerOrigins         []string
	AllowedFrameAncestors string
}

const (
	youtubeFrameSources  = "https://www.youtube.com https://www.youtube-nocookie.com"
	youtubeScriptSources = "https://www.youtube.com https://s.ytimg.com"
)

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := cfg.BaseURL != "" && hasHTTPS(cfg.BaseURL)

	storageSuffix := ""
	if cfg.StorageEndpoint != "" {
		storageSuffix = " " + cfg.StorageEndpoint
	}

	frameSources := youtubeFrameSources
	if len(cfg.PlayerOrigins) > 0 {
		frameSources += " " + strings.Join(cfg.PlayerOrigins, " ")
	}

	frameAncestors := "'self'"
	if cfg.AllowedFrameAncestors != "" {
		frameAncestors += " " + cfg.AllowedFrameAncestors
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			if cfg.AllowedFrameAncestors == "" {
				w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			}
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), display-capture=()")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data: https://i.ytimg.com%s; media-src 'self' data:%s; script-src 'self' 'nonce-%s' %s; style-src 'self' 'nonce-%s'; connect-src 'self'%s; frame-src %s; frame-ancestors %s;",
				storageSuffix, storageSuffix, nonce, youtubeScriptSources, nonce, storageSuffix, frameSources, frameAncestors,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasHTTPS(baseURL string) bool {
	return len(baseURL) >= 8 && baseURL[:8] == "https://"
}
