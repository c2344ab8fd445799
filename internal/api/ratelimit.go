package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/alexzhang/converse/internal/i18n"
)

// admit wraps a handler with per-client admission control at the given
// per-minute rate. Rejections get 429 with a Retry-After hint. The
// whole check is skipped when rate limiting is globally disabled.
func (s *Server) admit(perMinute int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit.Enabled {
			// Each route tracks its own bucket, per client unless
			// per-IP keying is turned off.
			key := r.URL.Path
			if s.cfg.RateLimit.PerIP {
				key += "|" + clientIP(r, s.cfg.Server.TrustProxy)
			}
			if !s.limiter.Allow(key, perMinute) {
				s.logger.Warn("rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, s.logger, http.StatusTooManyRequests, "rate_limited", i18n.T("api.rate.limited"))
				return
			}
		}
		next(w, r)
	}
}

// clientIP extracts the client IP from the request.
//
// When trustProxy is true, X-Forwarded-For (first entry) is checked
// first, then X-Real-IP. Header values are validated with net.ParseIP
// so arbitrary strings cannot become rate-limiter keys. When
// trustProxy is false only RemoteAddr is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
