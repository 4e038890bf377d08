package handler

import (
	"context"
	"go-auth-api/common"
	"go-auth-api/logger"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

type IRateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// clientIP is the remote host without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit caps attempts per client IP. A nil limiter disables the check,
// and limiter failures let the request through.
func RateLimit(limiter IRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, retryAfter, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{
					"client_ip": ip,
					"error":     err.Error(),
				}).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				logger.Log.WithFields(logrus.Fields{
					"client_ip": ip,
					"path":      r.URL.Path,
				}).Warn("Rate limit exceeded")
				common.NewAppError(http.StatusTooManyRequests, "Too many authentication attempts, please try again later.", nil).Send(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
