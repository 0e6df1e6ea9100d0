package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/httputil"
)

// IPIntel answers embargo and reputation questions about client IPs.
type IPIntel interface {
	IPIsEmbargoed(ctx context.Context, ip string) (bool, error)
	IPIsReputable(ctx context.Context, ip string) (bool, error)
}

// IPGuard rejects clients from embargoed countries with 451 and clients
// with a bad reputation with 403. Lookup failures let the request through.
func IPGuard(intel IPIntel, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if ip == "" || isPrivate(ip) {
				next.ServeHTTP(w, r)
				return
			}

			embargoed, err := intel.IPIsEmbargoed(r.Context(), ip)
			if err != nil {
				log.Warn("embargo lookup failed", zap.String("ip", ip), zap.Error(err))
			} else if embargoed {
				log.Info("blocked embargoed ip", zap.String("ip", ip))
				httputil.WriteMessage(w, http.StatusUnavailableForLegalReasons, "embargoed",
					"service is not available in your region")
				return
			}

			reputable, err := intel.IPIsReputable(r.Context(), ip)
			if err != nil {
				log.Warn("ip reputation lookup failed", zap.String("ip", ip), zap.Error(err))
			} else if !reputable {
				log.Info("blocked malicious ip", zap.String("ip", ip))
				httputil.WriteMessage(w, http.StatusForbidden, "blocked_ip", "requests from this address are blocked")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isPrivate(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed == nil || parsed.IsLoopback() || parsed.IsPrivate()
}
