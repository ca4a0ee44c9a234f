package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies is the set of peers whose forwarding headers are believed.
// The zero value trusts nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts CIDR ranges and bare addresses.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var tp TrustedProxies
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return TrustedProxies{}, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return TrustedProxies{}, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		tp.prefixes = append(tp.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return tp, nil
}

func (tp TrustedProxies) Empty() bool { return len(tp.prefixes) == 0 }

func (tp TrustedProxies) trusts(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// Resolve returns the address of the client behind r. Forwarding headers are
// read only when the direct peer is trusted. X-Forwarded-For is walked from
// the nearest hop outwards and the first untrusted address wins, so entries
// a client prepends itself are never reached.
func (tp TrustedProxies) Resolve(r *http.Request) string {
	peer, ok := parseHost(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !tp.trusts(peer) {
		return peer.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			a = a.Unmap()
			if !tp.trusts(a) {
				return a.String()
			}
			peer = a
		}
		return peer.String()
	}

	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String()
	}
	return peer.String()
}

func parseHost(remoteAddr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// ClientIPMiddleware resolves the client address once per request and puts
// it on the context for handlers and rate limiters.
func ClientIPMiddleware(tp TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), CtxKeyClientIP, tp.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address resolved by ClientIPMiddleware. Without the
// middleware it falls back to the direct peer and ignores forwarding headers.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(CtxKeyClientIP).(string); ok && ip != "" {
		return ip
	}
	return TrustedProxies{}.Resolve(r)
}
