package httpapi

import (
	"fmt"
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// ServerOption customizes the echo instance built by NewServer.
type ServerOption func(*echo.Echo)

// WithTrustedProxies reads the client IP from X-Forwarded-For when the
// socket peer falls inside one of nets. Hops are walked right to left and
// the first address outside nets is the client. Loopback, link-local and
// private ranges are only trusted when listed.
//
// Without this option the socket peer is the client IP and X-Forwarded-For
// and X-Real-IP are ignored.
func WithTrustedProxies(nets ...*net.IPNet) ServerOption {
	return func(e *echo.Echo) {
		if len(nets) == 0 {
			e.IPExtractor = echo.ExtractIPDirect()
			return
		}
		opts := []echo.TrustOption{
			echo.TrustLoopback(false),
			echo.TrustLinkLocal(false),
			echo.TrustPrivateNet(false),
		}
		for _, n := range nets {
			opts = append(opts, echo.TrustIPRange(n))
		}
		e.IPExtractor = echo.ExtractIPFromXFFHeader(opts...)
	}
}

// ParseTrustedProxies parses CIDRs or bare addresses ("10.0.0.0/8",
// "192.0.2.7", "2001:db8::/32"). Blank entries are skipped.
func ParseTrustedProxies(list []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("httpapi: trusted proxy %q is not an IP or CIDR", raw)
			}
			bits := 128
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("httpapi: trusted proxy %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
