package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

// Headers a client may send to describe itself
const (
	DeviceHeader = "X-Device-Signature"
	// LocationHeader is set by the edge gateway from its geo-IP lookup. It is
	// read only when the direct peer is a trusted proxy.
	LocationHeader = "X-Client-Location"
)

// ClientContext attaches the caller's IP, user agent, device signature and
// location to the request context so audit records can carry them. The IP
// comes from gin's ClientIP and follows the engine's trusted proxies.
func ClientContext(trustedProxies []string) gin.HandlerFunc {
	trusted := parsePrefixes(trustedProxies)
	return func(c *gin.Context) {
		ua := c.Request.UserAgent()
		cc := &domain.ClientContext{
			IPAddress:       c.ClientIP(),
			UserAgent:       ua,
			DeviceSignature: strings.TrimSpace(c.GetHeader(DeviceHeader)),
		}
		if fromTrustedPeer(c.RemoteIP(), trusted) {
			cc.Location = strings.TrimSpace(c.GetHeader(LocationHeader))
		}
		if cc.DeviceSignature == "" && ua != "" {
			cc.DeviceSignature = deviceSignature(ua)
		}
		c.Request = c.Request.WithContext(domain.WithClient(c.Request.Context(), cc))
		c.Next()
	}
}

// parsePrefixes accepts bare IPs and CIDRs; entries that parse as neither
// are skipped since configuration validates them first
func parsePrefixes(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			a = a.Unmap()
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return out
}

func fromTrustedPeer(remoteIP string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func deviceSignature(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:8])
}
