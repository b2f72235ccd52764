package ip

import (
	"net"
	"strings"

	"github.com/robalyx/roprofile/internal/setup/config"
	"go.uber.org/zap"
)

// Checker validates client addresses and trusted proxies.
type Checker struct {
	trusted       []*net.IPNet
	allowLocalIPs bool
	logger        *zap.Logger
}

// NewChecker parses the trusted proxy list. Entries may be single
// addresses or CIDR ranges; invalid entries are logged and skipped.
func NewChecker(logger *zap.Logger, config *config.IPConfig) *Checker {
	checker := &Checker{
		allowLocalIPs: config.AllowLocalIPs,
		logger:        logger,
	}

	for _, entry := range config.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				logger.Warn("Ignoring invalid trusted proxy", zap.String("entry", entry))
				continue
			}

			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			checker.trusted = append(checker.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy", zap.String("entry", entry), zap.Error(err))
			continue
		}
		checker.trusted = append(checker.trusted, network)
	}

	return checker
}

// IsTrustedProxy reports whether ip belongs to a trusted proxy range.
func (c *Checker) IsTrustedProxy(ip net.IP) bool {
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsValidPublicIP reports whether ip may be used as a client address.
// Private and loopback addresses pass only when local IPs are allowed.
func (c *Checker) IsValidPublicIP(ip net.IP) bool {
	if ip == nil || ip.IsUnspecified() || ip.IsMulticast() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}

	if ip.IsLoopback() || ip.IsPrivate() {
		return c.allowLocalIPs
	}

	return true
}

// ValidateIP parses raw and returns its canonical form, or UnknownIP.
func (c *Checker) ValidateIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if !c.IsValidPublicIP(ip) {
		return UnknownIP
	}
	return ip.String()
}
