// Package hostcheck verifies that a notification's source address belongs
// to one of the processor's published callback hostnames.
package hostcheck

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopfast/pkg/logger"
)

// Resolver is the DNS dependency; *net.Resolver satisfies it. Injected so
// tests run without live DNS.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Checker struct {
	resolver Resolver
	timeout  time.Duration
	log      logger.Logger
}

func NewChecker(resolver Resolver, timeout time.Duration, log logger.Logger) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Checker{resolver: resolver, timeout: timeout, log: log}
}

// ResolveAll resolves every hostname and unions the answers. Resolution
// is fresh on every call: the processor rotates addresses, so caching
// here would trade correctness for latency. A host that fails to resolve
// is logged and skipped; only the full set failing yields an empty result.
func (c *Checker) ResolveAll(ctx context.Context, hostnames []string) []string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	seen := make(map[string]struct{})
	var ips []string
	for _, host := range hostnames {
		addrs, err := c.resolver.LookupHost(ctx, host)
		if err != nil {
			c.log.Warn("host resolution failed, skipping",
				zap.String("host", host), zap.Error(err))
			continue
		}
		for _, addr := range addrs {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			ips = append(ips, addr)
		}
	}
	return ips
}

// IsTrustedOrigin reports whether candidate is one of the addresses the
// trusted hostnames currently resolve to. A comma-separated forwarding
// chain is reduced to its first element before the check. An
// unresolvable trusted set means the origin cannot be verified, which is
// a reject, not a retry.
func (c *Checker) IsTrustedOrigin(ctx context.Context, candidate string, hostnames []string) bool {
	candidateIP := net.ParseIP(FirstForwarded(candidate))
	if candidateIP == nil {
		c.log.Warn("origin candidate is not a valid IP address",
			zap.String("candidate", candidate))
		return false
	}

	for _, addr := range c.ResolveAll(ctx, hostnames) {
		if ip := net.ParseIP(addr); ip != nil && ip.Equal(candidateIP) {
			return true
		}
	}
	return false
}

// FirstForwarded returns the first element of a comma-separated
// forwarding chain. Intermediate proxies append themselves after the
// originating client, so the first element is the claimed origin; whether
// that claim is trustworthy depends on the deployment's proxy terminating
// the header (see config.PayFastConfig.TrustForwardedHeader).
func FirstForwarded(chain string) string {
	first, _, _ := strings.Cut(chain, ",")
	return strings.TrimSpace(first)
}
