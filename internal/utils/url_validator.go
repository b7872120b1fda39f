package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rmitchellscott/chatsnap/internal/config"
)

var privateIPRanges = []*net.IPNet{
	mustParseCIDR("10.0.0.0/8"),
	mustParseCIDR("172.16.0.0/12"),
	mustParseCIDR("192.168.0.0/16"),
	mustParseCIDR("169.254.0.0/16"),
	mustParseCIDR("127.0.0.0/8"),
	mustParseCIDR("0.0.0.0/8"),
	mustParseCIDR("::1/128"),
	mustParseCIDR("fe80::/10"),
	mustParseCIDR("fc00::/7"),
}

func mustParseCIDR(cidr string) *net.IPNet {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse CIDR %s: %v", cidr, err))
	}
	return ipNet
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// URLPolicy decides which remote image URLs may be fetched as export input.
type URLPolicy struct {
	BlockPrivateIPs bool
	BlockedDomains  []string
	Resolver        Resolver
}

// URLPolicyFromEnv reads BLOCK_PRIVATE_IPS and the comma separated
// BLOCKED_DOMAINS.
func URLPolicyFromEnv() URLPolicy {
	var blocked []string
	for _, domain := range strings.Split(config.Get("BLOCKED_DOMAINS", ""), ",") {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			blocked = append(blocked, domain)
		}
	}
	return URLPolicy{
		BlockPrivateIPs: config.GetBool("BLOCK_PRIVATE_IPS", false),
		BlockedDomains:  blocked,
	}
}

// Validate checks rawURL against the policy. Hosts that fail to resolve are
// allowed through; the fetch itself will fail.
func (p URLPolicy) Validate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", parsed.Scheme)
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return fmt.Errorf("URL missing hostname")
	}

	for _, blocked := range p.BlockedDomains {
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return fmt.Errorf("domain %s is blocked", hostname)
		}
	}

	if !p.BlockPrivateIPs {
		return nil
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("private IP address %s is blocked", ip)
		}
		return nil
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if isPrivateIP(addr.IP) {
			return fmt.Errorf("private IP address %s is blocked for hostname %s", addr.IP, hostname)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, privateRange := range privateIPRanges {
		if privateRange.Contains(ip) {
			return true
		}
	}
	return false
}
