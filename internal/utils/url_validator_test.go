package utils

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticResolver map[string][]string

func (r staticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	addrs := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return addrs, nil
}

func TestURLPolicyValidate(t *testing.T) {
	resolver := staticResolver{
		"cdn.example.com":  {"93.184.216.34"},
		"intranet.example": {"10.1.2.3"},
		"mixed.example":    {"93.184.216.34", "192.168.1.5"},
	}
	strict := URLPolicy{BlockPrivateIPs: true, BlockedDomains: []string{"tracker.com"}, Resolver: resolver}

	tests := []struct {
		name          string
		url           string
		policy        URLPolicy
		errorContains string
	}{
		{name: "valid https URL", url: "https://example.com/chat.png"},
		{name: "valid http URL", url: "http://example.com/chat.png"},
		{name: "not a URL", url: "not-a-url", errorContains: "unsupported URL scheme"},
		{name: "unsupported scheme", url: "file:///etc/passwd", errorContains: "unsupported URL scheme"},
		{name: "missing hostname", url: "http:///chat.png", errorContains: "URL missing hostname"},
		{name: "blocked domain", url: "https://tracker.com/a.png", policy: strict, errorContains: "is blocked"},
		{name: "blocked subdomain", url: "https://img.TRACKER.com/a.png", policy: strict, errorContains: "is blocked"},
		{name: "similar domain allowed", url: "https://nottracker.com/a.png", policy: URLPolicy{BlockedDomains: []string{"tracker.com"}}},
		{name: "public host", url: "https://cdn.example.com/a.png", policy: strict},
		{name: "private host", url: "https://intranet.example/a.png", policy: strict, errorContains: "private IP address 10.1.2.3"},
		{name: "any private address blocks", url: "https://mixed.example/a.png", policy: strict, errorContains: "192.168.1.5"},
		{name: "literal loopback", url: "http://127.0.0.1:8080/a.png", policy: strict, errorContains: "private IP"},
		{name: "literal loopback allowed without policy", url: "http://127.0.0.1:8080/a.png"},
		{name: "unresolvable host proceeds", url: "https://unknown.example/a.png", policy: strict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(context.Background(), tt.url)
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errorContains)
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	for ip, private := range map[string]bool{
		"10.0.0.1":      true,
		"172.31.255.1":  true,
		"172.32.0.1":    false,
		"192.168.0.10":  true,
		"169.254.1.1":   true,
		"127.0.0.1":     true,
		"8.8.8.8":       false,
		"::1":           true,
		"fe80::1":       true,
		"fd00::1":       true,
		"2001:4860::88": false,
	} {
		assert.Equal(t, private, isPrivateIP(net.ParseIP(ip)), ip)
	}
}

func TestURLPolicyFromEnv(t *testing.T) {
	t.Setenv("BLOCK_PRIVATE_IPS", "true")
	t.Setenv("BLOCKED_DOMAINS", " Tracker.com, ,ads.example ")

	p := URLPolicyFromEnv()
	assert.True(t, p.BlockPrivateIPs)
	assert.Equal(t, []string{"tracker.com", "ads.example"}, p.BlockedDomains)
}
