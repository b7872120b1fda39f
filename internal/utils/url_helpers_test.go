package utils

import (
	"crypto/tls"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLFromRequest(t *testing.T) {
	tests := []struct {
		name           string
		tls            *tls.ConnectionState
		forwardedProto string
		forwardedHost  string
		want           string
	}{
		{name: "plain http", want: "http://example.com"},
		{name: "direct TLS", tls: &tls.ConnectionState{}, want: "https://example.com"},
		{name: "proxy proto", forwardedProto: "https", want: "https://example.com"},
		{name: "proxy host", forwardedProto: "https", forwardedHost: "snap.example.org", want: "https://snap.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://example.com/api/exports", nil)
			r.TLS = tt.tls
			if tt.forwardedProto != "" {
				r.Header.Set("X-Forwarded-Proto", tt.forwardedProto)
			}
			if tt.forwardedHost != "" {
				r.Header.Set("X-Forwarded-Host", tt.forwardedHost)
			}
			assert.Equal(t, tt.want, URLFromRequest(r).String())
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/api/exports", nil)
	assert.Equal(t, "http://example.com/api/exports/files/chatsnap-export-1.png",
		AbsoluteURL(r, "api/exports/files/chatsnap-export-1.png"))
}
