// Package publicip resolves the host clients should use to reach this
// gateway. A configured public domain (dynamic-DNS name) always wins;
// otherwise the public IP is looked up once from an IP-echo service.
package publicip

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultEchoURL = "https://api.ipify.org"

type Resolver struct {
	client  *http.Client
	echoURL string
}

func NewResolver() *Resolver {
	return &Resolver{
		client:  &http.Client{Timeout: 10 * time.Second},
		echoURL: defaultEchoURL,
	}
}

// NewResolverWithEcho points the lookup at a different IP-echo endpoint.
func NewResolverWithEcho(echoURL string) *Resolver {
	r := NewResolver()
	r.echoURL = echoURL
	return r
}

// ExternalHost returns domain when set, else the echoed public IP.
func (r *Resolver) ExternalHost(ctx context.Context, domain string) (string, error) {
	if domain != "" {
		return domain, nil
	}
	return r.lookup(ctx)
}

func (r *Resolver) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.echoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("public ip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public ip lookup: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("public ip lookup: %w", err)
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("public ip lookup: %q is not an IP", ip)
	}
	return ip, nil
}
