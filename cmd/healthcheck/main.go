// Command healthcheck probes the wecomkit health endpoint and exits non-zero
// when it does not answer 200. It is meant for container HEALTHCHECK use.
package main

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

const healthPath = "/api/v1/health"

func main() {
	os.Exit(check(os.Getenv("WECOMKIT_LISTEN_ADDR"), 2*time.Second))
}

func check(listenAddr string, timeout time.Duration) int {
	target := url.URL{Scheme: "http", Host: normalizeAddr(listenAddr), Path: healthPath}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 1
	}

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return 1
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

// normalizeAddr points the probe at loopback when the server binds every
// interface, since the probe runs inside the same container.
func normalizeAddr(raw string) string {
	const fallback = "127.0.0.1:8080"
	if raw == "" {
		return fallback
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return fallback
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
