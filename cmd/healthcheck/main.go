// Healthcheck probe for container orchestration. Exits 0 when the service
// answers its health endpoint, 1 otherwise; the failure reason goes to stderr
// so it shows up in the container's healthcheck log.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultPort  = "8080"
	probeTimeout = 2 * time.Second
)

func main() {
	if err := probe(os.Getenv("ERNESCO_LISTEN_ADDR")); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

func probe(listenAddr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/api/v1/health", probeAddr(listenAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	return nil
}

// probeAddr converts the server's listen address into one the probe can dial
// from inside the same container. Bind-all hosts (empty, 0.0.0.0, ::) become
// loopback; the configured port is kept.
func probeAddr(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		// Covers the empty string and a bare host with no port.
		host, port = listenAddr, defaultPort
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
