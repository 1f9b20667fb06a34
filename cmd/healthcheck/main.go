// Command healthcheck probes the gateway's readiness endpoint and exits
// non-zero when it is not ready. It is the container HEALTHCHECK.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
)

func main() {
	var (
		addr    string
		path    string
		timeout time.Duration
	)

	flag.StringVar(&addr, "addr", defaultAddr(), "gateway host:port (or PORT env)")
	flag.StringVar(&path, "path", "/readyz", "probe path")
	flag.DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := probe(ctx, http.DefaultClient, "http://"+addr+path); err != nil {
		slog.Error("unhealthy", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func defaultAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return "127.0.0.1:" + port
}

// probe succeeds when url answers 2xx.
func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
