// Command healthcheck probes the service /health endpoint and exits non-zero
// unless every dependency reports ok. It is meant for container healthchecks.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/health", "Health endpoint to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "HTTP request timeout")
	caFile := flag.String("ca-file", "", "PEM bundle trusted for https URLs")
	insecure := flag.Bool("insecure", false, "Skip certificate verification (self-signed servers)")
	flag.Parse()

	client, err := newHTTPClient(*timeout, *caFile, *insecure)
	if err != nil {
		exitErr(err)
	}
	if err := probe(client, *url); err != nil {
		exitErr(err)
	}
}

func newHTTPClient(timeout time.Duration, caFile string, insecure bool) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if insecure {
		tlsConfig.InsecureSkipVerify = true
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("CA file contains no certificates")
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func probe(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("failed to decode health report (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode == http.StatusOK && report.Status == "ok" {
		return nil
	}

	var failed []string
	for name, status := range report.Checks {
		if status != "ok" {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return fmt.Errorf("unhealthy (status %d): %s", resp.StatusCode, strings.Join(failed, ", "))
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
