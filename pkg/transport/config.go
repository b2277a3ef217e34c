package transport

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config contains configuration for the API gateway. It is usually built from
// the api block of the dfctl configuration file.
type Config struct {
	// BaseURL is the API endpoint resource paths are appended to.
	// Example: "https://df.example.com/api/v2/"
	BaseURL string `json:"baseUrl"`

	// APIKey identifies the application and is sent with every request.
	APIKey string `json:"-"` // Don't marshal API key to JSON

	// TLSVerify controls TLS certificate verification.
	// Set to false only for development/testing with self-signed certs.
	TLSVerify *bool `json:"tlsVerify,omitempty"`

	// Timeout for API requests.
	// Default: 30 seconds
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		TLSVerify: &tlsVerify,
		Timeout:   30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https scheme, got: %s", parsedURL.Scheme)
	}

	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got: %v", c.Timeout)
	}

	return nil
}

// NormalizedBaseURL returns BaseURL with exactly one trailing slash, so
// resource paths can be appended directly.
func (c *Config) NormalizedBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/"
}

// NewHTTPClient creates a configured HTTP client for the gateway.
func (c *Config) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
