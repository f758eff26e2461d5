package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Renderer selects how pages are fetched.
const (
	RendererBrowser = "chromedp"
	RendererNone    = "none"
)

// Config holds scraper configuration.
type Config struct {
	StartURL        string
	Renderer        string // chromedp or none
	MaxPages        int
	MaxPageFailures int
	IncludeDetails  bool
	WaitSelector    string
	Delay           time.Duration
	RandomDelay     time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	OutputDir       string
	OutputFormat    string // csv, json, or dual
	UserAgent       string
	Verbose         bool
	MetricsAddr     string
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		StartURL:        "https://books.toscrape.com/",
		Renderer:        RendererBrowser,
		MaxPages:        100,
		MaxPageFailures: 3,
		IncludeDetails:  true,
		WaitSelector:    "article.product_pod",
		Delay:           500 * time.Millisecond,
		RandomDelay:     1500 * time.Millisecond,
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		OutputDir:       "scraped_data",
		OutputFormat:    "dual",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:         false,
		MetricsAddr:     "",
	}
}

// CSVPath returns the CSV output path for this run.
func (c *Config) CSVPath() string {
	return filepath.Join(c.OutputDir, "books.csv")
}

// JSONPath returns the JSON output path for this run.
func (c *Config) JSONPath() string {
	return filepath.Join(c.OutputDir, "books.json")
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}

	if c.Renderer != RendererBrowser && c.Renderer != RendererNone {
		return fmt.Errorf("renderer must be %s or %s", RendererBrowser, RendererNone)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.MaxPageFailures < 0 {
		return fmt.Errorf("max page failures cannot be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
