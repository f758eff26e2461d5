package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renderscrape/bookworm/config"
	"github.com/renderscrape/bookworm/fetcher"
	"github.com/renderscrape/bookworm/models"
	"github.com/renderscrape/bookworm/pipeline"
	"github.com/renderscrape/bookworm/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	rendererDefault := defaultCfg.Renderer
	if value, ok := config.EnvString("SCRAPER_RENDERER"); ok {
		rendererDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	startURL := flag.String("start-url", defaultCfg.StartURL, "Catalogue URL to start from")
	renderer := flag.String("renderer", rendererDefault, "Page renderer: chromedp (headless browser) or none (plain HTTP)")
	maxPages := flag.Int("pages", pagesDefault, "Maximum catalogue pages to visit")
	maxPageFailures := flag.Int("max-page-failures", defaultCfg.MaxPageFailures, "Failed listing pages tolerated before aborting")
	details := flag.Bool("details", defaultCfg.IncludeDetails, "Visit each book's page for description, UPC, category")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Delay between page loads (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	timeoutS := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Per-page load timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	outputDir := flag.String("output", outputDefault, "Output directory for books.csv and books.json")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.StartURL = *startURL
	cfg.Renderer = strings.ToLower(*renderer)
	cfg.MaxPages = *maxPages
	cfg.MaxPageFailures = *maxPageFailures
	cfg.IncludeDetails = *details
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutS) * time.Second
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.OutputDir = *outputDir
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("start_url", cfg.StartURL),
		slog.String("renderer", cfg.Renderer),
		slog.Int("pages", cfg.MaxPages),
		slog.Bool("details", cfg.IncludeDetails),
	)

	f, err := createFetcher(cfg)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("close fetcher", slog.Any("error", err))
		}
	}()

	s, err := scraper.NewScraper(cfg, f)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current page")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(writer)

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("writing output failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, p, time.Since(startTime), cfg)
}

func createFetcher(cfg *config.Config) (fetcher.Fetcher, error) {
	switch cfg.Renderer {
	case config.RendererBrowser:
		return fetcher.NewBrowserFetcher(cfg)
	case config.RendererNone:
		return fetcher.NewStaticFetcher(cfg)
	default:
		return nil, fmt.Errorf("unsupported renderer: %s", cfg.Renderer)
	}
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.JSONPath())
	case "csv":
		return pipeline.NewCSVWriter(cfg.CSVPath())
	case "dual":
		return pipeline.NewDualWriter(cfg.CSVPath(), cfg.JSONPath())
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func printSummary(result *models.RunResult, p *pipeline.Pipeline, duration time.Duration, cfg *config.Config) {
	metrics := p.GetMetrics()
	totalItems := int64(0)
	if processed, ok := metrics["processed_books"].(int64); ok {
		totalItems = processed
	}
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(totalItems) / duration.Seconds()
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Pages:          %d\n", result.PageCount)
	fmt.Printf("  Total items:    %d\n", totalItems)
	fmt.Printf("  Errors:         %d\n", result.ErrorCount)
	fmt.Printf("  Retries:        %d\n", result.RetryCount)
	fmt.Printf("  Skipped pages:  %d\n", len(result.SkippedPages))
	fmt.Printf("  Detail misses:  %d\n", result.DetailFailures)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:    %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:     %v\n", valErrors)
	}
	fmt.Printf("  Duration:       %v\n", duration)
	fmt.Printf("  Items/sec:      %.2f\n", itemsPerSec)
	fmt.Printf("  Output dir:     %s\n", cfg.OutputDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
