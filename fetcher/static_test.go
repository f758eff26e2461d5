package fetcher

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/renderscrape/bookworm/config"
)

func newStaticForTest(t *testing.T) (*StaticFetcher, *httpmock.MockTransport) {
	t.Helper()

	cfg := config.DefaultConfig()
	sf, err := NewStaticFetcher(cfg)
	if err != nil {
		t.Fatalf("create static fetcher: %v", err)
	}

	transport := httpmock.NewMockTransport()
	sf.SetTransport(transport)
	return sf, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestStaticFetcherReturnsBody(t *testing.T) {
	sf, transport := newStaticForTest(t)
	defer sf.Close()

	transport.RegisterResponder("GET", "http://example.test/page-1.html",
		htmlResponder("<html><body><article class=\"product_pod\"></article></body></html>"))

	html, err := sf.Fetch(context.Background(), "http://example.test/page-1.html", "article.product_pod")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(html, "product_pod") {
		t.Errorf("unexpected body: %q", html)
	}
}

func TestStaticFetcherNotFound(t *testing.T) {
	sf, transport := newStaticForTest(t)
	defer sf.Close()

	transport.RegisterResponder("GET", "http://example.test/missing.html",
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	_, err := sf.Fetch(context.Background(), "http://example.test/missing.html", "")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if got := ErrorTypeLabel(err); got != "not_found" {
		t.Errorf("error label = %q, want not_found", got)
	}
}

func TestStaticFetcherAllowsRevisit(t *testing.T) {
	sf, transport := newStaticForTest(t)
	defer sf.Close()

	transport.RegisterResponder("GET", "http://example.test/page-1.html", htmlResponder("<html></html>"))

	for i := 0; i < 2; i++ {
		if _, err := sf.Fetch(context.Background(), "http://example.test/page-1.html", ""); err != nil {
			t.Fatalf("fetch %d: %v", i+1, err)
		}
	}
}

func TestStaticFetcherHonoursCancelledContext(t *testing.T) {
	sf, _ := newStaticForTest(t)
	defer sf.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sf.Fetch(ctx, "http://example.test/page-1.html", ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
