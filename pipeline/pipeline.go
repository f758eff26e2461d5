// Package pipeline validates and persists scraped records.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/renderscrape/bookworm/models"
	"github.com/renderscrape/bookworm/parser"
)

// ErrPipelineClosed is returned when Process is called after Close.
var ErrPipelineClosed = errors.New("pipeline: closed")

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(books []*models.Book) error
	Close() error
	Validate() error
}

// Pipeline accumulates validated records in arrival order and hands the
// full sequence to the writer exactly once, on Close. The scrape is
// sequential, so ordering here is page order then in-page order.
type Pipeline struct {
	writer OutputWriter

	mu      sync.Mutex
	books   []*models.Book
	seen    map[string]struct{}
	metrics metrics
	closed  bool
}

// NewPipeline builds a pipeline that persists through writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{
		writer:  writer,
		seen:    make(map[string]struct{}),
		metrics: newMetrics(),
	}
}

// Process validates and de-duplicates a page's records, keeping the
// survivors. Invalid or duplicate records are dropped and counted, never
// fatal.
func (p *Pipeline) Process(books []*models.Book) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}

	for _, book := range books {
		if book == nil {
			continue
		}
		if err := parser.Validate(book); err != nil {
			p.metrics.addValidation("invalid_record")
			continue
		}
		if _, dup := p.seen[book.URL]; dup {
			p.metrics.addValidation("duplicate_url")
			continue
		}
		p.seen[book.URL] = struct{}{}
		p.books = append(p.books, book)
		p.metrics.incrementProcessed()
	}
	return nil
}

// Count returns the number of records accumulated so far.
func (p *Pipeline) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.books)
}

// Close writes the full ordered sequence. The writer itself stays open so
// the caller can still Validate it; closing the writer is the caller's job.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	p.closed = true

	if err := p.writer.Write(p.books); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics.snapshot()
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.processed++
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_books":   m.processed,
		"validation_errors": copyValidation,
	}
}
