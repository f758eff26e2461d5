package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/renderscrape/bookworm/models"
)

// csvHeader fixes the field order for both output formats; the JSON struct
// tags follow the same order.
var csvHeader = []string{
	"title", "price", "availability", "in_stock", "stock_count",
	"rating", "rating_numeric", "category", "upc", "product_type",
	"tax", "reviews", "description", "image_url", "url", "scraped_at",
}

// CSVWriter writes records to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	rows   int
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends books to the CSV output.
func (cw *CSVWriter) Write(books []*models.Book) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, book := range books {
		record := []string{
			book.Title,
			strconv.FormatFloat(book.Price, 'f', 2, 64),
			book.Availability,
			strconv.FormatBool(book.InStock),
			strconv.Itoa(book.StockCount),
			book.RatingText,
			strconv.Itoa(book.RatingNumeric),
			book.Category,
			book.UPC,
			book.ProductType,
			book.Tax,
			strconv.Itoa(book.ReviewCount),
			book.Description,
			book.ImageURL,
			book.URL,
			book.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.rows == 0 {
		return fmt.Errorf("csv output has no records")
	}
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes all records as one indented JSON array.
type JSONWriter struct {
	file  *os.File
	mu    sync.Mutex
	books []*models.Book
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	return &JSONWriter{file: f}, nil
}

// Write appends books and rewrites the array so the file is valid JSON
// after every call.
func (jw *JSONWriter) Write(books []*models.Book) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.books = append(jw.books, books...)

	data, err := json.MarshalIndent(jw.books, "", "    ")
	if err != nil {
		return fmt.Errorf("encode json records: %w", err)
	}
	if err := jw.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate json file: %w", err)
	}
	if _, err := jw.file.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind json file: %w", err)
	}
	if _, err := jw.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json records: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if len(jw.books) == 0 {
		return fmt.Errorf("json output has no records")
	}
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
