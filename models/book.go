// Package models defines data structures for the scraper.
package models

import "time"

// Book represents one catalogue entry. Listing fields come from the
// catalogue page; the remaining fields come from the book's own page when
// detail enrichment is enabled. A missing field keeps its zero value.
type Book struct {
	Title         string    `csv:"title" json:"title"`
	Price         float64   `csv:"price" json:"price"`
	Availability  string    `csv:"availability" json:"availability"`
	InStock       bool      `csv:"in_stock" json:"in_stock"`
	StockCount    int       `csv:"stock_count" json:"stock_count"`
	RatingText    string    `csv:"rating" json:"rating"`
	RatingNumeric int       `csv:"rating_numeric" json:"rating_numeric"`
	Category      string    `csv:"category" json:"category"`
	UPC           string    `csv:"upc" json:"upc"`
	ProductType   string    `csv:"product_type" json:"product_type"`
	Tax           string    `csv:"tax" json:"tax"`
	ReviewCount   int       `csv:"reviews" json:"reviews"`
	Description   string    `csv:"description" json:"description"`
	ImageURL      string    `csv:"image_url" json:"image_url"`
	URL           string    `csv:"url" json:"url"`
	ScrapedAt     time.Time `csv:"scraped_at" json:"scraped_at"`
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	PageCount      int
	ItemCount      int
	DetailFailures int
	ErrorCount     int
	RetryCount     int
	SkippedPages   []string
	ErrorsByType   map[string]int
}
