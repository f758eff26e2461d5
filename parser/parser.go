// Package parser extracts book records from rendered catalogue HTML.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/renderscrape/bookworm/models"
)

// Listing is the parsed form of one catalogue page.
type Listing struct {
	Books   []*models.Book
	NextURL string
}

// Detail holds the extra attributes found on a book's own page.
type Detail struct {
	Description string
	Category    string
	UPC         string
	ProductType string
	Tax         string
	ReviewCount int
}

var stockCountRe = regexp.MustCompile(`\((\d+)\s+available\)`)

// ParseListing extracts every book entry from a catalogue page. Relative
// links are resolved against pageURL. A page without entries yields an
// empty slice, not an error; an entry missing a field keeps the zero value
// for that field.
func ParseListing(html, pageURL string) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	listing := &Listing{}

	doc.Find("article.product_pod").Each(func(_ int, sel *goquery.Selection) {
		book := extractBook(sel, base)
		if book == nil {
			return
		}
		listing.Books = append(listing.Books, book)
	})

	if href, ok := doc.Find("li.next a").First().Attr("href"); ok {
		listing.NextURL = absoluteURL(base, href)
	}

	return listing, nil
}

func extractBook(sel *goquery.Selection, base *url.URL) *models.Book {
	anchor := sel.Find("h3 a").First()
	title := strings.TrimSpace(anchor.AttrOr("title", ""))
	if title == "" {
		title = strings.TrimSpace(anchor.Text())
	}
	href := anchor.AttrOr("href", "")
	if title == "" && href == "" {
		return nil
	}

	availability := strings.TrimSpace(sel.Find("p.instock.availability").Text())
	if availability == "" {
		availability = strings.TrimSpace(sel.Find("p.availability").Text())
	}
	inStock, stockCount := ParseAvailability(availability)

	ratingText := ratingWord(sel.Find("p.star-rating").AttrOr("class", ""))

	return &models.Book{
		Title:         title,
		Price:         ParsePrice(sel.Find("p.price_color").Text()),
		Availability:  availability,
		InStock:       inStock,
		StockCount:    stockCount,
		RatingText:    ratingText,
		RatingNumeric: RatingToNumeric(ratingText),
		ImageURL:      absoluteURL(base, sel.Find("div.image_container img").AttrOr("src", "")),
		URL:           absoluteURL(base, href),
		ScrapedAt:     time.Now().UTC(),
	}
}

// ParseDetail extracts the attributes only present on a book's own page:
// the description meta tag, the breadcrumb category, and the product
// information table.
func ParseDetail(html string) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}

	d := &Detail{
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
	}

	// Breadcrumb is Home / Category / Title; the category sits third.
	crumbs := doc.Find("ul.breadcrumb li")
	if crumbs.Length() >= 3 {
		d.Category = strings.TrimSpace(crumbs.Eq(2).Text())
	}

	doc.Find("table.table-striped tr, article.product_page table tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").Text())
		value := strings.TrimSpace(row.Find("td").Text())
		switch label {
		case "UPC":
			d.UPC = value
		case "Product Type":
			d.ProductType = value
		case "Tax":
			d.Tax = NormalizePrice(value)
		case "Number of reviews":
			if n, err := strconv.Atoi(value); err == nil {
				d.ReviewCount = n
			}
		}
	})

	return d, nil
}

// MergeDetail copies detail fields onto a listing record.
func MergeDetail(b *models.Book, d *Detail) {
	if b == nil || d == nil {
		return
	}
	b.Description = d.Description
	b.Category = d.Category
	b.UPC = d.UPC
	b.ProductType = d.ProductType
	b.Tax = d.Tax
	b.ReviewCount = d.ReviewCount
}

// NormalizePrice strips the currency symbol, the site's UTF-8 mojibake
// prefix, and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "Â", "")
	price = strings.ReplaceAll(price, "£", "")
	return strings.TrimSpace(price)
}

// ParsePrice converts a price string like "£51.77" to its numeric value.
// Unparseable input yields 0.
func ParsePrice(price string) float64 {
	cleaned := NormalizePrice(price)
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// ParseAvailability reports whether the availability text indicates stock
// and how many copies it advertises, e.g. "In stock (22 available)".
func ParseAvailability(text string) (bool, int) {
	trimmed := strings.TrimSpace(text)
	inStock := strings.Contains(strings.ToLower(trimmed), "in stock")
	count := 0
	if m := stockCountRe.FindStringSubmatch(trimmed); len(m) == 2 {
		count, _ = strconv.Atoi(m[1])
	}
	return inStock, count
}

// RatingToNumeric converts the textual rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// ratingWord pulls the rating out of a class attribute like
// "star-rating Three".
func ratingWord(class string) string {
	for _, part := range strings.Fields(class) {
		if part != "star-rating" {
			return part
		}
	}
	return ""
}

// Validate ensures a parsed record is coherent enough to persist.
func Validate(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.URL) == "" {
		return fmt.Errorf("book missing url for %s", b.Title)
	}
	if b.Price < 0 {
		return fmt.Errorf("book has negative price for %s", b.Title)
	}
	if b.RatingNumeric < 0 || b.RatingNumeric > 5 {
		return fmt.Errorf("book rating out of range for %s", b.Title)
	}
	return nil
}

func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
