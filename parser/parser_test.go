package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/renderscrape/bookworm/models"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<section>
  <ol class="row">
    <li>
      <article class="product_pod">
        <div class="image_container">
          <a href="a-light-in-the-attic_1000/index.html"><img src="../media/cache/2c/da/light.jpg" alt="A Light in the Attic"></a>
        </div>
        <p class="star-rating Three"><i class="icon-star"></i></p>
        <h3><a href="a-light-in-the-attic_1000/index.html" title="A Light in the Attic">A Light in the ...</a></h3>
        <div class="product_price">
          <p class="price_color">Â£51.77</p>
          <p class="instock availability"><i class="icon-ok"></i> In stock (22 available)</p>
        </div>
      </article>
    </li>
    <li>
      <article class="product_pod">
        <h3><a href="no-rating_2/index.html" title="No Rating Here">No Rating ...</a></h3>
        <div class="product_price">
          <p class="price_color">£12.50</p>
          <p class="instock availability">In stock</p>
        </div>
      </article>
    </li>
    <li>
      <article class="product_pod">
        <p class="star-rating Five"></p>
        <h3><a href="no-price_3/index.html" title="No Price Here">No Price ...</a></h3>
        <div class="product_price">
          <p class="availability">Out of stock</p>
        </div>
      </article>
    </li>
  </ol>
  <ul class="pager">
    <li class="next"><a href="page-2.html">next</a></li>
  </ul>
</section>
</body></html>`

func TestParseListing(t *testing.T) {
	listing, err := ParseListing(listingPage, "https://books.toscrape.com/catalogue/page-1.html")
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}

	if len(listing.Books) != 3 {
		t.Fatalf("books=%d, want 3", len(listing.Books))
	}
	if listing.NextURL != "https://books.toscrape.com/catalogue/page-2.html" {
		t.Errorf("NextURL = %q", listing.NextURL)
	}

	first := listing.Books[0]
	if first.Title != "A Light in the Attic" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price != 51.77 {
		t.Errorf("price = %v, want 51.77", first.Price)
	}
	if !first.InStock || first.StockCount != 22 {
		t.Errorf("stock = (%v, %d), want (true, 22)", first.InStock, first.StockCount)
	}
	if first.RatingText != "Three" || first.RatingNumeric != 3 {
		t.Errorf("rating = (%q, %d), want (Three, 3)", first.RatingText, first.RatingNumeric)
	}
	if first.URL != "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html" {
		t.Errorf("url = %q", first.URL)
	}
	if !strings.HasPrefix(first.ImageURL, "https://books.toscrape.com/media/") {
		t.Errorf("image url = %q, want resolved against site root", first.ImageURL)
	}
}

func TestParseListingMissingFieldsDegrade(t *testing.T) {
	listing, err := ParseListing(listingPage, "https://books.toscrape.com/catalogue/page-1.html")
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}

	noRating := listing.Books[1]
	if noRating.RatingText != "" || noRating.RatingNumeric != 0 {
		t.Errorf("missing rating should yield zero, got (%q, %d)", noRating.RatingText, noRating.RatingNumeric)
	}
	if noRating.Price != 12.50 {
		t.Errorf("price = %v, want 12.50", noRating.Price)
	}

	noPrice := listing.Books[2]
	if noPrice.Price != 0 {
		t.Errorf("missing price should yield 0, got %v", noPrice.Price)
	}
	if noPrice.InStock {
		t.Error("out of stock entry flagged as in stock")
	}
	if noPrice.RatingNumeric != 5 {
		t.Errorf("rating = %d, want 5", noPrice.RatingNumeric)
	}
}

func TestParseListingEmptyPage(t *testing.T) {
	listing, err := ParseListing("<html><body><p>nothing here</p></body></html>", "https://books.toscrape.com/")
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if len(listing.Books) != 0 {
		t.Errorf("books=%d, want 0", len(listing.Books))
	}
	if listing.NextURL != "" {
		t.Errorf("NextURL = %q, want empty", listing.NextURL)
	}
}

func TestParseListingEntryCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, `<article class="product_pod">
			<h3><a href="book-%d/index.html" title="Book %d">Book %d</a></h3>
			<p class="price_color">£%d.00</p>
			<p class="star-rating Two"></p>
			<p class="instock availability">In stock</p>
		</article>`, i, i, i, i+1)
	}
	sb.WriteString("</body></html>")

	listing, err := ParseListing(sb.String(), "https://books.toscrape.com/catalogue/page-1.html")
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if len(listing.Books) != 20 {
		t.Fatalf("books=%d, want 20", len(listing.Books))
	}
	for i, b := range listing.Books {
		if b.Price < 0 {
			t.Errorf("book %d has negative price", i)
		}
		if b.RatingNumeric < 0 || b.RatingNumeric > 5 {
			t.Errorf("book %d rating out of range: %d", i, b.RatingNumeric)
		}
	}
}

const detailPage = `<!DOCTYPE html>
<html><head>
<meta name="description" content="
    It's hard to imagine a world without A Light in the Attic.
">
</head><body>
<ul class="breadcrumb">
  <li><a href="/">Home</a></li>
  <li><a href="/books">Books</a></li>
  <li><a href="/poetry">Poetry</a></li>
  <li class="active">A Light in the Attic</li>
</ul>
<article class="product_page">
  <table class="table table-striped">
    <tr><th>UPC</th><td>a897fe39b1053632</td></tr>
    <tr><th>Product Type</th><td>Books</td></tr>
    <tr><th>Price (excl. tax)</th><td>Â£51.77</td></tr>
    <tr><th>Tax</th><td>Â£0.00</td></tr>
    <tr><th>Availability</th><td>In stock (22 available)</td></tr>
    <tr><th>Number of reviews</th><td>0</td></tr>
  </table>
</article>
</body></html>`

func TestParseDetail(t *testing.T) {
	detail, err := ParseDetail(detailPage)
	if err != nil {
		t.Fatalf("ParseDetail: %v", err)
	}

	if !strings.Contains(detail.Description, "hard to imagine a world") {
		t.Errorf("description = %q", detail.Description)
	}
	if detail.Category != "Poetry" {
		t.Errorf("category = %q, want Poetry", detail.Category)
	}
	if detail.UPC != "a897fe39b1053632" {
		t.Errorf("upc = %q", detail.UPC)
	}
	if detail.ProductType != "Books" {
		t.Errorf("product type = %q", detail.ProductType)
	}
	if detail.Tax != "0.00" {
		t.Errorf("tax = %q, want 0.00", detail.Tax)
	}
	if detail.ReviewCount != 0 {
		t.Errorf("reviews = %d, want 0", detail.ReviewCount)
	}
}

func TestMergeDetail(t *testing.T) {
	book := &models.Book{Title: "X", URL: "http://example.test/x"}
	MergeDetail(book, &Detail{
		Description: "desc",
		Category:    "Poetry",
		UPC:         "abc",
		ProductType: "Books",
		Tax:         "0.00",
		ReviewCount: 3,
	})

	if book.Description != "desc" || book.Category != "Poetry" || book.UPC != "abc" || book.ReviewCount != 3 {
		t.Errorf("merge incomplete: %+v", book)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"£51.77", 51.77},
		{"Â£10.50", 10.50},
		{"  25.99  ", 25.99},
		{"", 0},
		{"free", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParsePrice(tt.input); got != tt.expected {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseAvailability(t *testing.T) {
	tests := []struct {
		input     string
		inStock   bool
		count     int
	}{
		{"In stock (22 available)", true, 22},
		{"In stock", true, 0},
		{"Out of stock", false, 0},
		{"", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			inStock, count := ParseAvailability(tt.input)
			if inStock != tt.inStock || count != tt.count {
				t.Errorf("ParseAvailability(%q) = (%v, %d), want (%v, %d)", tt.input, inStock, count, tt.inStock, tt.count)
			}
		})
	}
}

func TestRatingToNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"One", 1},
		{"Two", 2},
		{"Three", 3},
		{"Four", 4},
		{"Five", 5},
		{"Zero", 0},
		{"Invalid", 0},
		{"", 0},
		{"three", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RatingToNumeric(tt.input); got != tt.expected {
				t.Errorf("RatingToNumeric(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		book    *models.Book
		wantErr bool
	}{
		{
			name:    "valid",
			book:    &models.Book{Title: "T", URL: "http://example.test/t", Price: 1.5, RatingNumeric: 3},
			wantErr: false,
		},
		{name: "nil", book: nil, wantErr: true},
		{name: "missing title", book: &models.Book{URL: "http://example.test/t"}, wantErr: true},
		{name: "missing url", book: &models.Book{Title: "T"}, wantErr: true},
		{
			name:    "negative price",
			book:    &models.Book{Title: "T", URL: "http://example.test/t", Price: -1},
			wantErr: true,
		},
		{
			name:    "rating out of range",
			book:    &models.Book{Title: "T", URL: "http://example.test/t", RatingNumeric: 6},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.book)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
