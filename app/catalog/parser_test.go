package catalog

import (
	"errors"
	"strings"
	"testing"
)

const catalogPage = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>All Books</title>
  <id>urn:uuid:feed-0001</id>
  <updated>2023-07-03T12:00:00Z</updated>
  <link rel="self" href="/opds/all"/>
  <link rel="next" href="/opds/all?page=2"/>
  <link rel="first" href="/opds/all"/>
  <entry>
    <title>The Voyage Out</title>
    <id>urn:uuid:11111111-2222-3333-4444-555555555555</id>
    <updated>2023-06-01T10:00:00Z</updated>
    <author><name>Virginia Woolf</name></author>
    <summary>A first novel.
TAGS: Fiction, Classics&lt;br /&gt;</summary>
    <link rel="http://opds-spec.org/image" type="image/jpeg" href="/covers/1.jpg"/>
    <link rel="http://opds-spec.org/acquisition" type="application/pdf" href="/get/pdf/1"/>
    <link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="/get/epub/1"/>
  </entry>
  <entry>
    <title>By Author</title>
    <id>urn:uuid:nav-0001</id>
    <updated>2023-06-01T10:00:00Z</updated>
    <link rel="subsection" type="application/atom+xml;profile=opds-catalog" href="/opds/authors"/>
  </entry>
  <entry>
    <title>Untitled Pamphlet</title>
    <id></id>
    <link rel="http://opds-spec.org/acquisition" type="application/pdf" href="/get/pdf/9"/>
  </entry>
</feed>`

func TestParseCatalogPage(t *testing.T) {
	parser := NewParser(NewMetrics())

	page, err := parser.Run([]byte(catalogPage), "http://books.example.com/opds/all")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if page.Title != "All Books" {
		t.Errorf("Expected title 'All Books', got: %s", page.Title)
	}
	if page.URL != "http://books.example.com/opds/all" {
		t.Errorf("Unexpected page URL: %s", page.URL)
	}

	// Pagination links are resolved against the source URL
	if page.Pagination.Next != "http://books.example.com/opds/all?page=2" {
		t.Errorf("Unexpected next URL: %s", page.Pagination.Next)
	}
	if page.Pagination.First != "http://books.example.com/opds/all" {
		t.Errorf("Unexpected first URL: %s", page.Pagination.First)
	}
	if page.Pagination.Previous != "" || page.Pagination.Last != "" {
		t.Error("Expected previous/last to be empty")
	}
	if !page.Pagination.HasMore() {
		t.Error("Expected HasMore to be true with a next link")
	}

	if len(page.Entries) != 2 {
		t.Fatalf("Expected 2 book entries, got %d", len(page.Entries))
	}
	if len(page.Subcatalogs) != 1 {
		t.Fatalf("Expected 1 subcatalog, got %d", len(page.Subcatalogs))
	}
}

func TestParseBookEntry(t *testing.T) {
	parser := NewParser(NewMetrics())

	page, err := parser.Run([]byte(catalogPage), "http://books.example.com/opds/all")
	if err != nil {
		t.Fatal(err)
	}

	book := page.Entries[0]

	// urn:uuid: prefix is stripped to get the bare identifier
	if book.ID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("Unexpected entry id: %s", book.ID)
	}
	if book.Title != "The Voyage Out" {
		t.Errorf("Unexpected title: %s", book.Title)
	}
	if len(book.Authors) != 1 || book.Authors[0] != "Virginia Woolf" {
		t.Errorf("Unexpected authors: %v", book.Authors)
	}
	if book.UpdatedAt == nil {
		t.Error("Expected updated timestamp to be set")
	}

	// Cover image is skipped; epub is moved to the head of the list
	if len(book.Links) != 2 {
		t.Fatalf("Expected 2 acquisition links, got %d", len(book.Links))
	}
	if book.Links[0].MimeType != "application/epub+zip" {
		t.Errorf("Expected epub first, got: %s", book.Links[0].MimeType)
	}
	if book.Links[0].Href != "http://books.example.com/get/epub/1" {
		t.Errorf("Expected resolved epub href, got: %s", book.Links[0].Href)
	}
	if book.Links[1].MimeType != "application/pdf" {
		t.Errorf("Expected pdf second, got: %s", book.Links[1].MimeType)
	}

	// Tags embedded in the summary are extracted
	if len(book.Tags) != 2 || book.Tags[0] != "Fiction" || book.Tags[1] != "Classics" {
		t.Errorf("Unexpected tags: %v", book.Tags)
	}
}

func TestParseSubcatalogEntry(t *testing.T) {
	parser := NewParser(NewMetrics())

	page, err := parser.Run([]byte(catalogPage), "http://books.example.com/opds/all")
	if err != nil {
		t.Fatal(err)
	}

	subcatalog := page.Subcatalogs[0]
	if subcatalog.Title != "By Author" {
		t.Errorf("Unexpected subcatalog title: %s", subcatalog.Title)
	}
	if subcatalog.Href != "http://books.example.com/opds/authors" {
		t.Errorf("Unexpected subcatalog href: %s", subcatalog.Href)
	}
}

func TestParseEntryWithoutID(t *testing.T) {
	parser := NewParser(NewMetrics())

	page, err := parser.Run([]byte(catalogPage), "http://books.example.com/opds/all")
	if err != nil {
		t.Fatal(err)
	}

	// Entry without an id falls back to its first acquisition href
	pamphlet := page.Entries[1]
	if pamphlet.ID != "http://books.example.com/get/pdf/9" {
		t.Errorf("Unexpected fallback id: %s", pamphlet.ID)
	}
	if len(pamphlet.Authors) != 0 {
		t.Errorf("Expected no authors, got: %v", pamphlet.Authors)
	}
}

func TestParseNoPagination(t *testing.T) {
	data := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Leaf Catalog</title>
  <id>urn:uuid:leaf</id>
  <updated>2023-07-03T12:00:00Z</updated>
</feed>`

	parser := NewParser(NewMetrics())
	page, err := parser.Run([]byte(data), "http://books.example.com/opds/leaf")
	if err != nil {
		t.Fatalf("Missing pagination must not be an error, got: %v", err)
	}
	if page.Pagination.HasMore() {
		t.Error("Expected no further pages")
	}
	if len(page.Entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(page.Entries))
	}
}

func TestParseMalformedDocument(t *testing.T) {
	parser := NewParser(NewMetrics())

	_, err := parser.Run([]byte("this is not a feed"), "http://books.example.com/opds")
	if err == nil {
		t.Fatal("Expected a parse error for undecodable input")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected ParseError, got: %T", err)
	}
}

func TestParseDeterministic(t *testing.T) {
	parser := NewParser(NewMetrics())

	first, err := parser.Run([]byte(catalogPage), "http://books.example.com/opds/all")
	if err != nil {
		t.Fatal(err)
	}
	second, err := parser.Run([]byte(catalogPage), "http://books.example.com/opds/all")
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Entries) != len(second.Entries) {
		t.Fatal("Parse output differs between runs")
	}
	for i := range first.Entries {
		if first.Entries[i].ID != second.Entries[i].ID {
			t.Errorf("Entry %d id differs between runs", i)
		}
	}
}

func TestExtractSummaryTags(t *testing.T) {
	tests := []struct {
		name     string
		summary  string
		expected []string
	}{
		{"no tags line", "Just a description", nil},
		{"single tag", "TAGS: Fiction", []string{"Fiction"}},
		{"multiple with markup", "Blurb\nTAGS: Fiction, News<br />", []string{"Fiction", "News"}},
		{"empty segments dropped", "TAGS: ,Fiction,,", []string{"Fiction"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := extractSummaryTags(tt.summary)
			if strings.Join(tags, "|") != strings.Join(tt.expected, "|") {
				t.Errorf("Expected %v, got %v", tt.expected, tags)
			}
		})
	}
}
