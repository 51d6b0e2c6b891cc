package catalog

import (
	"bytes"
	"cmp"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed/atom"
)

const tagsPrefix = "TAGS: "

// Parser normalizes raw OPDS documents into Pages. OPDS catalogs are Atom
// feeds, so the atom parser is used directly: the universal gofeed model
// drops link rel/type attributes, which carry the catalog structure.
type Parser struct {
	atomParser *atom.Parser
	metrics    *Metrics
}

func NewParser(metrics *Metrics) *Parser {
	return &Parser{
		atomParser: &atom.Parser{},
		metrics:    metrics,
	}
}

// Run parses data fetched from sourceURL. Relative hrefs are resolved
// against sourceURL. Missing pagination links, titles, and authors degrade
// to empty values; only a structurally undecodable document is an error.
func (p *Parser) Run(data []byte, sourceURL string) (*Page, error) {
	feed, err := p.atomParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{URL: sourceURL, Err: err}
	}

	base, _ := url.Parse(sourceURL)

	page := &Page{
		URL:        sourceURL,
		Title:      feed.Title,
		Pagination: p.extractPagination(feed.Links, base),
	}

	for _, rawEntry := range feed.Entries {
		if rawEntry == nil {
			continue
		}
		entry, subcatalog := p.normalizeEntry(rawEntry, base)
		if subcatalog != nil {
			page.Subcatalogs = append(page.Subcatalogs, *subcatalog)
			continue
		}
		page.Entries = append(page.Entries, entry)
	}

	p.metrics.AddEntries(len(page.Entries))

	return page, nil
}

// normalizeEntry converts one atom entry. An entry carrying no acquisition
// links but a nested catalog link is a subcatalog, not a book.
func (p *Parser) normalizeEntry(rawEntry *atom.Entry, base *url.URL) (Entry, *SubcatalogLink) {
	entry := Entry{
		ID:      strings.TrimPrefix(rawEntry.ID, "urn:uuid:"),
		Title:   rawEntry.Title,
		Summary: rawEntry.Summary,
	}

	if rawEntry.Content != nil && entry.Summary == "" {
		entry.Summary = rawEntry.Content.Value
	}

	if rawEntry.UpdatedParsed != nil {
		entry.UpdatedAt = rawEntry.UpdatedParsed
	}

	for _, author := range rawEntry.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			entry.Authors = append(entry.Authors, strings.TrimSpace(author.Name))
		}
	}

	for _, category := range rawEntry.Categories {
		if category != nil && category.Term != "" {
			entry.Tags = append(entry.Tags, category.Term)
		}
	}
	entry.Tags = append(entry.Tags, extractSummaryTags(entry.Summary)...)

	catalogHref := ""
	for _, link := range rawEntry.Links {
		if link == nil || link.Href == "" {
			continue
		}
		href := resolveHref(base, link.Href)

		// Covers and thumbnails are not acquisition links
		if strings.HasPrefix(link.Type, "image/") {
			continue
		}

		// Nested catalog; the first one wins
		if strings.HasPrefix(link.Type, "application/atom+xml") {
			if catalogHref == "" {
				catalogHref = href
			}
			continue
		}

		acquisition := AcquisitionLink{Href: href, MimeType: link.Type, Rel: link.Rel}
		if link.Type == "application/epub+zip" {
			// EPUB is the preferred format, kept at the head of the list
			entry.Links = append([]AcquisitionLink{acquisition}, entry.Links...)
		} else {
			entry.Links = append(entry.Links, acquisition)
		}
	}

	if len(entry.Links) == 0 && catalogHref != "" {
		return Entry{}, &SubcatalogLink{Href: catalogHref, Title: rawEntry.Title}
	}

	if entry.ID == "" && len(entry.Links) > 0 {
		entry.ID = entry.Links[0].Href
	}
	entry.ID = cmp.Or(entry.ID, entry.Title)

	return entry, nil
}

func (p *Parser) extractPagination(links []*atom.Link, base *url.URL) Pagination {
	var pagination Pagination
	for _, link := range links {
		if link == nil || link.Href == "" {
			continue
		}
		href := resolveHref(base, link.Href)
		switch link.Rel {
		case "next":
			pagination.Next = href
		case "previous", "prev":
			pagination.Previous = href
		case "first":
			pagination.First = href
		case "last":
			pagination.Last = href
		}
	}
	return pagination
}

// extractSummaryTags pulls tags embedded in summary lines of the form
// "TAGS: fiction, fantasy<br />", a convention used by calibre servers.
func extractSummaryTags(summary string) []string {
	var tags []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, tagsPrefix) {
			continue
		}
		line = strings.TrimPrefix(line, tagsPrefix)
		line = strings.ReplaceAll(line, "<br />", "")
		for _, tag := range strings.Split(line, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func resolveHref(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
