package catalog

import (
	"time"
)

// Catalog traversal types

// Entry is one book listing in a catalog page. Entries are immutable once
// parsed; identity is ID.
type Entry struct {
	ID        string
	Title     string
	Authors   []string
	Summary   string
	Tags      []string
	UpdatedAt *time.Time

	// Acquisition links in preference order: epub first, then the rest in
	// document order.
	Links []AcquisitionLink

	InLibrary bool
}

type AcquisitionLink struct {
	Href     string
	MimeType string
	Rel      string
}

// SubcatalogLink points at a child catalog to descend into.
type SubcatalogLink struct {
	Href  string
	Title string
}

// Pagination holds the feed-level rel links of a page. Empty fields mean
// "no such page".
type Pagination struct {
	Next     string
	Previous string
	First    string
	Last     string
}

// Page is the normalized form of one fetched catalog document. Never mutated
// after parse; accumulation happens at the session level.
type Page struct {
	URL         string
	Title       string
	Entries     []Entry
	Subcatalogs []SubcatalogLink
	Pagination  Pagination
}

// HasMore reports whether another page can be appended after this one.
func (p Pagination) HasMore() bool {
	return p.Next != ""
}

// FilterState is the user-facing visibility input applied to a frame's
// accumulated entries. Purely derived output; never persisted by the engine.
type FilterState struct {
	Query          string
	HideOwned      bool
	HideNewspapers bool
}

// Preset configuration types

type Preset struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Title    string         `yaml:"title"`
	Settings PresetSettings `yaml:"settings"`
}

type PresetSettings struct {
	Timeout     int   `yaml:"timeout"`       // seconds, 0 means the global default
	MaxPageSize int64 `yaml:"max_page_size"` // bytes, 0 means the global default
}
