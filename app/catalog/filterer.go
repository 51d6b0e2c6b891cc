package catalog

import (
	"regexp"
	"strings"
)

// LibraryIndex is a read-only snapshot of the local library, queryable by
// identifier and by normalized title/author. The engine never mutates it.
type LibraryIndex interface {
	HasIdentifier(id string) bool
	HasBook(title string, authors []string) bool
}

// Filterer classifies entries against a library index and applies the
// user-facing visibility filters. All methods are pure: inputs are never
// mutated and the same inputs always produce the same output.
type Filterer struct {
	newspaperPattern *regexp.Regexp
}

// NewFilterer builds a filterer. newspaperTitlePattern is the fallback
// heuristic for entries without category metadata; empty disables it.
func NewFilterer(newspaperTitlePattern string) (*Filterer, error) {
	f := &Filterer{}
	if newspaperTitlePattern != "" {
		pattern, err := regexp.Compile(newspaperTitlePattern)
		if err != nil {
			return nil, err
		}
		f.newspaperPattern = pattern
	}
	return f, nil
}

// Classify returns a copy of entries with InLibrary set. An entry is owned
// if its identifier matches the index exactly, or failing that, if its
// normalized title and one of its normalized authors match. The identifier
// check wins when the two disagree.
func (f *Filterer) Classify(entries []Entry, index LibraryIndex) []Entry {
	classified := make([]Entry, len(entries))
	copy(classified, entries)

	if index == nil {
		return classified
	}

	for i := range classified {
		entry := &classified[i]
		if entry.ID != "" && index.HasIdentifier(entry.ID) {
			entry.InLibrary = true
			continue
		}
		entry.InLibrary = index.HasBook(entry.Title, entry.Authors)
	}

	return classified
}

// Run returns the visible subsequence of entries under state, preserving
// relative order. Filters compose by logical AND.
func (f *Filterer) Run(entries []Entry, state FilterState) []Entry {
	visible := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if state.HideOwned && entry.InLibrary {
			continue
		}
		if state.HideNewspapers && f.isNewspaper(entry) {
			continue
		}
		if state.Query != "" && !matchesQuery(entry, state.Query) {
			continue
		}
		visible = append(visible, entry)
	}
	return visible
}

// isNewspaper checks category metadata first and falls back to the title
// pattern when the entry carries no tags.
func (f *Filterer) isNewspaper(entry Entry) bool {
	for _, tag := range entry.Tags {
		if tag == "News" {
			return true
		}
	}
	if len(entry.Tags) == 0 && f.newspaperPattern != nil {
		return f.newspaperPattern.MatchString(entry.Title)
	}
	return false
}

func matchesQuery(entry Entry, query string) bool {
	query = strings.ToLower(query)
	if strings.Contains(strings.ToLower(entry.Title), query) {
		return true
	}
	for _, author := range entry.Authors {
		if strings.Contains(strings.ToLower(author), query) {
			return true
		}
	}
	return false
}
