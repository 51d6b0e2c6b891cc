package library

// Index is an immutable snapshot of the local library used for entry
// matching. Taken once per classify pass; the traversal engine never
// mutates it.
type Index struct {
	byIdentifier  map[string]struct{}
	byTitleAuthor map[string]struct{}
}

func NewIndex(books []Book) *Index {
	index := &Index{
		byIdentifier:  make(map[string]struct{}),
		byTitleAuthor: make(map[string]struct{}),
	}
	for _, book := range books {
		if book.UUID != "" {
			index.byIdentifier[book.UUID] = struct{}{}
		}
		for _, author := range book.Authors {
			index.byTitleAuthor[titleAuthorKey(book.Title, author)] = struct{}{}
		}
	}
	return index
}

// HasIdentifier reports an exact identifier match.
func (ix *Index) HasIdentifier(id string) bool {
	_, ok := ix.byIdentifier[id]
	return ok
}

// HasBook reports whether any of the entry's authors, paired with its
// title, matches a library book. Multi-author books are matched one author
// at a time so partial author lists still hit.
func (ix *Index) HasBook(title string, authors []string) bool {
	for _, author := range authors {
		if _, ok := ix.byTitleAuthor[titleAuthorKey(title, author)]; ok {
			return true
		}
	}
	return false
}

// Size returns the number of identifier keys; used for logging only.
func (ix *Index) Size() int {
	return len(ix.byIdentifier)
}
