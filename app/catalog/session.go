package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type FrameState string

const (
	FrameEmpty       FrameState = "empty"
	FrameLoading     FrameState = "loading"
	FrameLoaded      FrameState = "loaded"
	FrameLoadingMore FrameState = "loading_more"
)

// Frame is one level of catalog navigation: its URL, breadcrumb label,
// entries accumulated across "load more", and the current pagination cursor.
type Frame struct {
	URL         string
	Title       string
	Entries     []Entry
	Subcatalogs []SubcatalogLink
	Pagination  Pagination

	state      FrameState
	seen       map[string]struct{}
	pages      []string
	generation uint64
}

func (f *Frame) busy() bool {
	return f.state == FrameLoading || f.state == FrameLoadingMore
}

// apply replaces the frame's content with a freshly parsed page.
func (f *Frame) apply(page *Page) {
	f.Entries = nil
	f.Subcatalogs = page.Subcatalogs
	f.Pagination = page.Pagination
	f.seen = make(map[string]struct{})
	f.pages = []string{page.URL}
	if f.Title == "" {
		f.Title = page.Title
	}
	f.appendEntries(page.Entries)
}

// appendPage appends a follow-up page, keeping entries in arrival order and
// advancing the pagination cursor.
func (f *Frame) appendPage(page *Page) {
	f.appendEntries(page.Entries)
	f.Subcatalogs = append(f.Subcatalogs, page.Subcatalogs...)
	f.Pagination = page.Pagination
	f.pages = append(f.pages, page.URL)
}

func (f *Frame) appendEntries(entries []Entry) {
	for _, entry := range entries {
		if _, ok := f.seen[entry.ID]; ok {
			continue
		}
		f.seen[entry.ID] = struct{}{}
		f.Entries = append(f.Entries, entry)
	}
}

// Session owns the traversal state of one catalog: an ordered stack of
// frames forming the navigation path from root to the current level.
// Navigation operations are serialized per frame: a second request while a
// fetch is in flight is rejected with ErrBusy instead of issuing a duplicate
// network call. A result arriving for a frame that has since been popped or
// refreshed is discarded (ErrCancelled), never applied.
type Session struct {
	ID      string
	fetcher *Fetcher
	parser  *Parser

	mu         sync.Mutex
	stack      []*Frame
	generation uint64
}

func NewSession(id string, fetcher *Fetcher, parser *Parser) *Session {
	return &Session{
		ID:      id,
		fetcher: fetcher,
		parser:  parser,
	}
}

// Open fetches the root catalog and installs it as the bottom frame. A
// failed open leaves the session empty so it can be retried.
func (s *Session) Open(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	if len(s.stack) != 0 {
		s.mu.Unlock()
		return errors.New("session already open")
	}
	frame := &Frame{URL: rawURL, state: FrameLoading}
	frame.generation = s.nextGenerationLocked()
	gen := frame.generation
	s.stack = append(s.stack, frame)
	s.mu.Unlock()

	page, err := s.fetchPage(ctx, rawURL, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(frame, gen) {
		return ErrCancelled
	}
	if err != nil {
		s.popLocked()
		return err
	}
	frame.apply(page)
	frame.state = FrameLoaded
	return nil
}

// NavigateInto pushes a new frame for link and loads it. On failure the
// frame is popped back off: a broken frame is never left on the stack.
func (s *Session) NavigateInto(ctx context.Context, link SubcatalogLink) error {
	s.mu.Lock()
	current := s.currentLocked()
	if current == nil {
		s.mu.Unlock()
		return errors.New("session not open")
	}
	if current.busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	frame := &Frame{URL: link.Href, Title: link.Title, state: FrameLoading}
	frame.generation = s.nextGenerationLocked()
	gen := frame.generation
	s.stack = append(s.stack, frame)
	s.mu.Unlock()

	page, err := s.fetchPage(ctx, link.Href, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(frame, gen) {
		// Popped while the fetch was in flight, e.g. by GoBack
		return ErrCancelled
	}
	if err != nil {
		s.popLocked()
		return err
	}
	frame.apply(page)
	frame.state = FrameLoaded
	return nil
}

// GoBack pops the current frame, restoring the previous level's accumulated
// entries without refetching. No-op at the root. Popping a frame with a
// fetch in flight cancels that fetch's result.
func (s *Session) GoBack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) <= 1 {
		return
	}
	s.popLocked()
}

// LoadMore fetches the current frame's next page and appends its entries,
// deduplicated by id, in arrival order. A failed load keeps the accumulated
// entries untouched.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	frame := s.currentLocked()
	if frame == nil {
		s.mu.Unlock()
		return errors.New("session not open")
	}
	if frame.busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	if !frame.Pagination.HasMore() {
		s.mu.Unlock()
		return ErrNoMorePages
	}
	nextURL := frame.Pagination.Next
	frame.state = FrameLoadingMore
	frame.generation = s.nextGenerationLocked()
	gen := frame.generation
	s.mu.Unlock()

	page, err := s.fetchPage(ctx, nextURL, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(frame, gen) {
		return ErrCancelled
	}
	frame.state = FrameLoaded
	if err != nil {
		return err
	}
	frame.appendPage(page)
	return nil
}

// Refresh refetches the current frame's original URL, replacing accumulated
// entries and resetting the pagination cursor. The breadcrumb position is
// unchanged. On failure the previous entries are kept.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	frame := s.currentLocked()
	if frame == nil {
		s.mu.Unlock()
		return errors.New("session not open")
	}
	if frame.busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	frameURL := frame.URL
	hadContent := frame.state == FrameLoaded
	stalePages := append([]string(nil), frame.pages...)
	frame.state = FrameLoading
	frame.generation = s.nextGenerationLocked()
	gen := frame.generation
	s.mu.Unlock()

	// Drop every page this frame fetched so a later "load more" cannot
	// serve a stale follow-up page from the cache
	for _, pageURL := range stalePages {
		s.fetcher.Invalidate(pageURL)
	}

	page, err := s.fetchPage(ctx, frameURL, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(frame, gen) {
		return ErrCancelled
	}
	if err != nil {
		if hadContent {
			frame.state = FrameLoaded
		} else {
			frame.state = FrameEmpty
		}
		return err
	}
	frame.apply(page)
	frame.state = FrameLoaded
	return nil
}

// fetchPage fetches and parses one catalog page, retrying once on a
// transient network error before surfacing the failure.
func (s *Session) fetchPage(ctx context.Context, rawURL string, fresh bool) (*Page, error) {
	fetch := s.fetcher.Fetch
	if fresh {
		fetch = s.fetcher.FetchFresh
	}

	data, err := fetch(ctx, rawURL)
	if err != nil && IsTransient(err) && ctx.Err() == nil {
		slog.Debug("Transient fetch error, retrying once", "session", s.ID, "url", rawURL, "error", err)
		data, err = s.fetcher.FetchFresh(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	page, err := s.parser.Run(data, rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return page, nil
}

// Entries returns a copy of the current frame's accumulated entries.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.currentLocked()
	if frame == nil {
		return nil
	}
	entries := make([]Entry, len(frame.Entries))
	copy(entries, frame.Entries)
	return entries
}

// Subcatalogs returns a copy of the current frame's subcatalog links.
func (s *Session) Subcatalogs() []SubcatalogLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.currentLocked()
	if frame == nil {
		return nil
	}
	links := make([]SubcatalogLink, len(frame.Subcatalogs))
	copy(links, frame.Subcatalogs)
	return links
}

// EntryByID looks an entry up in the current frame's accumulated set.
func (s *Session) EntryByID(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.currentLocked()
	if frame == nil {
		return Entry{}, false
	}
	for _, entry := range frame.Entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// Breadcrumbs returns the ordered list of frame titles from root to the
// current level.
func (s *Session) Breadcrumbs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	crumbs := make([]string, 0, len(s.stack))
	for _, frame := range s.stack {
		crumbs = append(crumbs, frame.Title)
	}
	return crumbs
}

// HasMore reports whether the current frame has a next page to load.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.currentLocked()
	return frame != nil && frame.Pagination.HasMore()
}

// Depth returns the navigation stack depth.
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// CurrentURL returns the current frame's URL, or "" for an unopened session.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.currentLocked()
	if frame == nil {
		return ""
	}
	return frame.URL
}

func (s *Session) currentLocked() *Frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *Session) popLocked() {
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *Session) nextGenerationLocked() uint64 {
	s.generation++
	return s.generation
}

// activeLocked reports whether frame is still the current frame and its
// request token has not been superseded.
func (s *Session) activeLocked(frame *Frame, generation uint64) bool {
	return s.currentLocked() == frame && frame.generation == generation
}
