package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tverberg/opds-hub/app/catalog"
	"github.com/tverberg/opds-hub/app/library"
)

// Orchestrator transfers selected catalog entries into the local library.
// Each batch runs its items through a bounded worker pool; one item's
// failure never aborts the rest.
type Orchestrator struct {
	client    *http.Client
	store     *library.Store
	dir       string
	parallel  int
	userAgent string
	metrics   *catalog.Metrics

	mu      sync.RWMutex
	batches map[string]*Batch
}

func NewOrchestrator(client *http.Client, store *library.Store, dir string, parallel int, userAgent string, metrics *catalog.Metrics) *Orchestrator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	if parallel < 1 {
		parallel = 1
	}
	return &Orchestrator{
		client:    client,
		store:     store,
		dir:       dir,
		parallel:  parallel,
		userAgent: userAgent,
		metrics:   metrics,
		batches:   make(map[string]*Batch),
	}
}

// Batch is one download run over a selection of entries.
type Batch struct {
	ID string

	mu       sync.RWMutex
	tasks    []*Task
	onUpdate func(Task)
	summary  *Summary
	done     chan struct{}
	cancel   context.CancelFunc
}

// Start creates the per-entry tasks and begins transferring in the
// background. An entry without a link matching the format preference falls
// back to its first acquisition link; an entry with no links at all becomes
// a failed task up front. Task transitions are reported one at a time
// through onUpdate (may be nil).
func (o *Orchestrator) Start(ctx context.Context, entries []catalog.Entry, formatPreference string, onUpdate func(Task)) *Batch {
	runCtx, cancel := context.WithCancel(ctx)
	batch := &Batch{
		ID:       uuid.NewString(),
		onUpdate: onUpdate,
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	for _, entry := range entries {
		task := &Task{
			ID:      uuid.NewString(),
			EntryID: entry.ID,
			Title:   entry.Title,
			Status:  StatusPending,
		}
		link, err := resolveLink(entry, formatPreference)
		if err != nil {
			task.Status = StatusFailed
			task.Reason = err.Error()
		} else {
			task.Link = link
		}
		batch.tasks = append(batch.tasks, task)
	}

	o.mu.Lock()
	o.batches[batch.ID] = batch
	o.mu.Unlock()

	go o.run(runCtx, batch)

	return batch
}

// Get returns a previously started batch.
func (o *Orchestrator) Get(id string) (*Batch, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	batch, ok := o.batches[id]
	return batch, ok
}

func (o *Orchestrator) run(ctx context.Context, batch *Batch) {
	defer close(batch.done)

	queue := make(chan *Task)
	var wg sync.WaitGroup

	for i := 0; i < o.parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				o.transferTask(ctx, batch, task)
			}
		}()
	}

	for _, task := range batch.tasks {
		if task.Status.IsTerminal() {
			batch.notify(task)
			continue
		}
		// Cancellation takes effect between items: queued work stops,
		// started transfers finish or abort via their request context.
		if ctx.Err() != nil {
			batch.setCancelled(task)
			continue
		}
		select {
		case <-ctx.Done():
			batch.setCancelled(task)
		case queue <- task:
		}
	}
	close(queue)
	wg.Wait()

	summary := &Summary{Failures: make(map[string]string)}
	for _, task := range batch.tasks {
		switch task.Status {
		case StatusSucceeded:
			summary.Succeeded++
		default:
			summary.Failed++
			summary.Failures[task.EntryID] = task.Reason
			if task.Cancelled {
				summary.Cancelled++
			}
		}
	}

	batch.mu.Lock()
	batch.summary = summary
	batch.mu.Unlock()

	slog.Info("Download batch finished", "batch", batch.ID,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
}

// transferTask downloads one book, retrying once on a transient network
// failure, and registers the result in the library.
func (o *Orchestrator) transferTask(ctx context.Context, batch *Batch, task *Task) {
	// A task dequeued after cancellation never starts its transfer
	if ctx.Err() != nil {
		batch.setCancelled(task)
		return
	}

	batch.mu.Lock()
	task.Status = StatusInProgress
	task.Reason = ""
	task.StartedAt = time.Now()
	batch.mu.Unlock()
	batch.notify(task)

	path, sum, size, err := o.transfer(ctx, task)
	if err != nil && isTransient(err) && ctx.Err() == nil {
		slog.Debug("Transient transfer error, retrying once", "entry", task.EntryID, "error", err)
		path, sum, size, err = o.transfer(ctx, task)
	}

	if err != nil {
		o.metrics.IncTransfer("failed")
		transferErr := &TransferError{EntryID: task.EntryID, Err: err}
		batch.mu.Lock()
		task.Status = StatusFailed
		task.Reason = transferErr.Error()
		task.Cancelled = errors.Is(err, context.Canceled)
		task.FinishedAt = time.Now()
		batch.mu.Unlock()
		batch.notify(task)
		return
	}

	batch.mu.Lock()
	task.Path = path
	task.SHA256 = sum
	task.Size = size
	task.FinishedAt = time.Now()
	batch.mu.Unlock()

	if o.store != nil {
		book := library.Book{
			UUID:   task.EntryID,
			Title:  task.Title,
			Format: formatLabel(task.Link),
			Path:   path,
		}
		if _, err := o.store.Add(book); err != nil {
			slog.Warn("Failed to register downloaded book", "entry", task.EntryID, "error", err)
		}
	}

	o.metrics.IncTransfer("succeeded")
	batch.setStatus(task, StatusSucceeded, "")
}

// transfer performs the HTTP download with an atomic write: the body is
// streamed to a temp file and moved into place only on success, so a failed
// or cancelled transfer never leaves a partial book behind.
func (o *Orchestrator) transfer(ctx context.Context, task *Task) (string, string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", task.Link.Href, nil)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", 0, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, task.Link.Href)
	}

	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(o.dir, ".transfer-*.part")
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	reader := newHashingReader(resp.Body)
	_, copyErr := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr != nil {
			return "", "", 0, copyErr
		}
		return "", "", 0, closeErr
	}

	finalPath := filepath.Join(o.dir, bookFilename(task))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", "", 0, fmt.Errorf("failed to move book into place: %w", err)
	}

	return finalPath, reader.SHA256(), reader.Size(), nil
}

// Wait blocks until every item has reached a terminal state and returns the
// batch summary.
func (b *Batch) Wait() Summary {
	<-b.done
	b.mu.RLock()
	defer b.mu.RUnlock()
	return *b.summary
}

// Cancel stops the batch between items. Items not yet started fail with a
// cancellation reason and never issue a request; an in-flight transfer
// finishes or aborts through its request context.
func (b *Batch) Cancel() {
	b.cancel()
}

// Tasks returns a snapshot of the batch's task states.
func (b *Batch) Tasks() []Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tasks := make([]Task, 0, len(b.tasks))
	for _, task := range b.tasks {
		tasks = append(tasks, *task)
	}
	return tasks
}

// Summary returns the final accounting, or nil while the batch is running.
func (b *Batch) SummarySnapshot() *Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.summary == nil {
		return nil
	}
	summary := *b.summary
	return &summary
}

func (b *Batch) setStatus(task *Task, status Status, reason string) {
	b.mu.Lock()
	task.Status = status
	task.Reason = reason
	b.mu.Unlock()
	b.notify(task)
}

func (b *Batch) setCancelled(task *Task) {
	b.mu.Lock()
	task.Status = StatusFailed
	task.Reason = context.Canceled.Error()
	task.Cancelled = true
	b.mu.Unlock()
	b.notify(task)
}

func (b *Batch) notify(task *Task) {
	if b.onUpdate == nil {
		return
	}
	b.mu.RLock()
	snapshot := *task
	b.mu.RUnlock()
	b.onUpdate(snapshot)
}

// resolveLink picks the acquisition link matching the preferred format, the
// first link otherwise, or fails when the entry has none.
func resolveLink(entry catalog.Entry, formatPreference string) (catalog.AcquisitionLink, error) {
	if len(entry.Links) == 0 {
		return catalog.AcquisitionLink{}, ErrNoAcquisitionLink
	}
	if formatPreference != "" {
		pref := strings.ToLower(formatPreference)
		for _, link := range entry.Links {
			if strings.Contains(strings.ToLower(link.MimeType), pref) {
				return link, nil
			}
			if strings.EqualFold(strings.TrimPrefix(filepath.Ext(linkPath(link)), "."), pref) {
				return link, nil
			}
		}
	}
	return entry.Links[0], nil
}

func linkPath(link catalog.AcquisitionLink) string {
	parsed, err := url.Parse(link.Href)
	if err != nil {
		return link.Href
	}
	return parsed.Path
}

var mimeExtensions = map[string]string{
	"application/epub+zip":           ".epub",
	"application/pdf":                ".pdf",
	"application/x-mobipocket-ebook": ".mobi",
	"application/fb2+zip":            ".fb2",
}

func formatLabel(link catalog.AcquisitionLink) string {
	if ext, ok := mimeExtensions[link.MimeType]; ok {
		return strings.TrimPrefix(ext, ".")
	}
	if ext := filepath.Ext(linkPath(link)); ext != "" {
		return strings.TrimPrefix(strings.ToLower(ext), ".")
	}
	return ""
}

// bookFilename derives a safe destination filename from the task title and
// link format.
func bookFilename(task *Task) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, task.Title)
	name = strings.TrimSpace(name)
	if name == "" {
		name = task.EntryID
	}
	if name == "" {
		name = task.ID
	}

	ext, ok := mimeExtensions[task.Link.MimeType]
	if !ok {
		if ext = strings.ToLower(filepath.Ext(linkPath(task.Link))); ext == "" {
			ext = ".bin"
		}
	}
	return name + ext
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
