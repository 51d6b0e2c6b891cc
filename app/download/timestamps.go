package download

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tverberg/opds-hub/app/catalog"
	"github.com/tverberg/opds-hub/app/library"
)

// FixTimestamps applies the catalog's updated timestamps to the matching
// library records and their stored files. Catalogs served by some book
// servers report the same updated value for every entry, so this is run as
// a separate correction over entries whose timestamps are trusted. Local
// only, no network; safe to run repeatedly.
func FixTimestamps(store *library.Store, entries []catalog.Entry) error {
	for _, entry := range entries {
		if entry.UpdatedAt == nil {
			continue
		}

		matches, err := store.FindMatches(entry.ID, entry.Title, entry.Authors)
		if err != nil {
			return fmt.Errorf("failed to find matches for %q: %w", entry.Title, err)
		}
		if len(matches) == 0 {
			slog.Debug("No library match for timestamp fix", "entry", entry.ID, "title", entry.Title)
			continue
		}

		for _, book := range matches {
			if err := store.SetTimestamp(book.ID, *entry.UpdatedAt); err != nil {
				return err
			}
			if book.Path == "" {
				continue
			}
			if err := os.Chtimes(book.Path, *entry.UpdatedAt, *entry.UpdatedAt); err != nil {
				if !os.IsNotExist(err) {
					slog.Warn("Failed to update file timestamp", "path", book.Path, "error", err)
				}
			}
		}
	}
	return nil
}
