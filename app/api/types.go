package api

import (
	"time"

	"github.com/tverberg/opds-hub/app/catalog"
	"github.com/tverberg/opds-hub/app/download"
)

type presetResponse struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type openSessionRequest struct {
	URL     string `json:"url"`
	Catalog string `json:"catalog"`
}

type navigateRequest struct {
	Href string `json:"href" binding:"required"`
}

type entryRow struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Authors   []string   `json:"authors,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Formats   []string   `json:"formats,omitempty"`
	InLibrary bool       `json:"in_library"`
}

type subcatalogRow struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

type rowsResponse struct {
	SessionID   string          `json:"session_id"`
	Breadcrumbs []string        `json:"breadcrumbs"`
	Subcatalogs []subcatalogRow `json:"subcatalogs"`
	Entries     []entryRow      `json:"entries"`
	HasMore     bool            `json:"has_more"`
}

type downloadRequest struct {
	EntryIDs []string `json:"entry_ids" binding:"required"`
	Format   string   `json:"format"`
}

type taskResponse struct {
	ID      string `json:"id"`
	EntryID string `json:"entry_id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

type batchResponse struct {
	ID      string            `json:"id"`
	Tasks   []taskResponse    `json:"tasks"`
	Summary *download.Summary `json:"summary,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toEntryRows(entries []catalog.Entry) []entryRow {
	rows := make([]entryRow, 0, len(entries))
	for _, entry := range entries {
		row := entryRow{
			ID:        entry.ID,
			Title:     entry.Title,
			Authors:   entry.Authors,
			UpdatedAt: entry.UpdatedAt,
			InLibrary: entry.InLibrary,
		}
		for _, link := range entry.Links {
			row.Formats = append(row.Formats, link.MimeType)
		}
		rows = append(rows, row)
	}
	return rows
}

func toSubcatalogRows(links []catalog.SubcatalogLink) []subcatalogRow {
	rows := make([]subcatalogRow, 0, len(links))
	for _, link := range links {
		rows = append(rows, subcatalogRow{Href: link.Href, Title: link.Title})
	}
	return rows
}

func toTaskResponses(tasks []download.Task) []taskResponse {
	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskResponse{
			ID:      task.ID,
			EntryID: task.EntryID,
			Title:   task.Title,
			Status:  string(task.Status),
			Reason:  task.Reason,
			Path:    task.Path,
			Size:    task.Size,
		})
	}
	return responses
}
