package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tverberg/opds-hub/app/catalog"
	"github.com/tverberg/opds-hub/app/cfg"
	"github.com/tverberg/opds-hub/app/download"
	"github.com/tverberg/opds-hub/app/library"
)

type Handler struct {
	presets      *catalog.PresetCache
	sessions     *catalog.Sessions
	filterer     *catalog.Filterer
	store        *library.Store
	orchestrator *download.Orchestrator
}

func NewHandler(presets *catalog.PresetCache, sessions *catalog.Sessions,
	filterer *catalog.Filterer, store *library.Store,
	orchestrator *download.Orchestrator) *Handler {
	return &Handler{
		presets:      presets,
		sessions:     sessions,
		filterer:     filterer,
		store:        store,
		orchestrator: orchestrator,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  cfg.Get().Version,
		"sessions": h.sessions.Count(),
	})
}

func (h *Handler) ListCatalogs(c *gin.Context) {
	presets := h.presets.GetPresets()
	responses := make([]presetResponse, 0, len(presets))
	for _, preset := range presets {
		responses = append(responses, presetResponse{
			Name:  preset.Name,
			Title: preset.Title,
			URL:   preset.URL,
		})
	}
	sort.Slice(responses, func(i, j int) bool { return responses[i].Name < responses[j].Name })
	c.JSON(http.StatusOK, responses)
}

// OpenSession creates a session and loads the root catalog. The catalog is
// named either directly by URL or via a configured preset.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rootURL := req.URL
	if rootURL == "" && req.Catalog != "" {
		preset, err := h.presets.GetPreset(req.Catalog)
		if err != nil {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		rootURL = preset.URL
	}
	if rootURL == "" {
		rootURL = cfg.Get().OpdsURL
	}
	if rootURL == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "url or catalog is required"})
		return
	}

	session, err := h.sessions.Create()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	if err := session.Open(c.Request.Context(), rootURL); err != nil {
		h.sessions.Remove(session.ID)
		h.renderTraversalError(c, err)
		return
	}

	slog.Info("Session opened", "session", session.ID, "url", rootURL)
	h.renderRows(c, session)
}

func (h *Handler) CloseSession(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	h.sessions.Remove(session.ID)
	c.Status(http.StatusNoContent)
}

// GetRows returns the render-ready row set of the current frame: classified
// against a fresh library snapshot, then filtered by the query parameters.
func (h *Handler) GetRows(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	h.renderRows(c, session)
}

func (h *Handler) Navigate(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	link := catalog.SubcatalogLink{Href: req.Href}
	for _, candidate := range session.Subcatalogs() {
		if candidate.Href == req.Href {
			link = candidate
			break
		}
	}

	if err := session.NavigateInto(c.Request.Context(), link); err != nil {
		h.renderTraversalError(c, err)
		return
	}
	h.renderRows(c, session)
}

func (h *Handler) GoBack(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	session.GoBack()
	h.renderRows(c, session)
}

func (h *Handler) LoadMore(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err := session.LoadMore(c.Request.Context()); err != nil {
		h.renderTraversalError(c, err)
		return
	}
	h.renderRows(c, session)
}

func (h *Handler) Refresh(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err := session.Refresh(c.Request.Context()); err != nil {
		h.renderTraversalError(c, err)
		return
	}
	h.renderRows(c, session)
}

// StartDownload begins a batch transfer of the selected entries. Selection
// is by entry id within the session's current frame; ids of entries that are
// not present are rejected up front.
func (h *Handler) StartDownload(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(req.EntryIDs) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "entry_ids must not be empty"})
		return
	}

	entries := make([]catalog.Entry, 0, len(req.EntryIDs))
	for _, id := range req.EntryIDs {
		entry, ok := session.EntryByID(id)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown entry id: " + id})
			return
		}
		entries = append(entries, entry)
	}

	format := req.Format
	if format == "" {
		format = cfg.Get().Format
	}

	// The batch outlives the HTTP request that started it
	batch := h.orchestrator.Start(context.WithoutCancel(c.Request.Context()), entries, format, nil)

	slog.Info("Download batch started", "batch", batch.ID, "session", session.ID, "items", len(entries))
	c.JSON(http.StatusAccepted, batchResponse{ID: batch.ID, Tasks: toTaskResponses(batch.Tasks())})
}

func (h *Handler) GetDownload(c *gin.Context) {
	batch, ok := h.orchestrator.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "download batch not found"})
		return
	}
	c.JSON(http.StatusOK, batchResponse{
		ID:      batch.ID,
		Tasks:   toTaskResponses(batch.Tasks()),
		Summary: batch.SummarySnapshot(),
	})
}

func (h *Handler) CancelDownload(c *gin.Context) {
	batch, ok := h.orchestrator.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "download batch not found"})
		return
	}
	batch.Cancel()
	c.Status(http.StatusAccepted)
}

// FixTimestamps applies feed timestamps of the session's current entries to
// the matching library records. Local metadata correction only.
func (h *Handler) FixTimestamps(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err := download.FixTimestamps(h.store, session.Entries()); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) renderRows(c *gin.Context, session *catalog.Session) {
	index, err := h.store.Snapshot()
	if err != nil {
		slog.Error("Failed to snapshot library", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	state := catalog.FilterState{
		Query:          c.Query("query"),
		HideOwned:      queryFlag(c, "hide_owned", cfg.Get().HideOwned),
		HideNewspapers: queryFlag(c, "hide_newspapers", cfg.Get().HideNewspapers),
	}

	classified := h.filterer.Classify(session.Entries(), index)
	visible := h.filterer.Run(classified, state)

	c.JSON(http.StatusOK, rowsResponse{
		SessionID:   session.ID,
		Breadcrumbs: session.Breadcrumbs(),
		Subcatalogs: toSubcatalogRows(session.Subcatalogs()),
		Entries:     toEntryRows(visible),
		HasMore:     session.HasMore(),
	})
}

func (h *Handler) renderTraversalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrBusy):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrCancelled):
		// Superseded by a competing operation; nothing was applied
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrNoMorePages):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.Error("Catalog traversal failed", "error", err)
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

func queryFlag(c *gin.Context, name string, fallback bool) bool {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
