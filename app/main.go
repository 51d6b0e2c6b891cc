package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tverberg/opds-hub/app/api"
	"github.com/tverberg/opds-hub/app/catalog"
	"github.com/tverberg/opds-hub/app/cfg"
	"github.com/tverberg/opds-hub/app/download"
	"github.com/tverberg/opds-hub/app/library"
)

const newspaperTitlePattern = `(?i)\b(daily|weekly|gazette|herald|tribune|newspaper)\b`

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting OPDS Hub", "version", appCfg.Version)

	store, err := library.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open library", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Library opened", "path", appCfg.DBPath)

	presets := catalog.NewPresetCache(appCfg.CatalogsDir)
	if err := presets.Run(); err != nil {
		slog.Error("Failed to load catalog presets", "dir", appCfg.CatalogsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog presets loaded", "count", presets.GetPresetCount())

	metrics := catalog.NewMetrics()

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
	}

	fetcher, err := catalog.NewFetcher(httpClient, appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second, appCfg.MaxResponseSize, metrics)
	if err != nil {
		slog.Error("Failed to create fetcher", "error", err)
		os.Exit(1)
	}

	parser := catalog.NewParser(metrics)

	filterer, err := catalog.NewFilterer(newspaperTitlePattern)
	if err != nil {
		slog.Error("Failed to create filterer", "error", err)
		os.Exit(1)
	}

	sessions := catalog.NewSessions(fetcher, parser)

	orchestrator := download.NewOrchestrator(httpClient, store, appCfg.DownloadDir,
		appCfg.ParallelDownloads, appCfg.UserAgent, metrics)

	handler := api.NewHandler(presets, sessions, filterer, store, orchestrator)
	server := api.NewServer(handler, metrics)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("OPDS Hub shutdown complete")
}
