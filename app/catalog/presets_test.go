package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPresetCacheRun(t *testing.T) {
	dir := t.TempDir()

	presetContent := `url: "https://books.example.com/opds"
title: "Home Library"
settings:
  timeout: 30
  max_page_size: 2097152
`
	if err := os.WriteFile(filepath.Join(dir, "home.yml"), []byte(presetContent), 0644); err != nil {
		t.Fatalf("Failed to write preset file: %v", err)
	}

	cache := NewPresetCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cache.GetPresetCount() != 1 {
		t.Errorf("Expected 1 preset, got %d", cache.GetPresetCount())
	}

	preset, err := cache.GetPreset("home")
	if err != nil {
		t.Fatalf("Expected preset to be found, got: %v", err)
	}
	if preset.Name != "home" {
		t.Errorf("Expected name 'home', got: %s", preset.Name)
	}
	if preset.URL != "https://books.example.com/opds" {
		t.Errorf("Unexpected URL: %s", preset.URL)
	}
	if preset.Title != "Home Library" {
		t.Errorf("Unexpected title: %s", preset.Title)
	}
	if preset.Settings.Timeout != 30 {
		t.Errorf("Expected timeout 30, got %d", preset.Settings.Timeout)
	}
	if preset.Settings.MaxPageSize != 2097152 {
		t.Errorf("Expected max_page_size 2097152, got %d", preset.Settings.MaxPageSize)
	}
}

func TestPresetCacheMissingDir(t *testing.T) {
	cache := NewPresetCache(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := cache.Run(); err != nil {
		t.Errorf("Expected missing directory to be tolerated, got: %v", err)
	}
	if cache.GetPresetCount() != 0 {
		t.Errorf("Expected 0 presets, got %d", cache.GetPresetCount())
	}
}

func TestPresetCacheGetUnknown(t *testing.T) {
	cache := NewPresetCache(t.TempDir())
	if _, err := cache.GetPreset("missing"); err == nil {
		t.Error("Expected an error for an unknown preset")
	}
}

func TestPresetValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing url", `title: "No URL"`},
		{"relative url", `url: "/opds"`},
		{"negative timeout", "url: \"https://books.example.com/opds\"\nsettings:\n  timeout: -1\n"},
		{"negative max_page_size", "url: \"https://books.example.com/opds\"\nsettings:\n  max_page_size: -1\n"},
		{"malformed yaml", "url: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cache := NewPresetCache(dir)
			if err := cache.Run(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestPresetCacheGetPresetsReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yml"), []byte(`url: "https://a.example.com/opds"`), 0644); err != nil {
		t.Fatal(err)
	}

	cache := NewPresetCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	presets := cache.GetPresets()
	delete(presets, "a")

	if cache.GetPresetCount() != 1 {
		t.Error("Mutating the returned map must not affect the cache")
	}
}
