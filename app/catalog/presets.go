package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PresetCache loads named catalog sources from *.yml files in a directory.
// Presets are caller-owned configuration; the engine only reads them.
type PresetCache struct {
	presetsDir string
	cache      map[string]*Preset
	mu         sync.RWMutex
}

func NewPresetCache(presetsDir string) *PresetCache {
	return &PresetCache{
		presetsDir: presetsDir,
		cache:      make(map[string]*Preset),
	}
}

func (pc *PresetCache) Run() error {
	if _, err := os.Stat(pc.presetsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(pc.presetsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		preset, err := pc.LoadPreset(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Catalog preset loaded", "catalog", name, "url", preset.URL)
	}

	return nil
}

func (pc *PresetCache) LoadPreset(name string) (*Preset, error) {
	presetFile := filepath.Join(pc.presetsDir, name+".yml")

	data, err := os.ReadFile(presetFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset file: %w", err)
	}
	preset.Name = name

	if err := validatePreset(&preset); err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", presetFile, err)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.cache[preset.Name] = &preset

	return &preset, nil
}

func (pc *PresetCache) GetPreset(name string) (*Preset, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	preset, ok := pc.cache[name]
	if !ok {
		return nil, fmt.Errorf("catalog preset with name '%s' not found", name)
	}
	return preset, nil
}

func (pc *PresetCache) GetPresets() map[string]*Preset {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	presetsCopy := make(map[string]*Preset, len(pc.cache))
	for name, preset := range pc.cache {
		presetsCopy[name] = preset
	}
	return presetsCopy
}

func (pc *PresetCache) GetPresetCount() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.cache)
}

func validatePreset(preset *Preset) error {
	if preset.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(preset.URL, "http://") && !strings.HasPrefix(preset.URL, "https://") {
		return fmt.Errorf("url must be absolute: %q", preset.URL)
	}
	if preset.Settings.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if preset.Settings.MaxPageSize < 0 {
		return fmt.Errorf("max_page_size cannot be negative")
	}
	return nil
}
