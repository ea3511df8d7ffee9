package themes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/getgauge/common"
	"github.com/your-org/ci-breakage-dashboard/pkg/charts"
	"github.com/your-org/ci-breakage-dashboard/pkg/config"
	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
)

// DefaultTheme is used when the configured theme is unknown
const DefaultTheme = "default"

// Theme is the fixed look of the dashboard pages and charts
type Theme struct {
	Name       string
	Background string
	Text       string
	Muted      string
	Accent     string
	Border     string
	Chart      charts.Theme
}

var builtin = map[string]Theme{
	"default": {
		Name:       "default",
		Background: "#ffffff",
		Text:       "#222222",
		Muted:      "#777777",
		Accent:     "#1f6feb",
		Border:     "#dddddd",
		Chart: charts.Theme{
			Colors:     []string{"#7cb5ec", "#434348", "#90ed7d", "#f7a35c", "#8085e9", "#f15c80", "#e4d354", "#2b908f", "#f45b5b", "#91e8e1"},
			FontFamily: "\"Lucida Grande\", \"Lucida Sans Unicode\", Arial, Helvetica, sans-serif",
			TextColor:  "black",
		},
	},
	"dark": {
		Name:       "dark",
		Background: "#1e1e1e",
		Text:       "#e0e0e0",
		Muted:      "#9e9e9e",
		Accent:     "#58a6ff",
		Border:     "#3a3a3a",
		Chart: charts.Theme{
			Colors:          []string{"#2b908f", "#90ee7e", "#f45b5b", "#7798BF", "#aaeeee", "#ff0066", "#eeaaee", "#55BF3B", "#DF5353", "#7798BF"},
			FontFamily:      "\"Unica One\", sans-serif",
			TextColor:       "#e0e0e0",
			BackgroundColor: "#1e1e1e",
		},
	},
}

// Manager resolves the configured theme and its static assets
type Manager struct {
	config *config.Config
}

// NewManager creates a new theme manager
func NewManager(cfg *config.Config) *Manager {
	return &Manager{config: cfg}
}

// Lookup returns a built-in theme by name
func Lookup(name string) (Theme, bool) {
	t, ok := builtin[name]
	return t, ok
}

// Current returns the configured theme, falling back to the default
func (m *Manager) Current() Theme {
	if t, ok := Lookup(m.config.Theme); ok {
		return t
	}
	if m.config.Theme != "" && m.config.Theme != DefaultTheme {
		logger.Warnf("Unknown theme %q, using %q", m.config.Theme, DefaultTheme)
	}
	return builtin[DefaultTheme]
}

// Names lists the built-in themes
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CopyAssets mirrors the assets directory into outputDir. A missing assets
// directory is not an error; pages then render without icons
func (m *Manager) CopyAssets(outputDir string) error {
	assetsPath := m.config.AssetsDir
	if assetsPath == "" {
		return nil
	}
	if !filepath.IsAbs(assetsPath) {
		if abs, err := filepath.Abs(assetsPath); err == nil {
			assetsPath = abs
		}
	}

	if _, err := os.Stat(assetsPath); os.IsNotExist(err) {
		logger.Debugf("No assets directory at %s, skipping", assetsPath)
		return nil
	}

	if _, err := common.MirrorDir(assetsPath, outputDir); err != nil {
		return fmt.Errorf("failed to copy assets from %s: %w", assetsPath, err)
	}
	return nil
}
