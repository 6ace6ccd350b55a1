package bookpipe

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures the chapter discovery pipeline.
type Config struct {
	// MaxFileSize is the maximum document size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// TocScanPages bounds the search for a rendered table-of-contents page
	// (default: 20).
	TocScanPages int `json:"toc_scan_pages" yaml:"toc_scan_pages"`

	// TocOffsetSamples is how many TOC entries are probed to estimate the
	// printed-to-physical page offset (default: 3).
	TocOffsetSamples int `json:"toc_offset_samples" yaml:"toc_offset_samples"`

	// TocOffsetWindow is the neighborhood of pages searched around a printed
	// page number when probing one offset sample (default: 10).
	TocOffsetWindow int `json:"toc_offset_window" yaml:"toc_offset_window"`

	// HeadingFragments is how many leading text fragments per page the
	// content heading scan inspects (default: 10).
	HeadingFragments int `json:"heading_fragments" yaml:"heading_fragments"`

	// MaxTitleLen is the chapter title truncation length (default: 60).
	MaxTitleLen int `json:"max_title_len" yaml:"max_title_len"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.TocScanPages <= 0 {
		c.TocScanPages = 20
	}
	if c.TocOffsetSamples <= 0 {
		c.TocOffsetSamples = 3
	}
	if c.TocOffsetWindow <= 0 {
		c.TocOffsetWindow = 10
	}
	if c.HeadingFragments <= 0 {
		c.HeadingFragments = 10
	}
	if c.MaxTitleLen <= 0 {
		c.MaxTitleLen = 60
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
