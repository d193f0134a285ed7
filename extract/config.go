package extract

import (
	"log/slog"
	"time"
)

// Config tunes extraction.
type Config struct {
	// MaxImageDimension caps the longest side of staged images. Larger
	// images are downsampled before staging.
	MaxImageDimension int `yaml:"max_image_dimension"`

	// FetchLinkedPages fetches shared web URLs and imports their readable
	// body text. When false a shared URL yields only the link itself.
	FetchLinkedPages bool `yaml:"fetch_linked_pages"`

	// FetchTimeout bounds each linked-page fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxImageDimension <= 0 {
		c.MaxImageDimension = 3000
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
