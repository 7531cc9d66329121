package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openspaces/spaced/pkg/config"
)

// ConfigCache serves the parsed space definition to connection handlers and
// invalidates it when the file changes on disk, so a running daemon picks up
// edits without a restart.
type ConfigCache struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu  sync.Mutex
	cfg *config.Config
}

// NewConfigCache parses the definition once and starts watching it. The
// watch covers the containing directory because most editors replace files
// rather than writing them in place.
func NewConfigCache(path string, logger zerolog.Logger) (*ConfigCache, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve space file: %w", err)
	}
	c := &ConfigCache{path: abs, logger: logger}
	if _, err := c.Load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	c.watcher = watcher
	go c.watch()
	return c, nil
}

func (c *ConfigCache) watch() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c.logger.Info().Str("file", c.path).Str("op", event.Op.String()).
				Msg("space definition changed, invalidating cache")
			c.mu.Lock()
			c.cfg = nil
			c.mu.Unlock()
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn().Err(err).Msg("space definition watcher error")
		}
	}
}

// Load returns the cached definition, re-parsing the file if the cache was
// invalidated. A definition that fails to parse leaves the cache empty so
// the next call retries.
func (c *ConfigCache) Load() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read space file: %w", err)
	}
	cfg, err := config.ParseString(string(data), filepath.Base(c.path))
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// Close stops the watcher.
func (c *ConfigCache) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}
