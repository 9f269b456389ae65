package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"aprsbot/pkg/logx"
)

// Manager loads the config file and re-reads it when it changes.
//
// Reloads are pull-based: the bot calls CheckUpdated() at the start of every
// scheduler pass, and the manager compares the file's mtime against the last
// load. Watch() is an optional helper that marks the config dirty through
// fsnotify, covering editors whose rewrites are invisible at mtime
// granularity; the reload itself still happens inside CheckUpdated() so the
// pass ordering never changes.
type Manager struct {
	path string

	mu    sync.RWMutex
	cfg   *Config
	mtime time.Time

	dirty atomic.Bool

	log       logx.Logger
	validator func(cfg *Config) error
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a validation hook applied after Config.Validate on
// every load. The bot uses it to compile rule-bulletin expressions.
func (m *Manager) SetValidator(fn func(cfg *Config) error) {
	m.validator = fn
}

func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Load parses, validates and commits the config. Used at startup where a bad
// config is fatal.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := m.validate(cfg); err != nil {
		return nil, err
	}
	st, err := os.Stat(m.path)
	if err != nil {
		return nil, err
	}
	m.commit(cfg, st.ModTime())
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// CheckUpdated reloads the config if the file changed since the last load.
// It returns the fresh config and true on a successful reload. On any
// parse or validation failure the previous config stays in effect and
// (nil, false) is returned.
func (m *Manager) CheckUpdated() (*Config, bool) {
	st, err := os.Stat(m.path)
	if err != nil {
		m.log.Warn("config stat failed", logx.String("path", m.path), logx.Err(err))
		return nil, false
	}

	dirty := m.dirty.Swap(false)
	m.mu.RLock()
	unchanged := st.ModTime().Equal(m.mtime)
	m.mu.RUnlock()
	if unchanged && !dirty {
		return nil, false
	}

	cfg, err := m.Parse()
	if err == nil {
		err = m.validate(cfg)
	}
	if err != nil {
		m.log.Warn("config reload rejected, keeping previous",
			logx.String("path", m.path), logx.Err(err))
		// Record the mtime anyway so a broken file is not re-parsed on
		// every pass; the next write will trigger another attempt.
		m.mu.Lock()
		m.mtime = st.ModTime()
		m.mu.Unlock()
		return nil, false
	}

	m.commit(cfg, st.ModTime())
	m.log.Info("configuration reloaded", logx.String("path", m.path))
	return cfg, true
}

func (m *Manager) commit(cfg *Config, mtime time.Time) {
	m.mu.Lock()
	m.cfg = cfg
	m.mtime = mtime
	m.mu.Unlock()
}

func (m *Manager) validate(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.validator != nil {
		return m.validator(cfg)
	}
	return nil
}

// Watch marks the config dirty whenever the file changes on disk. It blocks
// until ctx is done. Errors creating the watcher are returned so the caller
// can decide to run in poll-only mode.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Compare by basename; editors often replace the file via rename.
			if strings.EqualFold(filepath.Base(ev.Name), file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
					m.dirty.Store(true)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				m.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
			}
		}
	}
}
