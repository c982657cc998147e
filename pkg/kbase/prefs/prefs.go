// Package prefs persists dashboard preferences (theme and bookmarks) as JSON
// documents under fixed keys. Unreadable or corrupt documents fall back to
// defaults instead of failing.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

const (
	KeyTheme     = "kbase.theme"
	KeyBookmarks = "kbase.bookmarks"
)

// Theme is the dashboard color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme applies when nothing valid is stored.
const DefaultTheme = ThemeLight

// KV stores raw documents by key.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// FileStore keeps each key in its own file under Dir.
type FileStore struct {
	Dir string
}

func (s FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

func (s FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s FileStore) Set(key string, value []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Prefs is the loaded preference state.
type Prefs struct {
	kv     KV
	logger zerolog.Logger

	mu        sync.Mutex
	theme     Theme
	bookmarks []string
}

// Load reads preferences from kv. Missing or corrupt entries are replaced by
// defaults and logged.
func Load(kv KV, logger zerolog.Logger) *Prefs {
	p := &Prefs{kv: kv, logger: logger, theme: DefaultTheme, bookmarks: []string{}}

	var theme Theme
	if p.read(KeyTheme, &theme) && (theme == ThemeLight || theme == ThemeDark) {
		p.theme = theme
	}

	var bookmarks []string
	if p.read(KeyBookmarks, &bookmarks) {
		p.bookmarks = dedupe(bookmarks)
	}
	return p
}

func (p *Prefs) read(key string, dst any) bool {
	data, ok, err := p.kv.Get(key)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("preference unreadable, using default")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("preference corrupt, using default")
		return false
	}
	return true
}

func (p *Prefs) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := p.kv.Set(key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Theme returns the current theme.
func (p *Prefs) Theme() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

// SetTheme stores the theme.
func (p *Prefs) SetTheme(t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return fmt.Errorf("unknown theme %q", t)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = t
	return p.write(KeyTheme, t)
}

// ToggleTheme flips between light and dark.
func (p *Prefs) ToggleTheme() (Theme, error) {
	next := ThemeDark
	if p.Theme() == ThemeDark {
		next = ThemeLight
	}
	return next, p.SetTheme(next)
}

// Bookmarks returns the bookmarked ids in the order they were added.
func (p *Prefs) Bookmarks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.bookmarks)
}

// IsBookmarked reports whether id is bookmarked.
func (p *Prefs) IsBookmarked(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.bookmarks, id)
}

// ToggleBookmark adds or removes id and reports whether it is now bookmarked.
func (p *Prefs) ToggleBookmark(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.bookmarks, id); i >= 0 {
		p.bookmarks = slices.Delete(p.bookmarks, i, i+1)
		return false, p.write(KeyBookmarks, p.bookmarks)
	}
	p.bookmarks = append(p.bookmarks, id)
	return true, p.write(KeyBookmarks, p.bookmarks)
}

// RemoveBookmarks drops the given ids. Nothing is written when none were
// bookmarked.
func (p *Prefs) RemoveBookmarks(ids ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := slices.DeleteFunc(slices.Clone(p.bookmarks), func(b string) bool {
		return slices.Contains(ids, b)
	})
	if len(kept) == len(p.bookmarks) {
		return nil
	}
	p.bookmarks = kept
	return p.write(KeyBookmarks, p.bookmarks)
}

// Prune drops bookmarks whose id is not in existing.
func (p *Prefs) Prune(existing map[string]struct{}) error {
	var stale []string
	for _, id := range p.Bookmarks() {
		if _, ok := existing[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return p.RemoveBookmarks(stale...)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
