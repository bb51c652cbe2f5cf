// Package loader locates template sources by name.
package loader

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/deicod/jinjac/diag"
)

// Loader represents a template source locator
type Loader interface {
	Load(name string) (string, error)
}

// ModTimeLoader is implemented by loaders that can report when a template
// last changed.
type ModTimeLoader interface {
	Loader
	TemplateModTime(name string) (time.Time, error)
}

// NotFound builds the error returned for a missing template
func NotFound(name string, tried []string) *diag.Error {
	err := diag.Named(diag.KindTemplateNotFound, name, diag.Span{}, "template %q not found", name)
	if len(tried) > 0 {
		err.Message += " (searched " + strings.Join(tried, ", ") + ")"
	}
	return err
}

// cleanName rejects names that would escape the search path.
func cleanName(name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, '\\') {
		return "", false
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "", false
		}
	}
	return path.Clean(strings.TrimPrefix(name, "/")), true
}

// FileSystemLoader loads templates from an ordered list of directories
type FileSystemLoader struct {
	basePaths []string
	mu        sync.RWMutex
}

// NewFileSystemLoader creates a new file system loader. Directories are
// searched in order; with none given the working directory is used.
func NewFileSystemLoader(basePaths ...string) *FileSystemLoader {
	paths := filteredSearchPaths(basePaths)
	if len(paths) == 0 {
		paths = []string{"."}
	}
	return &FileSystemLoader{basePaths: paths}
}

// Load loads a template from the file system
func (l *FileSystemLoader) Load(name string) (string, error) {
	fullPath, err := l.Resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", errors.Wrapf(err, "reading template %q", name)
	}
	return string(data), nil
}

// Resolve returns the path of the first file matching name.
func (l *FileSystemLoader) Resolve(name string) (string, error) {
	clean, ok := cleanName(name)
	if !ok {
		return "", NotFound(name, nil)
	}

	var tried []string
	for _, basePath := range l.SearchPath() {
		fullPath := filepath.Join(basePath, filepath.FromSlash(clean))
		tried = append(tried, fullPath)

		info, err := os.Stat(fullPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", errors.Wrapf(err, "looking up template %q", name)
		}
		if info.IsDir() {
			continue
		}
		return fullPath, nil
	}
	return "", NotFound(name, tried)
}

// TemplateModTime returns the modification time for the requested template.
func (l *FileSystemLoader) TemplateModTime(name string) (time.Time, error) {
	fullPath, err := l.Resolve(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "stat template %q", name)
	}
	return info.ModTime(), nil
}

// NameOf maps a file path back to a template name relative to the first
// search directory containing it.
func (l *FileSystemLoader) NameOf(file string) (string, bool) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	for _, base := range l.SearchPath() {
		absBase, err := filepath.Abs(base)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absBase, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// SetSearchPath replaces the search path list with a copy of paths.
func (l *FileSystemLoader) SetSearchPath(paths ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := filteredSearchPaths(paths)
	if len(filtered) == 0 {
		filtered = []string{"."}
	}
	l.basePaths = filtered
}

// SearchPath returns a copy of the configured search paths.
func (l *FileSystemLoader) SearchPath() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.basePaths...)
}

func filteredSearchPaths(paths []string) []string {
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// MapLoader loads templates from a map. Each Set bumps the template's
// modification stamp so caches notice the change.
type MapLoader struct {
	templates map[string]string
	stamps    map[string]time.Time
	clock     int64
	mu        sync.RWMutex
}

// NewMapLoader creates a new map loader
func NewMapLoader(templates map[string]string) *MapLoader {
	l := &MapLoader{
		templates: make(map[string]string, len(templates)),
		stamps:    make(map[string]time.Time, len(templates)),
	}
	for name, src := range templates {
		l.Set(name, src)
	}
	return l
}

// Load loads a template from the map
func (l *MapLoader) Load(name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src, ok := l.templates[name]
	if !ok {
		return "", NotFound(name, nil)
	}
	return src, nil
}

// Set adds or replaces a template.
func (l *MapLoader) Set(name, src string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock++
	l.templates[name] = src
	l.stamps[name] = time.Unix(0, l.clock)
}

// TemplateModTime returns the logical modification stamp of a template.
func (l *MapLoader) TemplateModTime(name string) (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stamp, ok := l.stamps[name]
	if !ok {
		return time.Time{}, NotFound(name, nil)
	}
	return stamp, nil
}

// Names returns the names of all templates in the map.
func (l *MapLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	return names
}
