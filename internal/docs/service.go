// Package docs renders the operator manual, written in AsciiDoc, to HTML
// fragments for the dashboard.
package docs

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

//go:embed manual/*.adoc
var manual embed.FS

// Manual returns the operator manual shipped with the binary.
func Manual() fs.FS {
	sub, err := fs.Sub(manual, "manual")
	if err != nil {
		panic(err)
	}
	return sub
}

// Service renders documents from a file system and caches the output.
type Service struct {
	fsys  fs.FS
	mu    sync.RWMutex
	cache map[string]string // name -> html
}

func NewService(fsys fs.FS) *Service {
	return &Service{
		fsys:  fsys,
		cache: make(map[string]string),
	}
}

// Render returns the HTML of the document name, e.g. "staking.adoc".
func (s *Service) Render(name string) (string, error) {
	if name != path.Base(name) || !strings.HasSuffix(name, ".adoc") {
		return "", fmt.Errorf("invalid document name %q: %w", name, fs.ErrNotExist)
	}

	s.mu.RLock()
	html, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return html, nil
	}

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	var out bytes.Buffer
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false),
		configuration.WithAttribute("toc", "left"),
	)
	if _, err := libasciidoc.Convert(bytes.NewReader(data), &out, config); err != nil {
		return "", fmt.Errorf("convert %s: %w", name, err)
	}
	html = out.String()

	s.mu.Lock()
	s.cache[name] = html
	s.mu.Unlock()
	return html, nil
}

// List returns the document names in lexical order.
func (s *Service) List() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
