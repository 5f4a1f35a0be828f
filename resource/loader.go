package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when an asset or story does not exist.
var ErrNotFound = errors.New("resource: not found")

// AssetLoader fetches raw asset text by name, e.g. "stories/intro.json".
type AssetLoader interface {
	Load(ctx context.Context, name string) (string, error)
}

// DirLoader serves assets from a directory on disk.
type DirLoader struct {
	Root string
}

// NewDirLoader creates a DirLoader rooted at dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{Root: dir}
}

func (l *DirLoader) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MemoryLoader serves assets from a map. Used for embedded content and tests.
type MemoryLoader map[string]string

func (m MemoryLoader) Load(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, nil
}

// decodeDocument parses JSON, or YAML when name has a .yaml/.yml extension.
// YAML is routed through JSON so the custom tagged-union decoders apply.
func decodeDocument(name, content string, out any) error {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		content = string(raw)
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// DecodeStory parses a story document. Nodes without an id take their map key.
func DecodeStory(name, content string) (*Story, error) {
	var s Story
	if err := decodeDocument(name, content, &s); err != nil {
		return nil, err
	}
	if s.Nodes == nil {
		s.Nodes = map[string]StoryNode{}
	}
	for id, n := range s.Nodes {
		if n.ID == "" {
			n.ID = id
			s.Nodes[id] = n
		}
	}
	return &s, nil
}
