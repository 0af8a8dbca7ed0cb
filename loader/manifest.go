package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional manifest.yaml at the root of a world directory.
// Layers list .lua files in load order; later layers override earlier ones
// per key. Without a manifest, every .lua file loads in lexical order.
type Manifest struct {
	Name     string   `yaml:"name"`
	Layers   []string `yaml:"layers"`
	Settings struct {
		CascadeLimit int `yaml:"cascade_limit"`
	} `yaml:"settings"`
}

// readManifest loads manifest.yaml from dir, or returns nil when there is
// none.
func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest.yaml: %w", err)
	}
	return &m, nil
}

// layerFiles returns the .lua files to execute, in order. Manifest layers
// win; otherwise all .lua files in dir, lexically sorted.
func layerFiles(dir string, m *Manifest) ([]string, error) {
	if m != nil && len(m.Layers) > 0 {
		for _, f := range m.Layers {
			if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
				return nil, fmt.Errorf("manifest layer %q: %w", f, err)
			}
		}
		return m.Layers, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading world directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	// ReadDir returns entries sorted by name, which is the layer order.
	return files, nil
}
