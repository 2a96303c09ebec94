package palette

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults/*.palette
var embedded embed.FS

// Loader finds palettes by name or path.
type Loader struct {
	ConfigDir string
}

// NewLoader creates a Loader looking in ~/.config/maskstudio/palettes.
func NewLoader() *Loader {
	home, _ := os.UserHomeDir()
	return &Loader{ConfigDir: filepath.Join(home, ".config", "maskstudio", "palettes")}
}

// Load resolves name as a file path, then a built-in palette, then a file in
// ConfigDir. An empty name yields the default palette.
func (l *Loader) Load(name string) (*Palette, error) {
	if name == "" {
		return Default(), nil
	}

	if _, err := os.Stat(name); err == nil {
		return parseFile(name)
	}

	filename := name
	if !strings.HasSuffix(filename, ".palette") {
		filename += ".palette"
	}

	if f, err := embedded.Open("defaults/" + filename); err == nil {
		defer f.Close()
		return Parse(f)
	}

	if l.ConfigDir != "" {
		p := filepath.Join(l.ConfigDir, filename)
		if _, err := os.Stat(p); err == nil {
			return parseFile(p)
		}
	}

	return nil, fmt.Errorf("palette '%s' not found", name)
}

func parseFile(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
