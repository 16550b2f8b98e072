package macro

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultName is the macro name used when none is given on the command line.
const DefaultName = "default"

const currentVersion = 1

var (
	// ErrPersistence wraps every failure to read or write a macro file.
	ErrPersistence = errors.New("macro persistence")
	// ErrExists is returned by Save when the target exists and overwrite is off.
	ErrExists = errors.New("macro file already exists")
)

// document is the root structure of a macro file.
type document struct {
	Version int       `json:"version" yaml:"version"`
	SavedAt time.Time `json:"savedAt" yaml:"savedAt"`
	Events  Sequence  `json:"events" yaml:"events"`
}

// Info describes a stored macro.
type Info struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}

// Store reads and writes macro files in a directory.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir. An empty dir means the working directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file path for a macro name. Names without a .json, .yaml or
// .yml extension get .json appended.
func (s *Store) Path(name string) string {
	if name == "" {
		name = DefaultName
	}
	if !hasMacroExt(name) {
		name += ".json"
	}
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

func hasMacroExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Exists reports whether a macro file is stored under name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Save writes seq under name. The write goes through a temp file and rename so
// a crash never leaves a truncated macro behind.
func (s *Store) Save(name string, seq Sequence, overwrite bool) (string, error) {
	path := s.Path(name)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%w: %s: %w", ErrPersistence, path, ErrExists)
		}
	}
	data, err := Encode(path, seq)
	if err != nil {
		return path, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return path, fmt.Errorf("%w: create directory: %w", ErrPersistence, err)
		}
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return path, fmt.Errorf("%w: write temp file: %w", ErrPersistence, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return path, fmt.Errorf("%w: rename temp file: %w", ErrPersistence, err)
	}
	return path, nil
}

// Load reads the macro stored under name.
func (s *Store) Load(name string) (Sequence, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	seq, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, path, err)
	}
	return seq, nil
}

// List returns the macros in the store directory sorted by name.
func (s *Store) List() ([]Info, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || !hasMacroExt(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:     strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Path:     filepath.Join(dir, entry.Name()),
			Modified: fi.ModTime(),
			Size:     fi.Size(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// Encode serializes seq in the format implied by path's extension.
func Encode(path string, seq Sequence) ([]byte, error) {
	doc := document{Version: currentVersion, SavedAt: time.Now().UTC(), Events: seq}
	if doc.Events == nil {
		doc.Events = Sequence{}
	}
	if isYAML(path) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a macro file. Besides the versioned document, a bare list of
// events is accepted for hand-written files.
func Decode(path string, data []byte) (Sequence, error) {
	if isYAML(path) {
		return decodeYAML(data)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var seq Sequence
		if err := json.Unmarshal(trimmed, &seq); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return seq, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	return doc.Events, nil
}

func decodeYAML(data []byte) (Sequence, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return Sequence{}, nil
	}
	node := root.Content[0]
	if node.Kind == yaml.SequenceNode {
		var seq Sequence
		if err := node.Decode(&seq); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return seq, nil
	}
	var doc document
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	return doc.Events, nil
}

func checkVersion(v int) error {
	if v < 1 {
		return fmt.Errorf("macro file has no valid version (got %d)", v)
	}
	if v > currentVersion {
		return fmt.Errorf("unsupported macro file version %d (max supported: %d)", v, currentVersion)
	}
	return nil
}
