package resolver

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/mabhi256/jverify/internal/classfile/parser"
)

// Memory serves classes whose bytes were already read, such as the contents of nested jars
type Memory struct {
	source  string
	classes map[string][]byte
	names   []string
}

// NewMemory takes ownership of classes, keyed by binary name
func NewMemory(source string, classes map[string][]byte) *Memory {
	return &Memory{
		source:  source,
		classes: classes,
		names:   slices.Sorted(maps.Keys(classes)),
	}
}

func (m *Memory) Find(name string) Result {
	data, ok := m.classes[name]
	if !ok {
		return Result{}
	}
	class, err := parser.ParseClassBytes(data)
	if err != nil {
		return decodeFailure(m.source, name, err)
	}
	return checkName(class, name, m.source)
}

func (m *Memory) Contains(name string) bool {
	_, ok := m.classes[name]
	return ok
}

func (m *Memory) Names() iter.Seq[string] {
	return slices.Values(m.names)
}

func (m *Memory) Location(name string) (string, bool) {
	if !m.Contains(name) {
		return "", false
	}
	return m.source, true
}

func (m *Memory) IsEmpty() bool  { return len(m.names) == 0 }
func (m *Memory) Close() error   { return nil }
func (m *Memory) String() string { return m.source }

/*
ReadNestedArchives makes one streaming pass over a plugin distribution zip and
collects the classes of every jar it contains, typically lib/*.jar. Loose class
files under a classes/ directory are collected too. When two jars define the
same class the entry that comes first in the zip wins.
*/
func ReadNestedArchives(path string) (*Memory, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	defer zr.Close()

	classes := make(map[string][]byte)
	add := func(name string, data []byte) {
		if _, dup := classes[name]; !dup {
			classes[name] = data
		}
	}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		switch {
		case strings.HasSuffix(entry.Name, ".jar"):
			data, err := readEntry(entry)
			if err != nil {
				return nil, &OpenError{Path: path, Err: err}
			}
			if err := readJarBytes(data, add); err != nil {
				return nil, &OpenError{Path: path, Err: fmt.Errorf("nested jar %s: %w", entry.Name, err)}
			}

		case strings.Contains(entry.Name, "classes/"):
			prefix := entry.Name[:strings.Index(entry.Name, "classes/")+len("classes/")]
			name, ok := classEntryName(entry.Name, prefix)
			if !ok {
				continue
			}
			data, err := readEntry(entry)
			if err != nil {
				return nil, &OpenError{Path: path, Err: err}
			}
			add(name, data)
		}
	}

	return NewMemory(path, classes), nil
}

func readJarBytes(data []byte, add func(string, []byte)) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, entry := range zr.File {
		name, ok := classEntryName(entry.Name, "")
		if !ok || entry.FileInfo().IsDir() {
			continue
		}
		classBytes, err := readEntry(entry)
		if err != nil {
			return err
		}
		add(name, classBytes)
	}
	return nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry.Name, err)
	}
	return data, nil
}

// ReadClassFile serves a single loose .class file
func ReadClassFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	class, err := parser.ParseClassBytes(data)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return NewMemory(path, map[string][]byte{class.Name: data}), nil
}
