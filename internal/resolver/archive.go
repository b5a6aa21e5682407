package resolver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/mabhi256/jverify/internal/classfile/parser"
)

// jmod files are a zip preceded by the magic "JM" and a two byte version
var jmodMagic = []byte{'J', 'M', 0x01, 0x00}

const (
	jmodHeaderSize   = 4
	jmodClassesEntry = "classes/"
)

// Archive serves classes from one jar, zip or jmod. The entry index is built once at open.
type Archive struct {
	path  string
	index map[string]*zip.File
	names []string

	file      io.Closer
	closeOnce sync.Once
	closeErr  error
}

// OpenArchive opens a jar or zip of classes
func OpenArchive(path string) (*Archive, error) {
	return openArchive(path, 0, "")
}

// OpenJmod opens a JDK module file and serves its classes/ section
func OpenJmod(path string) (*Archive, error) {
	return openArchive(path, jmodHeaderSize, jmodClassesEntry)
}

func openArchive(path string, offset int64, prefix string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	archive, err := indexArchive(path, f, offset, prefix)
	if err != nil {
		f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return archive, nil
}

func indexArchive(path string, f *os.File, offset int64, prefix string) (*Archive, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	if offset > 0 {
		header := make([]byte, offset)
		if _, err := f.ReadAt(header, 0); err != nil {
			return nil, fmt.Errorf("failed to read jmod header: %w", err)
		}
		if !bytes.Equal(header, jmodMagic) {
			return nil, errors.New("not a jmod file")
		}
	}

	zr, err := zip.NewReader(io.NewSectionReader(f, offset, size-offset), size-offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip directory: %w", err)
	}

	a := &Archive{path: path, file: f, index: make(map[string]*zip.File, len(zr.File))}
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name, ok := classEntryName(entry.Name, prefix)
		if !ok {
			continue
		}
		if _, dup := a.index[name]; dup {
			continue
		}
		a.index[name] = entry
		a.names = append(a.names, name)
	}
	slices.Sort(a.names)

	return a, nil
}

func (a *Archive) Find(name string) Result {
	entry, ok := a.index[name]
	if !ok {
		return Result{}
	}

	rc, err := entry.Open()
	if err != nil {
		return decodeFailure(a.path, name, err)
	}
	defer rc.Close()

	class, err := parser.ParseClass(rc)
	if err != nil {
		return decodeFailure(a.path, name, err)
	}
	return checkName(class, name, a.path)
}

func (a *Archive) Contains(name string) bool {
	_, ok := a.index[name]
	return ok
}

func (a *Archive) Names() iter.Seq[string] {
	return slices.Values(a.names)
}

func (a *Archive) Location(name string) (string, bool) {
	if !a.Contains(name) {
		return "", false
	}
	return a.path, true
}

func (a *Archive) IsEmpty() bool {
	return len(a.names) == 0
}

func (a *Archive) Len() int {
	return len(a.names)
}

func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.file.Close()
	})
	return a.closeErr
}

func (a *Archive) String() string {
	return a.path
}
