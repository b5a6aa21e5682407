package resolver

import (
	"errors"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/mabhi256/jverify/internal/classfile/parser"
)

var errStopWalk = errors.New("stop walk")

// Directory serves a tree of loose class files rooted at a package root.
// Each subdirectory is listed at most once, on first descent.
type Directory struct {
	fs   afero.Fs
	root string

	mu       sync.Mutex
	listings map[string]map[string]bool // package → class simple names
}

func NewDirectory(fs afero.Fs, root string) *Directory {
	return &Directory{
		fs:       fs,
		root:     filepath.Clean(root),
		listings: make(map[string]map[string]bool),
	}
}

func (d *Directory) classPath(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name)+".class")
}

// listing returns the class files directly inside pkg, reading the directory once
func (d *Directory) listing(pkg string) map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entries, ok := d.listings[pkg]; ok {
		return entries
	}

	entries := make(map[string]bool)
	infos, err := afero.ReadDir(d.fs, filepath.Join(d.root, filepath.FromSlash(pkg)))
	if err == nil {
		for _, info := range infos {
			if info.IsDir() || !strings.HasSuffix(info.Name(), ".class") {
				continue
			}
			entries[strings.TrimSuffix(info.Name(), ".class")] = true
		}
	}
	d.listings[pkg] = entries
	return entries
}

func (d *Directory) Contains(name string) bool {
	if name == "" {
		return false
	}
	pkg, simple := path.Split(name)
	return d.listing(strings.TrimSuffix(pkg, "/"))[simple]
}

func (d *Directory) Find(name string) Result {
	if !d.Contains(name) {
		return Result{}
	}

	f, err := d.fs.Open(d.classPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}
		}
		return decodeFailure(d.root, name, err)
	}
	defer f.Close()

	class, err := parser.ParseClass(f)
	if err != nil {
		return decodeFailure(d.root, name, err)
	}
	return checkName(class, name, d.root)
}

// Names walks the tree in lexical order on every call
func (d *Directory) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = afero.Walk(d.fs, d.root, func(p string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(p, ".class") {
				return nil
			}
			rel, err := filepath.Rel(d.root, p)
			if err != nil {
				return nil
			}
			name, ok := classEntryName(filepath.ToSlash(rel), "")
			if !ok {
				return nil
			}
			if !yield(name) {
				return errStopWalk
			}
			return nil
		})
	}
}

func (d *Directory) Location(name string) (string, bool) {
	if !d.Contains(name) {
		return "", false
	}
	return d.root, true
}

func (d *Directory) IsEmpty() bool {
	for range d.Names() {
		return false
	}
	return true
}

func (d *Directory) Close() error   { return nil }
func (d *Directory) String() string { return d.root }
