package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

// OpenPath picks a backend for path:
//   - *.jar: archive
//   - *.jmod: jmod
//   - *.zip: plugin distribution (nested jars) or plain class archive
//   - *.class: single class
//   - directory: its jars and jmods followed by any loose class tree
func OpenPath(path string) (Resolver, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if info.IsDir() {
		return openDirectory(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar":
		return OpenArchive(path)
	case ".jmod":
		return OpenJmod(path)
	case ".class":
		return ReadClassFile(path)
	case ".zip":
		nested, err := hasNestedJars(path)
		if err != nil {
			return nil, &OpenError{Path: path, Err: err}
		}
		if nested {
			return ReadNestedArchives(path)
		}
		return OpenArchive(path)
	default:
		return nil, &OpenError{Path: path, Err: fmt.Errorf("unsupported class source %q", filepath.Ext(path))}
	}
}

// OpenPaths opens every path and unions them in order. On failure nothing stays open.
func OpenPaths(paths ...string) (Resolver, error) {
	owned := &Closer{}
	var children []Resolver
	for _, p := range paths {
		r, err := OpenPath(p)
		if err != nil {
			owned.Close()
			return nil, err
		}
		children = append(children, owned.Add(r))
	}
	return withOwnership(Union(children...), owned), nil
}

func openDirectory(dir string) (Resolver, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &OpenError{Path: dir, Err: err}
	}

	owned := &Closer{}
	var children []Resolver
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".jar" && ext != ".jmod") {
			continue
		}
		r, err := OpenPath(filepath.Join(dir, entry.Name()))
		if err != nil {
			owned.Close()
			return nil, err
		}
		children = append(children, owned.Add(r))
	}

	loose := NewDirectory(afero.NewOsFs(), dir)
	if !loose.IsEmpty() {
		children = append(children, loose)
	}
	return withOwnership(Union(children...), owned), nil
}

func hasNestedJars(path string) (bool, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false, err
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if strings.HasSuffix(entry.Name, ".jar") {
			return true, nil
		}
	}
	return false, nil
}

// OpenJdk serves the runtime classes of a JDK installation: jmods/*.jmod for
// modular JDKs, otherwise jre/lib/*.jar and lib/*.jar
func OpenJdk(home string) (Resolver, error) {
	var sources []string
	if files, _ := filepath.Glob(filepath.Join(home, "jmods", "*.jmod")); len(files) > 0 {
		sources = files
	} else {
		jre, _ := filepath.Glob(filepath.Join(home, "jre", "lib", "*.jar"))
		lib, _ := filepath.Glob(filepath.Join(home, "lib", "*.jar"))
		sources = append(jre, lib...)
	}
	if len(sources) == 0 {
		return nil, &OpenError{Path: home, Err: errors.New("no jmods or runtime jars found")}
	}
	slices.Sort(sources)

	// java.base first so the most common lookups stop early
	slices.SortStableFunc(sources, func(a, b string) int {
		return boolRank(isBaseModule(b)) - boolRank(isBaseModule(a))
	})
	return OpenPaths(sources...)
}

func isBaseModule(path string) bool {
	base := filepath.Base(path)
	return base == "java.base.jmod" || base == "rt.jar"
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
