// Package resolver answers "does this class exist, and where" over jars, jmods,
// class directories and in-memory class sets.
package resolver

import (
	"fmt"
	"iter"
	"strings"

	"github.com/mabhi256/jverify/internal/classfile/model"
)

// DefaultCacheSize is the capacity used by NewCache when none is given
const DefaultCacheSize = 1000

// Resolver is a queryable view over zero or more class sources.
//
// Find must be a pure function of the resolver state and the name: repeated calls
// return logically equal results. Implementations are safe for concurrent use.
type Resolver interface {
	// Find parses and returns the class with the given binary name
	Find(name string) Result
	// Contains reports whether the class is present without decoding it
	Contains(name string) bool
	// Names enumerates every binary name the resolver can serve.
	// The sequence is finite and can be ranged over repeatedly.
	Names() iter.Seq[string]
	// Location identifies the source that serves name
	Location(name string) (string, bool)
	IsEmpty() bool
	// Close releases held file handles. It is idempotent.
	Close() error
	String() string
}

// Result of a lookup: found, confirmed absent, or present but undecodable
type Result struct {
	Class  *model.ClassFile
	Source string
	Err    error
}

func (r Result) Found() bool {
	return r.Class != nil
}

// Missing reports a confirmed absence, as opposed to a class that failed to decode
func (r Result) Missing() bool {
	return r.Class == nil && r.Err == nil
}

// OpenError reports a class source that could not be opened
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

type emptyResolver struct{}

var empty Resolver = emptyResolver{}

// Empty returns a resolver that serves nothing
func Empty() Resolver {
	return empty
}

func (emptyResolver) Find(string) Result { return Result{} }
func (emptyResolver) Contains(string) bool { return false }
func (emptyResolver) Names() iter.Seq[string] { return func(func(string) bool) {} }
func (emptyResolver) Location(string) (string, bool) { return "", false }
func (emptyResolver) IsEmpty() bool { return true }
func (emptyResolver) Close() error { return nil }
func (emptyResolver) String() string { return "empty" }

// classEntryName maps an archive entry path to a binary class name.
// module-info, package-info and multi-release overlays are not served.
func classEntryName(entry, prefix string) (string, bool) {
	if !strings.HasPrefix(entry, prefix) || !strings.HasSuffix(entry, ".class") {
		return "", false
	}
	entry = strings.TrimPrefix(entry, prefix)
	if strings.HasPrefix(entry, "META-INF/") {
		return "", false
	}

	name := strings.TrimSuffix(entry, ".class")
	base := name[strings.LastIndexByte(name, '/')+1:]
	if base == "module-info" || base == "package-info" || base == "" {
		return "", false
	}
	return name, true
}

func decodeFailure(source, name string, err error) Result {
	return Result{Source: source, Err: fmt.Errorf("failed to read %s from %s: %w", name, source, err)}
}

func checkName(class *model.ClassFile, name, source string) Result {
	if class.Name != name {
		return decodeFailure(source, name, fmt.Errorf("file declares class %s", class.Name))
	}
	return Result{Class: class, Source: source}
}
