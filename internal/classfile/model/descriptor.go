package model

import (
	"fmt"
	"strings"
)

/*
*	JVM type descriptors (JVMS 4.3)
*
*	FieldType:   B C D F I J S Z | L<binary name>; | [FieldType
*	MethodType:  ( FieldType* ) ( FieldType | V )
 */

// IsPrimitiveDescriptor reports whether desc is one of the base types or void
func IsPrimitiveDescriptor(desc string) bool {
	if len(desc) != 1 {
		return false
	}
	switch desc[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		return true
	}
	return false
}

// FieldTypeClass returns the class named by a field descriptor, unwrapping arrays.
// The second result is false for primitives and arrays of primitives.
func FieldTypeClass(desc string) (string, bool) {
	desc = strings.TrimLeft(desc, "[")
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1], true
	}
	return "", false
}

// ArrayElementClass handles CONSTANT_Class entries, which hold either a binary name or
// an array descriptor such as "[[Ljava/lang/String;" or "[I"
func ArrayElementClass(name string) (string, bool) {
	if !strings.HasPrefix(name, "[") {
		return name, name != ""
	}
	return FieldTypeClass(name)
}

// MethodDescriptor is a parsed method type
type MethodDescriptor struct {
	Params []string // field descriptors
	Return string   // field descriptor or "V"
}

// ParseMethodDescriptor splits "(ILjava/lang/String;[J)V" into its parameter and return types
func ParseMethodDescriptor(desc string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %q", desc)
	}

	md := &MethodDescriptor{}
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		end, err := scanFieldType(desc, pos)
		if err != nil {
			return nil, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		md.Params = append(md.Params, desc[pos:end])
		pos = end
	}
	if pos >= len(desc) {
		return nil, fmt.Errorf("invalid method descriptor: %q is not closed", desc)
	}
	pos++ // skip ')'

	ret := desc[pos:]
	if ret != "V" {
		end, err := scanFieldType(desc, pos)
		if err != nil || end != len(desc) {
			return nil, fmt.Errorf("invalid method descriptor: bad return type in %q", desc)
		}
	}
	md.Return = ret

	return md, nil
}

// scanFieldType returns the end offset of the field descriptor that starts at pos
func scanFieldType(desc string, pos int) (int, error) {
	for pos < len(desc) && desc[pos] == '[' {
		pos++
	}
	if pos >= len(desc) {
		return 0, fmt.Errorf("truncated type at offset %d", pos)
	}

	switch desc[pos] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return pos + 1, nil
	case 'L':
		semi := strings.IndexByte(desc[pos:], ';')
		if semi < 2 {
			return 0, fmt.Errorf("unterminated class type at offset %d", pos)
		}
		return pos + semi + 1, nil
	default:
		return 0, fmt.Errorf("unexpected %q at offset %d", desc[pos], pos)
	}
}

// ReferencedClasses lists class names mentioned by a field or method descriptor,
// in order of appearance and without duplicates
func ReferencedClasses(desc string) []string {
	var types []string
	if strings.HasPrefix(desc, "(") {
		md, err := ParseMethodDescriptor(desc)
		if err != nil {
			return nil
		}
		types = append(types, md.Params...)
		types = append(types, md.Return)
	} else {
		types = []string{desc}
	}

	var classes []string
	seen := make(map[string]bool)
	for _, t := range types {
		if cls, ok := FieldTypeClass(t); ok && !seen[cls] {
			seen[cls] = true
			classes = append(classes, cls)
		}
	}
	return classes
}

// PackageOf returns the slash-separated package of a binary name, "" for the default package
func PackageOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// JavaName converts a binary name to its dotted form for display
func JavaName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
