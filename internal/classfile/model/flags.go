package model

import "strings"

// AccessFlags is the u2 access_flags word of a class, field or method
type AccessFlags uint16

const (
	ACC_PUBLIC       AccessFlags = 0x0001
	ACC_PRIVATE      AccessFlags = 0x0002
	ACC_PROTECTED    AccessFlags = 0x0004
	ACC_STATIC       AccessFlags = 0x0008
	ACC_FINAL        AccessFlags = 0x0010
	ACC_SUPER        AccessFlags = 0x0020 // classes only, shares the bit with ACC_SYNCHRONIZED
	ACC_SYNCHRONIZED AccessFlags = 0x0020
	ACC_VOLATILE     AccessFlags = 0x0040
	ACC_BRIDGE       AccessFlags = 0x0040
	ACC_TRANSIENT    AccessFlags = 0x0080
	ACC_VARARGS      AccessFlags = 0x0080
	ACC_NATIVE       AccessFlags = 0x0100
	ACC_INTERFACE    AccessFlags = 0x0200
	ACC_ABSTRACT     AccessFlags = 0x0400
	ACC_STRICT       AccessFlags = 0x0800
	ACC_SYNTHETIC    AccessFlags = 0x1000
	ACC_ANNOTATION   AccessFlags = 0x2000
	ACC_ENUM         AccessFlags = 0x4000
	ACC_MODULE       AccessFlags = 0x8000
)

func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag != 0
}

func (f AccessFlags) IsPublic() bool    { return f.Has(ACC_PUBLIC) }
func (f AccessFlags) IsPrivate() bool   { return f.Has(ACC_PRIVATE) }
func (f AccessFlags) IsProtected() bool { return f.Has(ACC_PROTECTED) }
func (f AccessFlags) IsStatic() bool    { return f.Has(ACC_STATIC) }
func (f AccessFlags) IsFinal() bool     { return f.Has(ACC_FINAL) }
func (f AccessFlags) IsAbstract() bool  { return f.Has(ACC_ABSTRACT) }
func (f AccessFlags) IsInterface() bool { return f.Has(ACC_INTERFACE) }
func (f AccessFlags) IsSynthetic() bool { return f.Has(ACC_SYNTHETIC) }

// IsPackagePrivate reports the default (no modifier) access level
func (f AccessFlags) IsPackagePrivate() bool {
	return !f.Has(ACC_PUBLIC | ACC_PRIVATE | ACC_PROTECTED)
}

// Visibility returns the access modifier keyword, "package-private" when none is set
func (f AccessFlags) Visibility() string {
	switch {
	case f.IsPublic():
		return "public"
	case f.IsProtected():
		return "protected"
	case f.IsPrivate():
		return "private"
	default:
		return "package-private"
	}
}

// String renders member-level modifiers in source order
func (f AccessFlags) String() string {
	var parts []string
	if !f.IsPackagePrivate() {
		parts = append(parts, f.Visibility())
	}
	if f.IsStatic() {
		parts = append(parts, "static")
	}
	if f.IsAbstract() {
		parts = append(parts, "abstract")
	}
	if f.IsFinal() {
		parts = append(parts, "final")
	}
	return strings.Join(parts, " ")
}
