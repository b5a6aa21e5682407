package verifier

import "github.com/mabhi256/jverify/internal/classfile/model"

// classAccessible implements JVMS 5.4.4 for classes: public, or in the accessor's package
func classAccessible(target, from *model.ClassFile) bool {
	return target.IsPublic() || target.Package() == from.Package()
}

// memberAccessible implements JVMS 5.4.4 for a member with the given flags declared in declaring
func (h *hierarchy) memberAccessible(access model.AccessFlags, declaring string, from *model.ClassFile) bool {
	switch {
	case access.IsPublic():
		return true
	case access.IsPrivate():
		if declaring == from.Name {
			return true
		}
		owner := h.class(declaring)
		return owner != nil && owner.NestHostName() == from.NestHostName()
	case access.IsProtected():
		// an unresolved ancestor may be the subtype link, it is reported on its own
		return model.PackageOf(declaring) == from.Package() || h.isSubtype(from, declaring) || !h.isComplete(from)
	default:
		return model.PackageOf(declaring) == from.Package()
	}
}
