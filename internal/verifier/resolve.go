package verifier

import "github.com/mabhi256/jverify/internal/classfile/model"

const (
	methodHandleClass = "java/lang/invoke/MethodHandle"
	varHandleClass    = "java/lang/invoke/VarHandle"
)

// resolveMethod performs method resolution against owner. Interface owners use
// interface method resolution (JVMS 5.4.3.4), classes use class method resolution (5.4.3.3).
func (h *hierarchy) resolveMethod(owner *model.ClassFile, name, desc string) *model.Method {
	if owner.IsInterface() {
		return h.resolveInterfaceMethod(owner, name, desc)
	}
	return h.resolveClassMethod(owner, name, desc)
}

func (h *hierarchy) resolveClassMethod(owner *model.ClassFile, name, desc string) *model.Method {
	for _, c := range append([]*model.ClassFile{owner}, h.superclasses(owner)...) {
		if m := signaturePolymorphic(c, name); m != nil {
			return m
		}
		if m := c.FindMethod(name, desc); m != nil {
			return m
		}
	}
	return h.superinterfaceMethod(owner, name, desc)
}

func (h *hierarchy) resolveInterfaceMethod(owner *model.ClassFile, name, desc string) *model.Method {
	if m := owner.FindMethod(name, desc); m != nil {
		return m
	}
	if object := h.class(model.JavaLangObject); object != nil {
		if m := object.FindMethod(name, desc); m != nil && m.Access.IsPublic() && !m.Access.IsStatic() {
			return m
		}
	}
	return h.superinterfaceMethod(owner, name, desc)
}

// superinterfaceMethod prefers the single non-abstract maximally-specific method,
// then any non-private non-static superinterface method
func (h *hierarchy) superinterfaceMethod(owner *model.ClassFile, name, desc string) *model.Method {
	maximal := h.maximallySpecific(owner, name, desc)
	var concrete []*model.Method
	for _, m := range maximal {
		if !m.Access.IsAbstract() {
			concrete = append(concrete, m)
		}
	}
	if len(concrete) == 1 {
		return concrete[0]
	}
	if len(maximal) > 0 {
		return maximal[0]
	}
	return nil
}

// signaturePolymorphic finds the native varargs method of MethodHandle or VarHandle
// that accepts any descriptor (JVMS 2.9.3)
func signaturePolymorphic(c *model.ClassFile, name string) *model.Method {
	if c.Name != methodHandleClass && c.Name != varHandleClass {
		return nil
	}
	var found *model.Method
	for _, m := range c.Methods {
		if m.Name != name {
			continue
		}
		if found != nil {
			return nil
		}
		found = m
	}
	if found == nil || !found.Access.Has(model.ACC_NATIVE) || !found.Access.Has(model.ACC_VARARGS) {
		return nil
	}
	if found.Descriptor != "([Ljava/lang/Object;)Ljava/lang/Object;" && c.Name == methodHandleClass {
		return nil
	}
	return found
}

// resolveField performs field resolution (JVMS 5.4.3.2): the class itself, then its
// direct superinterfaces recursively, then its superclass
func (h *hierarchy) resolveField(owner *model.ClassFile, name, desc string) *model.Field {
	return h.lookupField(owner, name, desc, make(map[string]bool))
}

func (h *hierarchy) lookupField(c *model.ClassFile, name, desc string, visited map[string]bool) *model.Field {
	if visited[c.Name] {
		return nil
	}
	visited[c.Name] = true

	if f := c.FindField(name, desc); f != nil {
		return f
	}
	for _, iname := range c.Interfaces {
		if iface := h.class(iname); iface != nil {
			if f := h.lookupField(iface, name, desc, visited); f != nil {
				return f
			}
		}
	}
	if c.SuperName != "" {
		if super := h.class(c.SuperName); super != nil {
			return h.lookupField(super, name, desc, visited)
		}
	}
	return nil
}
