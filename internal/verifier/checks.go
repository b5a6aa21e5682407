package verifier

import (
	"strings"

	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/problem"
)

// checker holds the state of checking one plugin class
type checker struct {
	h     *hierarchy
	in    Input
	class *model.ClassFile
	// complete is false when an ancestor of the class cannot be resolved
	complete   bool
	advisories bool

	problems []problem.Problem
	advised  []problem.Problem
}

func (c *checker) at(member string) problem.Location {
	return problem.Location{Class: c.class.Name, Member: member}
}

func (c *checker) report(kind problem.Kind, member, target, format string, args ...any) {
	c.problems = append(c.problems, problem.New(kind, c.at(member), target, format, args...))
}

func fieldMember(f *model.Field) string {
	return f.Name + ":" + f.Descriptor
}

func methodMember(m *model.Method) string {
	return m.Name + m.Descriptor
}

// overridable methods take part in inheritance
func overridable(m *model.Method) bool {
	return !m.Access.IsStatic() && !m.Access.IsPrivate() && !m.IsInitializer()
}

// findClass resolves a class or array type named from member. Missing and unreadable
// classes are reported; primitive arrays resolve to nil without a problem.
func (c *checker) findClass(ref, member string) *model.ClassFile {
	name, ok := model.ArrayElementClass(ref)
	if !ok {
		return nil
	}
	target, err := c.h.find(name)
	switch {
	case err != nil:
		c.report(problem.FailedToReadClass, member, name, "class %s cannot be read: %v", model.JavaName(name), err)
	case target == nil:
		c.report(problem.ClassNotFound, member, name, "class %s is not found", model.JavaName(name))
	}
	return target
}

// accessClass is findClass plus the access check and class advisories
func (c *checker) accessClass(ref, member string) *model.ClassFile {
	target := c.findClass(ref, member)
	if target == nil {
		return nil
	}
	if !classAccessible(target, c.class) {
		c.report(problem.IllegalClassAccess, member, target.Name, "%s class %s is not accessible from %s",
			target.Access.Visibility(), model.JavaName(target.Name), model.JavaName(c.class.Name))
	}
	c.adviseClass(target, member)
	return target
}

func (c *checker) checkSuperclass() {
	name := c.class.SuperName
	if name == "" {
		return
	}
	super, err := c.h.find(name)
	switch {
	case err != nil:
		c.report(problem.FailedToReadClass, "", name, "superclass %s cannot be read: %v", model.JavaName(name), err)
		return
	case super == nil:
		c.report(problem.ClassNotFound, "", name, "superclass %s is not found", model.JavaName(name))
		return
	}

	if super.IsInterface() {
		c.report(problem.SuperClassBecameInterface, "", name, "class %s extends %s, which is an interface",
			model.JavaName(c.class.Name), model.JavaName(name))
	}
	if !classAccessible(super, c.class) {
		c.report(problem.IllegalClassAccess, "", name, "superclass %s is not accessible", model.JavaName(name))
	}
	c.adviseClass(super, "")
}

func (c *checker) checkInterfaces() {
	for _, name := range c.class.Interfaces {
		iface, err := c.h.find(name)
		switch {
		case err != nil:
			c.report(problem.FailedToReadClass, "", name, "interface %s cannot be read: %v", model.JavaName(name), err)
			continue
		case iface == nil:
			c.report(problem.InterfaceNotFound, "", name, "interface %s is not found", model.JavaName(name))
			continue
		}

		if !iface.IsInterface() {
			c.report(problem.SuperInterfaceBecameClass, "", name, "%s implements %s, which is a class",
				model.JavaName(c.class.Name), model.JavaName(name))
		}
		if !classAccessible(iface, c.class) {
			c.report(problem.IllegalClassAccess, "", name, "interface %s is not accessible", model.JavaName(name))
		}
		c.adviseClass(iface, "")
	}
}

func (c *checker) checkFinalSuperclass() {
	if c.class.SuperName == "" {
		return
	}
	if super := c.h.class(c.class.SuperName); super != nil && super.IsFinal() && !super.IsInterface() {
		c.report(problem.InheritFromFinalClass, "", super.Name, "class %s inherits from final class %s",
			model.JavaName(c.class.Name), model.JavaName(super.Name))
	}
}

/*
checkAbstractCoverage reports abstract methods a concrete class leaves without implementation.

Along the class chain the first declaration of a signature wins. Signatures only
declared by interfaces are selected among the maximally-specific superinterface
methods: exactly one default method implements it, none leaves it abstract and
more than one is ambiguous.
*/
func (c *checker) checkAbstractCoverage() {
	if !c.class.IsConcrete() || !c.complete {
		return
	}

	seen := make(map[string]bool)
	for _, k := range append([]*model.ClassFile{c.class}, c.h.superclasses(c.class)...) {
		for _, m := range k.Methods {
			if !overridable(m) || seen[m.Signature()] {
				continue
			}
			seen[m.Signature()] = true
			if m.Access.IsAbstract() {
				c.report(problem.MethodNotImplemented, "", m.String(), "concrete class %s does not implement abstract method %s",
					model.JavaName(c.class.Name), m)
			}
		}
	}

	for _, iface := range c.h.interfaces(c.class) {
		for _, m := range iface.Methods {
			if !overridable(m) || seen[m.Signature()] {
				continue
			}
			seen[m.Signature()] = true

			maximal := c.h.maximallySpecific(c.class, m.Name, m.Descriptor)
			var defaults []string
			for _, candidate := range maximal {
				if !candidate.Access.IsAbstract() {
					defaults = append(defaults, model.JavaName(candidate.Owner))
				}
			}
			switch {
			case len(maximal) == 0 || len(defaults) == 1:
			case len(defaults) == 0:
				c.report(problem.MethodNotImplemented, "", maximal[0].String(), "concrete class %s does not implement abstract method %s",
					model.JavaName(c.class.Name), maximal[0])
			default:
				c.report(problem.MultipleDefaultImplementations, "", m.Signature(), "%s inherits unrelated default implementations of %s from %s",
					model.JavaName(c.class.Name), m.Signature(), strings.Join(defaults, ", "))
			}
		}
	}
}

func (c *checker) checkMemberTypes() {
	for _, f := range c.class.Fields {
		for _, name := range model.ReferencedClasses(f.Descriptor) {
			c.findClass(name, fieldMember(f))
		}
	}
	for _, m := range c.class.Methods {
		member := methodMember(m)
		for _, name := range model.ReferencedClasses(m.Descriptor) {
			c.findClass(name, member)
		}
		for _, name := range m.Exceptions {
			c.findClass(name, member)
		}
		for _, name := range m.CatchTypes {
			c.findClass(name, member)
		}
	}
}

// checkFinalOverrides finds the nearest superclass declaration each method overrides
func (c *checker) checkFinalOverrides() {
	supers := c.h.superclasses(c.class)
	for _, m := range c.class.Methods {
		if !overridable(m) {
			continue
		}
		for _, s := range supers {
			sm := s.FindMethod(m.Name, m.Descriptor)
			if sm == nil || !overridable(sm) {
				continue
			}
			if sm.Access.IsPackagePrivate() && s.Package() != c.class.Package() {
				continue
			}
			if sm.Access.IsFinal() && !sm.Access.IsAbstract() {
				c.report(problem.OverridingFinalMethod, methodMember(m), sm.String(), "method %s overrides final method %s",
					m, sm)
			}
			break
		}
	}
}

func (c *checker) checkDuplicate() {
	if p, ok := duplicate(c.in, c.class.Name); ok {
		c.problems = append(c.problems, p)
	}
}

// duplicate reports a plugin class that a dependency also serves
func duplicate(in Input, name string) (problem.Problem, bool) {
	var locations []string
	for _, dep := range in.Dependencies {
		if dep == nil {
			continue
		}
		if loc, ok := dep.Location(name); ok {
			locations = append(locations, loc)
		}
	}
	if len(locations) == 0 {
		return problem.Problem{}, false
	}
	return problem.New(problem.DuplicateClass, problem.Location{Class: name}, locations[0],
		"class %s is also served by %s", model.JavaName(name), strings.Join(locations, ", ")), true
}
