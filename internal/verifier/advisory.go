package verifier

import (
	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/problem"
)

// external reports whether owner is declared outside the verified plugin
func (c *checker) external(owner string) bool {
	return !c.in.Plugin.Contains(owner)
}

func (c *checker) advise(kind problem.Kind, member, target, format string, args ...any) {
	c.advised = append(c.advised, problem.New(kind, c.at(member), target, format, args...))
}

func (c *checker) adviseClass(target *model.ClassFile, member string) {
	if !c.advisories || !c.external(target.Name) {
		return
	}
	name := model.JavaName(target.Name)
	if target.IsDeprecated() {
		c.advise(problem.DeprecatedAPIUsage, member, target.Name, "deprecated class %s is used", name)
	}
	if target.IsExperimental() {
		c.advise(problem.ExperimentalAPIUsage, member, target.Name, "experimental class %s is used", name)
	}
	if target.IsInternal() {
		c.advise(problem.InternalAPIUsage, member, target.Name, "internal class %s is used", name)
	}
}

func (c *checker) adviseMethod(m *model.Method, mode model.InvocationMode, caller *model.Method) {
	if !c.advisories || !c.external(m.Owner) {
		return
	}
	member := methodMember(caller)
	target := m.String()
	if m.IsDeprecated() {
		c.advise(problem.DeprecatedAPIUsage, member, target, "deprecated method %s is invoked", m)
	}
	if m.IsExperimental() {
		c.advise(problem.ExperimentalAPIUsage, member, target, "experimental method %s is invoked", m)
	}
	if m.IsInternal() {
		c.advise(problem.InternalAPIUsage, member, target, "internal method %s is invoked", m)
	}

	overrideOnly := m.IsOverrideOnly()
	if owner := c.h.class(m.Owner); owner != nil && owner.IsOverrideOnly() {
		overrideOnly = true
	}
	// super calls from the overriding method are the intended use
	superCall := mode == model.InvokeSpecial && (m.IsConstructor() || caller.Signature() == m.Signature())
	if overrideOnly && !superCall {
		c.advise(problem.OverrideOnlyAPIUsage, member, target, "override-only method %s is invoked", m)
	}
}

func (c *checker) adviseField(f *model.Field, caller *model.Method) {
	if !c.advisories || !c.external(f.Owner) {
		return
	}
	member := methodMember(caller)
	target := f.String()
	if f.IsDeprecated() {
		c.advise(problem.DeprecatedAPIUsage, member, target, "deprecated field %s is accessed", f)
	}
	if f.IsExperimental() {
		c.advise(problem.ExperimentalAPIUsage, member, target, "experimental field %s is accessed", f)
	}
	if f.IsInternal() {
		c.advise(problem.InternalAPIUsage, member, target, "internal field %s is accessed", f)
	}
}
