package verifier

import (
	"strings"

	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/problem"
)

// forEachInstruction visits instructions of every method in declaration order
func (c *checker) forEachInstruction(visit func(m *model.Method, in *model.Instruction)) {
	for _, m := range c.class.Methods {
		for i := range m.Instructions {
			visit(m, &m.Instructions[i])
		}
	}
}

func (c *checker) checkMethodCalls() {
	c.forEachInstruction(func(m *model.Method, in *model.Instruction) {
		if !in.IsInvoke() {
			return
		}
		member := methodMember(m)
		if strings.HasPrefix(in.Ref.Owner, "[") {
			// clone() and the Object methods of array types
			c.findClass(in.Ref.Owner, member)
			return
		}
		if owner := c.accessClass(in.Ref.Owner, member); owner != nil {
			c.checkMethod(owner, in.Ref, in.InvocationMode(), m)
		}
	})
}

func (c *checker) checkFieldAccess() {
	c.forEachInstruction(func(m *model.Method, in *model.Instruction) {
		if !in.IsFieldAccess() {
			return
		}
		if owner := c.accessClass(in.Ref.Owner, methodMember(m)); owner != nil {
			c.checkField(owner, in.Ref, in.FieldAccess(), m)
		}
	})
}

// checkTypeInstructions covers new, anewarray, checkcast, instanceof, multianewarray and class constants
func (c *checker) checkTypeInstructions() {
	c.forEachInstruction(func(m *model.Method, in *model.Instruction) {
		switch in.Opcode {
		case model.OP_NEW, model.OP_ANEWARRAY, model.OP_CHECKCAST, model.OP_INSTANCEOF, model.OP_MULTIANEWARRAY:
		case model.OP_LDC, model.OP_LDC_W:
			if in.Ref.Kind != model.ClassRef || len(in.Handles) > 0 {
				return
			}
		default:
			return
		}

		member := methodMember(m)
		target := c.accessClass(in.Ref.Owner, member)
		if target == nil || in.Opcode != model.OP_NEW {
			return
		}
		switch {
		case target.IsInterface():
			c.report(problem.InterfaceInstantiation, member, target.Name, "interface %s is instantiated",
				model.JavaName(target.Name))
		case target.IsAbstract():
			c.report(problem.AbstractClassInstantiation, member, target.Name, "abstract class %s is instantiated",
				model.JavaName(target.Name))
		}
	})
}

// checkDynamicCallSites resolves bootstrap method handles, their handle and class arguments,
// the call site types, and method handle or method type constants
func (c *checker) checkDynamicCallSites() {
	c.forEachInstruction(func(m *model.Method, in *model.Instruction) {
		isConstant := in.Opcode == model.OP_LDC || in.Opcode == model.OP_LDC_W
		if in.Opcode != model.OP_INVOKEDYNAMIC && !(isConstant && (len(in.Handles) > 0 || in.Ref.Kind == model.DynamicRef)) {
			return
		}

		member := methodMember(m)
		for _, h := range in.Handles {
			owner := c.accessClass(h.Ref.Owner, member)
			if owner == nil {
				continue
			}
			if h.Kind.IsField() {
				c.checkField(owner, h.Ref, h.FieldAccess(), m)
			} else {
				c.checkMethod(owner, h.Ref, h.InvocationMode(), m)
			}
		}
		for _, name := range in.ClassArgs {
			c.accessClass(name, member)
		}
		if in.Opcode == model.OP_INVOKEDYNAMIC {
			for _, name := range model.ReferencedClasses(in.Ref.Descriptor) {
				c.findClass(name, member)
			}
		}
	})
}

// checkMethod resolves a method reference made by caller and checks it against the invocation mode
func (c *checker) checkMethod(owner *model.ClassFile, ref model.SymbolicRef, mode model.InvocationMode, caller *model.Method) {
	member := methodMember(caller)
	target := ref.String()

	if ref.Interface && !owner.IsInterface() {
		c.report(problem.InvokeInterfaceMethodOnClass, member, target, "interface method %s refers to class %s",
			target, model.JavaName(owner.Name))
		return
	}
	if !ref.Interface && owner.IsInterface() {
		c.report(problem.InvokeClassMethodOnInterface, member, target, "class method %s refers to interface %s",
			target, model.JavaName(owner.Name))
		return
	}

	m := c.h.resolveMethod(owner, ref.Name, ref.Descriptor)
	if m == nil {
		// the method may be declared by the ancestor that cannot be resolved
		if c.h.isComplete(owner) {
			c.report(problem.MethodNotFound, member, target, "method %s is not found", target)
		}
		return
	}

	static := m.Access.IsStatic()
	switch mode {
	case model.InvokeVirtual:
		if static {
			c.report(problem.InvokeInstanceOnStaticMethod, member, target, "instance call of static method %s", m)
		}
	case model.InvokeSpecial:
		if static {
			c.report(problem.InvokeInstanceOnStaticMethod, member, target, "special call of static method %s", m)
		} else if m.Access.IsAbstract() {
			c.report(problem.AbstractMethodInvocation, member, target, "special call of abstract method %s", m)
		}
	case model.InvokeInterface:
		if static {
			c.report(problem.InvokeInterfaceOnStaticMethod, member, target, "interface call of static method %s", m)
		} else if m.Access.IsPrivate() {
			c.report(problem.InvokeInterfaceOnPrivateMethod, member, target, "interface call of private method %s", m)
		}
	case model.InvokeStatic:
		if !static {
			c.report(problem.InvokeStaticOnInstanceMethod, member, target, "static call of instance method %s", m)
		}
	}

	if !c.h.memberAccessible(m.Access, m.Owner, c.class) {
		c.report(problem.IllegalMethodAccess, member, target, "%s method %s is not accessible from %s",
			m.Access.Visibility(), m, model.JavaName(c.class.Name))
	}
	c.adviseMethod(m, mode, caller)
}

// checkField resolves a field reference made by caller and checks it against the access mode
func (c *checker) checkField(owner *model.ClassFile, ref model.SymbolicRef, access model.FieldAccess, caller *model.Method) {
	member := methodMember(caller)
	target := ref.String()

	f := c.h.resolveField(owner, ref.Name, ref.Descriptor)
	if f == nil {
		if c.h.isComplete(owner) {
			c.report(problem.FieldNotFound, member, target, "field %s is not found", target)
		}
		return
	}

	static := f.Access.IsStatic()
	switch {
	case access.Static && !static:
		c.report(problem.StaticAccessOfInstanceField, member, target, "%s of instance field %s", access, f)
	case !access.Static && static:
		c.report(problem.InstanceAccessOfStaticField, member, target, "%s of static field %s", access, f)
	}
	if access.Write && f.Access.IsFinal() && f.Owner != c.class.Name {
		c.report(problem.ChangeFinalField, member, target, "final field %s is changed outside %s",
			f, model.JavaName(f.Owner))
	}
	if !c.h.memberAccessible(f.Access, f.Owner, c.class) {
		c.report(problem.IllegalFieldAccess, member, target, "%s field %s is not accessible from %s",
			f.Access.Visibility(), f, model.JavaName(c.class.Name))
	}
	c.adviseField(f, caller)
}
