package model

import "fmt"

type Opcode byte

// Opcodes that carry a symbolic reference. The remaining opcodes are only
// needed by the scanner to compute instruction lengths.
const (
	OP_LDC             Opcode = 0x12
	OP_LDC_W           Opcode = 0x13
	OP_LDC2_W          Opcode = 0x14
	OP_GETSTATIC       Opcode = 0xb2
	OP_PUTSTATIC       Opcode = 0xb3
	OP_GETFIELD        Opcode = 0xb4
	OP_PUTFIELD        Opcode = 0xb5
	OP_INVOKEVIRTUAL   Opcode = 0xb6
	OP_INVOKESPECIAL   Opcode = 0xb7
	OP_INVOKESTATIC    Opcode = 0xb8
	OP_INVOKEINTERFACE Opcode = 0xb9
	OP_INVOKEDYNAMIC   Opcode = 0xba
	OP_NEW             Opcode = 0xbb
	OP_ANEWARRAY       Opcode = 0xbd
	OP_CHECKCAST       Opcode = 0xc0
	OP_INSTANCEOF      Opcode = 0xc1
	OP_MULTIANEWARRAY  Opcode = 0xc5
)

func (op Opcode) String() string {
	switch op {
	case OP_LDC:
		return "ldc"
	case OP_LDC_W:
		return "ldc_w"
	case OP_LDC2_W:
		return "ldc2_w"
	case OP_GETSTATIC:
		return "getstatic"
	case OP_PUTSTATIC:
		return "putstatic"
	case OP_GETFIELD:
		return "getfield"
	case OP_PUTFIELD:
		return "putfield"
	case OP_INVOKEVIRTUAL:
		return "invokevirtual"
	case OP_INVOKESPECIAL:
		return "invokespecial"
	case OP_INVOKESTATIC:
		return "invokestatic"
	case OP_INVOKEINTERFACE:
		return "invokeinterface"
	case OP_INVOKEDYNAMIC:
		return "invokedynamic"
	case OP_NEW:
		return "new"
	case OP_ANEWARRAY:
		return "anewarray"
	case OP_CHECKCAST:
		return "checkcast"
	case OP_INSTANCEOF:
		return "instanceof"
	case OP_MULTIANEWARRAY:
		return "multianewarray"
	default:
		return fmt.Sprintf("Opcode(0x%02x)", byte(op))
	}
}

type RefKind int

const (
	ClassRef RefKind = iota
	FieldRef
	MethodRef
	DynamicRef
)

// SymbolicRef is a named, unresolved pointer into another class
type SymbolicRef struct {
	Kind       RefKind
	Owner      string // binary name, or an array descriptor for class refs to array types
	Name       string
	Descriptor string
	Interface  bool // CONSTANT_InterfaceMethodref
}

func (r SymbolicRef) String() string {
	switch r.Kind {
	case ClassRef:
		return r.Owner
	case FieldRef:
		return fmt.Sprintf("%s.%s : %s", r.Owner, r.Name, r.Descriptor)
	case DynamicRef:
		return fmt.Sprintf("dynamic %s%s", r.Name, r.Descriptor)
	default:
		return fmt.Sprintf("%s.%s%s", r.Owner, r.Name, r.Descriptor)
	}
}

type HandleKind uint8

// CONSTANT_MethodHandle reference kinds (JVMS 5.4.3.5)
const (
	REF_getField         HandleKind = 1
	REF_getStatic        HandleKind = 2
	REF_putField         HandleKind = 3
	REF_putStatic        HandleKind = 4
	REF_invokeVirtual    HandleKind = 5
	REF_invokeStatic     HandleKind = 6
	REF_invokeSpecial    HandleKind = 7
	REF_newInvokeSpecial HandleKind = 8
	REF_invokeInterface  HandleKind = 9
)

func (k HandleKind) IsField() bool {
	return k >= REF_getField && k <= REF_putStatic
}

// MethodHandle is a CONSTANT_MethodHandle: a field or method reference plus a behaviour kind
type MethodHandle struct {
	Kind HandleKind
	Ref  SymbolicRef
}

// InvocationMode returns the call semantics of a method handle
func (h MethodHandle) InvocationMode() InvocationMode {
	switch h.Kind {
	case REF_invokeStatic:
		return InvokeStatic
	case REF_invokeSpecial, REF_newInvokeSpecial:
		return InvokeSpecial
	case REF_invokeInterface:
		return InvokeInterface
	default:
		return InvokeVirtual
	}
}

// FieldAccess returns the access semantics of a field handle
func (h MethodHandle) FieldAccess() FieldAccess {
	return FieldAccess{
		Write:  h.Kind == REF_putField || h.Kind == REF_putStatic,
		Static: h.Kind == REF_getStatic || h.Kind == REF_putStatic,
	}
}

type InvocationMode int

const (
	InvokeVirtual InvocationMode = iota
	InvokeStatic
	InvokeSpecial
	InvokeInterface
	InvokeDynamic
)

func (m InvocationMode) String() string {
	switch m {
	case InvokeVirtual:
		return "virtual"
	case InvokeStatic:
		return "static"
	case InvokeSpecial:
		return "special"
	case InvokeInterface:
		return "interface"
	case InvokeDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("InvocationMode(%d)", int(m))
	}
}

// FieldAccess is the {read,write} × {static,instance} mode of a field instruction
type FieldAccess struct {
	Write  bool
	Static bool
}

func (a FieldAccess) String() string {
	op := "read"
	if a.Write {
		op = "write"
	}
	if a.Static {
		return "static " + op
	}
	return "instance " + op
}

// Instruction is one reference-carrying bytecode instruction
type Instruction struct {
	Opcode Opcode
	Offset int
	Ref    SymbolicRef

	// set for invokedynamic and for ldc of a CONSTANT_MethodHandle
	Handles []MethodHandle
	// class constants passed as bootstrap arguments
	ClassArgs []string
}

// InvocationMode is only meaningful for invoke* opcodes
func (in *Instruction) InvocationMode() InvocationMode {
	switch in.Opcode {
	case OP_INVOKESTATIC:
		return InvokeStatic
	case OP_INVOKESPECIAL:
		return InvokeSpecial
	case OP_INVOKEINTERFACE:
		return InvokeInterface
	case OP_INVOKEDYNAMIC:
		return InvokeDynamic
	default:
		return InvokeVirtual
	}
}

// FieldAccess is only meaningful for get/put opcodes
func (in *Instruction) FieldAccess() FieldAccess {
	return FieldAccess{
		Write:  in.Opcode == OP_PUTFIELD || in.Opcode == OP_PUTSTATIC,
		Static: in.Opcode == OP_GETSTATIC || in.Opcode == OP_PUTSTATIC,
	}
}

func (in *Instruction) IsInvoke() bool {
	return in.Opcode >= OP_INVOKEVIRTUAL && in.Opcode <= OP_INVOKEINTERFACE
}

func (in *Instruction) IsFieldAccess() bool {
	return in.Opcode >= OP_GETSTATIC && in.Opcode <= OP_PUTFIELD
}
