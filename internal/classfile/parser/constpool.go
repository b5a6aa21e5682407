package parser

import (
	"fmt"

	"github.com/mabhi256/jverify/internal/classfile/model"
)

// Constant pool tags (JVMS 4.4)
const (
	CONSTANT_Utf8               = 1
	CONSTANT_Integer            = 3
	CONSTANT_Float              = 4
	CONSTANT_Long               = 5
	CONSTANT_Double             = 6
	CONSTANT_Class              = 7
	CONSTANT_String             = 8
	CONSTANT_Fieldref           = 9
	CONSTANT_Methodref          = 10
	CONSTANT_InterfaceMethodref = 11
	CONSTANT_NameAndType        = 12
	CONSTANT_MethodHandle       = 15
	CONSTANT_MethodType         = 16
	CONSTANT_Dynamic            = 17
	CONSTANT_InvokeDynamic      = 18
	CONSTANT_Module             = 19
	CONSTANT_Package            = 20
)

type cpEntry struct {
	tag  uint8
	utf8 string
	// index operands; meaning depends on tag
	a, b uint16
	// reference_kind of a CONSTANT_MethodHandle
	kind uint8
}

// ConstantPool holds only what the verifier needs; numeric values are skipped
type ConstantPool struct {
	entries []cpEntry
}

/*
*	cp_info {
*		u1 tag;
*		u1 info[];
*	}
*
*	Index 0 is unused. CONSTANT_Long and CONSTANT_Double occupy two slots.
 */
func readConstantPool(reader *BinaryReader) (*ConstantPool, error) {
	count, err := reader.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read constant pool count: %w", err)
	}

	cp := &ConstantPool{entries: make([]cpEntry, count)}
	for i := 1; i < int(count); i++ {
		tag, err := reader.ReadU1()
		if err != nil {
			return nil, fmt.Errorf("failed to read constant pool tag at #%d: %w", i, err)
		}

		entry := cpEntry{tag: tag}
		switch tag {
		case CONSTANT_Utf8:
			length, err := reader.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("failed to read utf8 length at #%d: %w", i, err)
			}
			raw, err := reader.ReadNBytes(int(length))
			if err != nil {
				return nil, fmt.Errorf("failed to read utf8 bytes at #%d: %w", i, err)
			}
			entry.utf8 = decodeModifiedUTF8(raw)

		case CONSTANT_Integer, CONSTANT_Float:
			err = reader.Skip(4)

		case CONSTANT_Long, CONSTANT_Double:
			err = reader.Skip(8)

		case CONSTANT_Class, CONSTANT_String, CONSTANT_MethodType, CONSTANT_Module, CONSTANT_Package:
			entry.a, err = reader.ReadU2()

		case CONSTANT_Fieldref, CONSTANT_Methodref, CONSTANT_InterfaceMethodref,
			CONSTANT_NameAndType, CONSTANT_Dynamic, CONSTANT_InvokeDynamic:
			if entry.a, err = reader.ReadU2(); err == nil {
				entry.b, err = reader.ReadU2()
			}

		case CONSTANT_MethodHandle:
			if entry.kind, err = reader.ReadU1(); err == nil {
				entry.a, err = reader.ReadU2()
			}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at #%d", tag, i)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read constant pool entry #%d: %w", i, err)
		}

		cp.entries[i] = entry
		if tag == CONSTANT_Long || tag == CONSTANT_Double {
			i++
		}
	}

	return cp, nil
}

func (cp *ConstantPool) Len() int {
	return len(cp.entries)
}

func (cp *ConstantPool) entry(index uint16, tags ...uint8) (cpEntry, error) {
	if index == 0 || int(index) >= len(cp.entries) {
		return cpEntry{}, fmt.Errorf("constant pool index %d out of range", index)
	}
	e := cp.entries[index]
	for _, tag := range tags {
		if e.tag == tag {
			return e, nil
		}
	}
	return cpEntry{}, fmt.Errorf("constant pool entry #%d has tag %d, want %v", index, e.tag, tags)
}

func (cp *ConstantPool) Tag(index uint16) uint8 {
	if int(index) >= len(cp.entries) {
		return 0
	}
	return cp.entries[index].tag
}

func (cp *ConstantPool) Utf8(index uint16) (string, error) {
	e, err := cp.entry(index, CONSTANT_Utf8)
	if err != nil {
		return "", err
	}
	return e.utf8, nil
}

// ClassName resolves a CONSTANT_Class to its binary name (or array descriptor)
func (cp *ConstantPool) ClassName(index uint16) (string, error) {
	e, err := cp.entry(index, CONSTANT_Class)
	if err != nil {
		return "", err
	}
	return cp.Utf8(e.a)
}

// OptionalClassName is ClassName that maps index 0 to ""
func (cp *ConstantPool) OptionalClassName(index uint16) (string, error) {
	if index == 0 {
		return "", nil
	}
	return cp.ClassName(index)
}

func (cp *ConstantPool) NameAndType(index uint16) (name, descriptor string, err error) {
	e, err := cp.entry(index, CONSTANT_NameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.Utf8(e.a); err != nil {
		return "", "", err
	}
	if descriptor, err = cp.Utf8(e.b); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref
func (cp *ConstantPool) MemberRef(index uint16) (model.SymbolicRef, error) {
	e, err := cp.entry(index, CONSTANT_Fieldref, CONSTANT_Methodref, CONSTANT_InterfaceMethodref)
	if err != nil {
		return model.SymbolicRef{}, err
	}

	owner, err := cp.ClassName(e.a)
	if err != nil {
		return model.SymbolicRef{}, err
	}
	name, desc, err := cp.NameAndType(e.b)
	if err != nil {
		return model.SymbolicRef{}, err
	}

	ref := model.SymbolicRef{
		Kind:       model.MethodRef,
		Owner:      owner,
		Name:       name,
		Descriptor: desc,
		Interface:  e.tag == CONSTANT_InterfaceMethodref,
	}
	if e.tag == CONSTANT_Fieldref {
		ref.Kind = model.FieldRef
	}
	return ref, nil
}

func (cp *ConstantPool) MethodHandle(index uint16) (model.MethodHandle, error) {
	e, err := cp.entry(index, CONSTANT_MethodHandle)
	if err != nil {
		return model.MethodHandle{}, err
	}
	kind := model.HandleKind(e.kind)
	if kind < model.REF_getField || kind > model.REF_invokeInterface {
		return model.MethodHandle{}, fmt.Errorf("method handle #%d has invalid kind %d", index, e.kind)
	}
	ref, err := cp.MemberRef(e.a)
	if err != nil {
		return model.MethodHandle{}, fmt.Errorf("method handle #%d: %w", index, err)
	}
	return model.MethodHandle{Kind: kind, Ref: ref}, nil
}

// DynamicNameAndType resolves the name and type of a CONSTANT_InvokeDynamic or CONSTANT_Dynamic,
// returning the bootstrap method attribute index as well
func (cp *ConstantPool) DynamicNameAndType(index uint16) (bootstrap uint16, name, descriptor string, err error) {
	e, err := cp.entry(index, CONSTANT_InvokeDynamic, CONSTANT_Dynamic)
	if err != nil {
		return 0, "", "", err
	}
	name, descriptor, err = cp.NameAndType(e.b)
	return e.a, name, descriptor, err
}
