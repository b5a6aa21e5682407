package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/mabhi256/jverify/internal/classfile/model"
)

const (
	OP_TABLESWITCH  = 0xaa
	OP_LOOKUPSWITCH = 0xab
	OP_WIDE         = 0xc4
	OP_IINC         = 0x84
)

/*
*	BootstrapMethods_attribute {
*		u2 num_bootstrap_methods;
*		{   u2 bootstrap_method_ref;
*			u2 num_bootstrap_arguments;
*			u2 bootstrap_arguments[num_bootstrap_arguments];
*		} bootstrap_methods[num_bootstrap_methods];
*	}
 */
type bootstrapMethod struct {
	handle uint16
	args   []uint16
}

func parseBootstrapMethods(body []byte) ([]bootstrapMethod, error) {
	reader := newBytesReader(body)
	count, err := reader.ReadU2()
	if err != nil {
		return nil, err
	}

	methods := make([]bootstrapMethod, count)
	for i := range methods {
		if methods[i].handle, err = reader.ReadU2(); err != nil {
			return nil, err
		}
		if methods[i].args, err = reader.ReadU2List(); err != nil {
			return nil, err
		}
	}
	return methods, nil
}

// operandLength returns the operand byte count of a fixed-length instruction,
// or -1 for variable-length and undefined opcodes
func operandLength(op byte) int {
	switch {
	case op <= 0x0f: // nop, aconst_null, iconst_*, lconst_*, fconst_*, dconst_*
		return 0
	case op == 0x10: // bipush
		return 1
	case op == 0x11: // sipush
		return 2
	case op == 0x12: // ldc
		return 1
	case op == 0x13, op == 0x14: // ldc_w, ldc2_w
		return 2
	case op >= 0x15 && op <= 0x19: // iload..aload
		return 1
	case op >= 0x1a && op <= 0x35: // *load_n, *aload
		return 0
	case op >= 0x36 && op <= 0x3a: // istore..astore
		return 1
	case op >= 0x3b && op <= 0x83: // *store_n, *astore, stack ops, arithmetic
		return 0
	case op == OP_IINC:
		return 2
	case op >= 0x85 && op <= 0x98: // conversions, comparisons
		return 0
	case op >= 0x99 && op <= 0xa8: // if*, goto, jsr
		return 2
	case op == 0xa9: // ret
		return 1
	case op >= 0xac && op <= 0xb1: // *return
		return 0
	case op >= 0xb2 && op <= 0xb8: // field access, invokevirtual/special/static
		return 2
	case op == 0xb9, op == 0xba: // invokeinterface, invokedynamic
		return 4
	case op == 0xbb: // new
		return 2
	case op == 0xbc: // newarray
		return 1
	case op == 0xbd: // anewarray
		return 2
	case op == 0xbe, op == 0xbf: // arraylength, athrow
		return 0
	case op == 0xc0, op == 0xc1: // checkcast, instanceof
		return 2
	case op == 0xc2, op == 0xc3: // monitorenter, monitorexit
		return 0
	case op == 0xc5: // multianewarray
		return 3
	case op == 0xc6, op == 0xc7: // ifnull, ifnonnull
		return 2
	case op == 0xc8, op == 0xc9: // goto_w, jsr_w
		return 4
	case op == 0xca, op == 0xfe, op == 0xff: // breakpoint, impdep1, impdep2
		return 0
	}
	return -1
}

// instructionLength returns the total length of the instruction at pc
func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	if n := operandLength(op); n >= 0 {
		return 1 + n, nil
	}

	switch op {
	case OP_TABLESWITCH, OP_LOOKUPSWITCH:
		// operands start at the next 4-byte boundary relative to the method start
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if op == OP_TABLESWITCH {
			if base+12 > len(code) {
				return 0, fmt.Errorf("truncated tableswitch at pc %d", pc)
			}
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0, fmt.Errorf("tableswitch at pc %d has high %d < low %d", pc, high, low)
			}
			return 1 + pad + 12 + 4*int(int64(high)-int64(low)+1), nil
		}
		if base+8 > len(code) {
			return 0, fmt.Errorf("truncated lookupswitch at pc %d", pc)
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d has negative npairs", pc)
		}
		return 1 + pad + 8 + 8*int(npairs), nil

	case OP_WIDE:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		if code[pc+1] == OP_IINC {
			return 6, nil
		}
		return 4, nil
	}

	return 0, fmt.Errorf("undefined opcode 0x%02x at pc %d", op, pc)
}

// scanCode walks a Code attribute's bytecode and keeps every instruction that names a symbol
func scanCode(code []byte, cp *ConstantPool, bootstraps []bootstrapMethod) ([]model.Instruction, error) {
	var instructions []model.Instruction

	for pc := 0; pc < len(code); {
		length, err := instructionLength(code, pc)
		if err != nil {
			return nil, err
		}
		if pc+length > len(code) {
			return nil, fmt.Errorf("instruction 0x%02x at pc %d runs past end of code", code[pc], pc)
		}

		op := model.Opcode(code[pc])
		in := model.Instruction{Opcode: op, Offset: pc}
		keep := true

		switch op {
		case model.OP_LDC, model.OP_LDC_W:
			index := uint16(code[pc+1])
			if op == model.OP_LDC_W {
				index = binary.BigEndian.Uint16(code[pc+1:])
			}
			keep, err = scanLoadConstant(&in, cp, index)

		case model.OP_GETSTATIC, model.OP_PUTSTATIC, model.OP_GETFIELD, model.OP_PUTFIELD:
			in.Ref, err = cp.MemberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err == nil && in.Ref.Kind != model.FieldRef {
				err = fmt.Errorf("%s refers to a method", op)
			}

		case model.OP_INVOKEVIRTUAL, model.OP_INVOKESPECIAL, model.OP_INVOKESTATIC, model.OP_INVOKEINTERFACE:
			in.Ref, err = cp.MemberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err == nil && in.Ref.Kind != model.MethodRef {
				err = fmt.Errorf("%s refers to a field", op)
			}

		case model.OP_INVOKEDYNAMIC:
			err = scanDynamicCallSite(&in, cp, bootstraps, binary.BigEndian.Uint16(code[pc+1:]))

		case model.OP_NEW, model.OP_ANEWARRAY, model.OP_CHECKCAST, model.OP_INSTANCEOF, model.OP_MULTIANEWARRAY:
			var name string
			name, err = cp.ClassName(binary.BigEndian.Uint16(code[pc+1:]))
			in.Ref = model.SymbolicRef{Kind: model.ClassRef, Owner: name}

		default:
			keep = false
		}
		if err != nil {
			return nil, fmt.Errorf("pc %d: %w", pc, err)
		}
		if keep {
			instructions = append(instructions, in)
		}

		pc += length
	}

	return instructions, nil
}

// scanLoadConstant keeps ldc of class, method handle and method type constants
func scanLoadConstant(in *model.Instruction, cp *ConstantPool, index uint16) (bool, error) {
	switch cp.Tag(index) {
	case CONSTANT_Class:
		name, err := cp.ClassName(index)
		if err != nil {
			return false, err
		}
		in.Ref = model.SymbolicRef{Kind: model.ClassRef, Owner: name}
		return true, nil

	case CONSTANT_MethodHandle:
		handle, err := cp.MethodHandle(index)
		if err != nil {
			return false, err
		}
		in.Ref = handle.Ref
		in.Handles = []model.MethodHandle{handle}
		return true, nil

	case CONSTANT_MethodType:
		desc, err := cp.Utf8(cp.entries[index].a)
		if err != nil {
			return false, err
		}
		in.Ref = model.SymbolicRef{Kind: model.DynamicRef, Descriptor: desc}
		in.ClassArgs = model.ReferencedClasses(desc)
		return len(in.ClassArgs) > 0, nil
	}
	return false, nil
}

func scanDynamicCallSite(in *model.Instruction, cp *ConstantPool, bootstraps []bootstrapMethod, index uint16) error {
	bsmIndex, name, desc, err := cp.DynamicNameAndType(index)
	if err != nil {
		return err
	}
	if int(bsmIndex) >= len(bootstraps) {
		return fmt.Errorf("invokedynamic refers to bootstrap method %d of %d", bsmIndex, len(bootstraps))
	}
	in.Ref = model.SymbolicRef{Kind: model.DynamicRef, Name: name, Descriptor: desc}

	bsm := bootstraps[bsmIndex]
	handle, err := cp.MethodHandle(bsm.handle)
	if err != nil {
		return fmt.Errorf("bootstrap method %d: %w", bsmIndex, err)
	}
	in.Handles = append(in.Handles, handle)

	for _, arg := range bsm.args {
		switch cp.Tag(arg) {
		case CONSTANT_MethodHandle:
			h, err := cp.MethodHandle(arg)
			if err != nil {
				return fmt.Errorf("bootstrap argument #%d: %w", arg, err)
			}
			in.Handles = append(in.Handles, h)
		case CONSTANT_Class:
			cls, err := cp.ClassName(arg)
			if err != nil {
				return fmt.Errorf("bootstrap argument #%d: %w", arg, err)
			}
			in.ClassArgs = append(in.ClassArgs, cls)
		}
	}
	return nil
}
