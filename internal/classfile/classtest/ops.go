package classtest

import (
	"bytes"

	"github.com/mabhi256/jverify/internal/classfile/model"
)

type codeWriter struct {
	asm *assembler
	buf bytes.Buffer
}

// Op emits one or more instructions into a method body
type Op func(w *codeWriter)

func (w *codeWriter) op(opcode byte, operand uint16) {
	w.buf.WriteByte(opcode)
	writeU2(&w.buf, operand)
}

func InvokeVirtual(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb6, w.asm.pool.methodRef(owner, name, desc, false)) }
}

func InvokeSpecial(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb7, w.asm.pool.methodRef(owner, name, desc, false)) }
}

func InvokeStatic(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb8, w.asm.pool.methodRef(owner, name, desc, false)) }
}

// InvokeStaticInterface calls a static interface method through an InterfaceMethodref
func InvokeStaticInterface(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb8, w.asm.pool.methodRef(owner, name, desc, true)) }
}

func InvokeInterface(owner, name, desc string) Op {
	return func(w *codeWriter) {
		w.op(0xb9, w.asm.pool.methodRef(owner, name, desc, true))
		w.buf.WriteByte(1) // count
		w.buf.WriteByte(0)
	}
}

// InvokeDynamic emits a call site bootstrapped by bsm with method handle, class or method type arguments
func InvokeDynamic(name, desc string, bsm Handle, args ...any) Op {
	return func(w *codeWriter) {
		var indexes []uint16
		for _, arg := range args {
			switch v := arg.(type) {
			case Handle:
				indexes = append(indexes, w.asm.pool.methodHandle(v))
			case ClassConst:
				indexes = append(indexes, w.asm.pool.class(string(v)))
			case MethodType:
				indexes = append(indexes, w.asm.pool.methodType(string(v)))
			case int32:
				indexes = append(indexes, w.asm.pool.integer(v))
			}
		}
		bsmIndex := w.asm.bootstrap(bsm, indexes)
		w.op(0xba, w.asm.pool.invokeDynamic(bsmIndex, name, desc))
		w.buf.WriteByte(0)
		w.buf.WriteByte(0)
	}
}

// ClassConst marks a bootstrap argument as a CONSTANT_Class
type ClassConst string

// MethodType marks a bootstrap argument as a CONSTANT_MethodType
type MethodType string

func GetStatic(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb2, w.asm.pool.fieldRef(owner, name, desc)) }
}

func PutStatic(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb3, w.asm.pool.fieldRef(owner, name, desc)) }
}

func GetField(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb4, w.asm.pool.fieldRef(owner, name, desc)) }
}

func PutField(owner, name, desc string) Op {
	return func(w *codeWriter) { w.op(0xb5, w.asm.pool.fieldRef(owner, name, desc)) }
}

func NewObject(class string) Op {
	return func(w *codeWriter) { w.op(0xbb, w.asm.pool.class(class)) }
}

func ANewArray(class string) Op {
	return func(w *codeWriter) { w.op(0xbd, w.asm.pool.class(class)) }
}

func CheckCast(class string) Op {
	return func(w *codeWriter) { w.op(0xc0, w.asm.pool.class(class)) }
}

func InstanceOf(class string) Op {
	return func(w *codeWriter) { w.op(0xc1, w.asm.pool.class(class)) }
}

func MultiANewArray(desc string, dims byte) Op {
	return func(w *codeWriter) {
		w.op(0xc5, w.asm.pool.class(desc))
		w.buf.WriteByte(dims)
	}
}

// LdcClass loads a class constant, using ldc_w when the index does not fit a byte
func LdcClass(class string) Op {
	return func(w *codeWriter) { w.ldc(w.asm.pool.class(class)) }
}

func LdcHandle(h Handle) Op {
	return func(w *codeWriter) { w.ldc(w.asm.pool.methodHandle(h)) }
}

func LdcMethodType(desc string) Op {
	return func(w *codeWriter) { w.ldc(w.asm.pool.methodType(desc)) }
}

func LdcInt(v int32) Op {
	return func(w *codeWriter) { w.ldc(w.asm.pool.integer(v)) }
}

// Ldc2Long loads a long constant, which takes two constant pool slots
func Ldc2Long(v int64) Op {
	return func(w *codeWriter) { w.op(0x14, w.asm.pool.long(v)) }
}

func (w *codeWriter) ldc(index uint16) {
	if index <= 0xff {
		w.buf.WriteByte(0x12)
		w.buf.WriteByte(byte(index))
		return
	}
	w.op(0x13, index)
}

// Raw emits bytes verbatim
func Raw(b ...byte) Op {
	return func(w *codeWriter) { w.buf.Write(b) }
}

// TableSwitch emits a tableswitch over [low, high] with every target at offset 0
func TableSwitch(low, high int32) Op {
	return func(w *codeWriter) {
		w.buf.WriteByte(0xaa)
		for w.buf.Len()%4 != 0 {
			w.buf.WriteByte(0)
		}
		writeU4(&w.buf, 0)
		writeU4(&w.buf, uint32(low))
		writeU4(&w.buf, uint32(high))
		for i := low; i <= high; i++ {
			writeU4(&w.buf, 0)
		}
	}
}

// LookupSwitch emits a lookupswitch with the given keys
func LookupSwitch(keys ...int32) Op {
	return func(w *codeWriter) {
		w.buf.WriteByte(0xab)
		for w.buf.Len()%4 != 0 {
			w.buf.WriteByte(0)
		}
		writeU4(&w.buf, 0)
		writeU4(&w.buf, uint32(len(keys)))
		for _, k := range keys {
			writeU4(&w.buf, uint32(k))
			writeU4(&w.buf, 0)
		}
	}
}

// WideIinc emits wide iinc, a six byte instruction
func WideIinc(local uint16, delta int16) Op {
	return func(w *codeWriter) {
		w.buf.WriteByte(0xc4)
		w.buf.WriteByte(0x84)
		writeU2(&w.buf, local)
		writeU2(&w.buf, uint16(delta))
	}
}

// handles for the common bootstrap methods
var (
	LambdaMetafactory = Handle{
		Kind:       byte(model.REF_invokeStatic),
		Owner:      "java/lang/invoke/LambdaMetafactory",
		Name:       "metafactory",
		Descriptor: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;",
	}
	StringConcatFactory = Handle{
		Kind:       byte(model.REF_invokeStatic),
		Owner:      "java/lang/invoke/StringConcatFactory",
		Name:       "makeConcatWithConstants",
		Descriptor: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;",
	}
)
