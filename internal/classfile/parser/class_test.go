package parser

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jverify/internal/classfile/classtest"
	"github.com/mabhi256/jverify/internal/classfile/model"
)

func TestParseClassHeader(t *testing.T) {
	t.Parallel()

	data := classtest.New("com/example/Widget").
		Access(model.ACC_PUBLIC|model.ACC_FINAL|model.ACC_SUPER).
		Extends("com/example/Base").
		Implements("java/lang/Runnable", "java/io/Serializable").
		SourceFile("Widget.java").
		Signature("Lcom/example/Base<Ljava/lang/String;>;").
		NestMembers("com/example/Widget$Inner").
		Annotate(model.ExperimentalAnnotation).
		Deprecated().
		Version(55).
		Bytes()

	class, err := ParseClassBytes(data)
	require.NoError(t, err)

	assert.Equal(t, "com/example/Widget", class.Name)
	assert.Equal(t, "com/example", class.Package())
	assert.Equal(t, "com/example/Base", class.SuperName)
	assert.Equal(t, []string{"java/lang/Runnable", "java/io/Serializable"}, class.Interfaces)
	assert.True(t, class.IsFinal())
	assert.False(t, class.IsInterface())
	assert.Equal(t, uint16(55), class.MajorVersion)
	assert.Equal(t, "Widget.java", class.SourceFile)
	assert.Equal(t, []string{"com/example/Widget$Inner"}, class.NestMembers)
	assert.Equal(t, "com/example/Widget", class.NestHostName())
	assert.True(t, class.IsExperimental())
	assert.True(t, class.IsDeprecated())
}

func TestParseClassWithoutSuper(t *testing.T) {
	t.Parallel()

	class, err := ParseClassBytes(classtest.New(model.JavaLangObject).Extends("").Bytes())
	require.NoError(t, err)
	assert.Empty(t, class.SuperName)
}

func TestParseMembers(t *testing.T) {
	t.Parallel()

	c := classtest.New("com/example/Service").NestHost("com/example/Outer")
	c.Field(model.ACC_PRIVATE|model.ACC_STATIC|model.ACC_FINAL, "INSTANCE", "Lcom/example/Service;").
		Deprecated()
	c.Field(model.ACC_PROTECTED, "names", "[Ljava/lang/String;").
		Annotate(model.InternalAnnotation)
	c.Method(model.ACC_PUBLIC|model.ACC_ABSTRACT, "run", "(I)V").
		Throws("java/io/IOException")
	c.Method(model.ACC_PUBLIC, "call", "()Ljava/lang/Object;").
		Catches("java/lang/IllegalStateException", "", "java/lang/IllegalStateException", "java/io/IOException").
		Annotate(model.OverrideOnlyAnnotation, model.DeprecatedAnnotation)

	class, err := ParseClassBytes(c.Bytes())
	require.NoError(t, err)
	require.Len(t, class.Fields, 2)
	require.Len(t, class.Methods, 2)

	assert.Equal(t, "com/example/Outer", class.NestHostName())

	instance := class.FindField("INSTANCE", "Lcom/example/Service;")
	require.NotNil(t, instance)
	assert.Equal(t, "com/example/Service", instance.Owner)
	assert.True(t, instance.Access.IsStatic())
	assert.True(t, instance.Access.IsFinal())
	assert.True(t, instance.IsDeprecated())

	names := class.FindField("names", "[Ljava/lang/String;")
	require.NotNil(t, names)
	assert.True(t, names.Access.IsProtected())
	assert.True(t, names.IsInternal())
	assert.Nil(t, class.FindField("names", "Ljava/lang/String;"))

	run := class.FindMethod("run", "(I)V")
	require.NotNil(t, run)
	assert.True(t, run.Access.IsAbstract())
	assert.Equal(t, []string{"java/io/IOException"}, run.Exceptions)
	assert.Empty(t, run.Instructions)

	call := class.FindMethod("call", "()Ljava/lang/Object;")
	require.NotNil(t, call)
	assert.Equal(t, []string{"java/lang/IllegalStateException", "java/io/IOException"}, call.CatchTypes)
	assert.True(t, call.IsOverrideOnly())
	assert.True(t, call.IsDeprecated())
	assert.Equal(t, "call()Ljava/lang/Object;", call.Signature())
}

func TestScanInstructions(t *testing.T) {
	t.Parallel()

	c := classtest.New("com/example/Caller")
	c.Method(model.ACC_PUBLIC, "work", "()V",
		classtest.Ldc2Long(42),
		classtest.InvokeVirtual("com/example/A", "virt", "()V"),
		classtest.TableSwitch(1, 3),
		classtest.InvokeStatic("com/example/A", "stat", "(I)I"),
		classtest.LookupSwitch(7, 11),
		classtest.InvokeSpecial("com/example/A", model.ConstructorName, "()V"),
		classtest.WideIinc(300, -2),
		classtest.InvokeInterface("com/example/I", "call", "()Ljava/lang/Object;"),
		classtest.GetStatic("com/example/A", "S", "I"),
		classtest.PutStatic("com/example/A", "S", "I"),
		classtest.GetField("com/example/A", "f", "J"),
		classtest.PutField("com/example/A", "f", "J"),
		classtest.NewObject("com/example/A"),
		classtest.ANewArray("com/example/Elem"),
		classtest.CheckCast("[Lcom/example/Elem;"),
		classtest.InstanceOf("com/example/I"),
		classtest.MultiANewArray("[[Lcom/example/Grid;", 2),
		classtest.LdcInt(5),
		classtest.LdcClass("com/example/Token"),
		classtest.LdcHandle(classtest.Handle{Kind: byte(model.REF_getStatic), Owner: "com/example/A", Name: "S", Descriptor: "I"}),
		classtest.InvokeStaticInterface("com/example/I", "of", "()Lcom/example/I;"),
	)

	class, err := ParseClassBytes(c.Bytes())
	require.NoError(t, err)

	work := class.FindMethod("work", "()V")
	require.NotNil(t, work)

	var got []string
	for _, in := range work.Instructions {
		got = append(got, fmt.Sprintf("%s %s", in.Opcode, in.Ref))
	}
	assert.Equal(t, []string{
		"invokevirtual com/example/A.virt()V",
		"invokestatic com/example/A.stat(I)I",
		"invokespecial com/example/A.<init>()V",
		"invokeinterface com/example/I.call()Ljava/lang/Object;",
		"getstatic com/example/A.S : I",
		"putstatic com/example/A.S : I",
		"getfield com/example/A.f : J",
		"putfield com/example/A.f : J",
		"new com/example/A",
		"anewarray com/example/Elem",
		"checkcast [Lcom/example/Elem;",
		"instanceof com/example/I",
		"multianewarray [[Lcom/example/Grid;",
		"ldc com/example/Token",
		"ldc com/example/A.S : I",
		"invokestatic com/example/I.of()Lcom/example/I;",
	}, got)

	byOpcode := func(op model.Opcode) []model.Instruction {
		var out []model.Instruction
		for _, in := range work.Instructions {
			if in.Opcode == op {
				out = append(out, in)
			}
		}
		return out
	}

	iface := byOpcode(model.OP_INVOKEINTERFACE)
	require.Len(t, iface, 1)
	assert.True(t, iface[0].Ref.Interface)
	assert.Equal(t, model.InvokeInterface, iface[0].InvocationMode())

	statics := byOpcode(model.OP_INVOKESTATIC)
	require.Len(t, statics, 2)
	assert.False(t, statics[0].Ref.Interface)
	assert.True(t, statics[1].Ref.Interface)

	puts := byOpcode(model.OP_PUTSTATIC)
	require.Len(t, puts, 1)
	assert.Equal(t, model.FieldAccess{Write: true, Static: true}, puts[0].FieldAccess())

	ldcs := byOpcode(model.OP_LDC)
	require.Len(t, ldcs, 2)
	assert.Equal(t, model.ClassRef, ldcs[0].Ref.Kind)
	require.Len(t, ldcs[1].Handles, 1)
	assert.Equal(t, model.REF_getStatic, ldcs[1].Handles[0].Kind)
	assert.Equal(t, model.FieldAccess{Static: true}, ldcs[1].Handles[0].FieldAccess())
}

func TestScanInvokeDynamic(t *testing.T) {
	t.Parallel()

	impl := classtest.Handle{
		Kind:       byte(model.REF_invokeStatic),
		Owner:      "com/example/Lambdas",
		Name:       "lambda$run$0",
		Descriptor: "(Lcom/example/Event;)V",
	}
	c := classtest.New("com/example/Lambdas")
	c.Method(model.ACC_PUBLIC, "run", "()V",
		classtest.InvokeDynamic("accept", "()Ljava/util/function/Consumer;", classtest.LambdaMetafactory,
			classtest.MethodType("(Ljava/lang/Object;)V"),
			impl,
			classtest.MethodType("(Lcom/example/Event;)V"),
		),
		classtest.InvokeDynamic("make", "()Ljava/lang/Object;", classtest.StringConcatFactory,
			classtest.ClassConst("com/example/Token"),
			int32(3),
		),
	)
	c.Method(model.ACC_PRIVATE|model.ACC_STATIC|model.ACC_SYNTHETIC, "lambda$run$0", "(Lcom/example/Event;)V")

	class, err := ParseClassBytes(c.Bytes())
	require.NoError(t, err)

	run := class.FindMethod("run", "()V")
	require.NotNil(t, run)
	require.Len(t, run.Instructions, 2)

	lambda := run.Instructions[0]
	assert.Equal(t, model.OP_INVOKEDYNAMIC, lambda.Opcode)
	assert.Equal(t, model.InvokeDynamic, lambda.InvocationMode())
	assert.Equal(t, model.DynamicRef, lambda.Ref.Kind)
	assert.Equal(t, "accept", lambda.Ref.Name)
	require.Len(t, lambda.Handles, 2)
	assert.Equal(t, "java/lang/invoke/LambdaMetafactory", lambda.Handles[0].Ref.Owner)
	assert.Equal(t, "com/example/Lambdas.lambda$run$0(Lcom/example/Event;)V", lambda.Handles[1].Ref.String())
	assert.Equal(t, model.InvokeStatic, lambda.Handles[1].InvocationMode())
	assert.Empty(t, lambda.ClassArgs)

	concat := run.Instructions[1]
	require.Len(t, concat.Handles, 1)
	assert.Equal(t, []string{"com/example/Token"}, concat.ClassArgs)
}

func TestScanLdcWide(t *testing.T) {
	t.Parallel()

	// push the class constant past index 255 so the assembler switches to ldc_w
	c := classtest.New("com/example/Wide")
	for i := range 300 {
		c.Field(model.ACC_PRIVATE, fmt.Sprintf("f%d", i), "I")
	}
	c.Method(model.ACC_PUBLIC, "get", "()V",
		classtest.LdcClass("com/example/Late"),
		classtest.LdcMethodType("(Lcom/example/Param;)V"),
	)

	class, err := ParseClassBytes(c.Bytes())
	require.NoError(t, err)

	get := class.FindMethod("get", "()V")
	require.NotNil(t, get)
	require.Len(t, get.Instructions, 2)
	assert.Equal(t, model.OP_LDC_W, get.Instructions[0].Opcode)
	assert.Equal(t, "com/example/Late", get.Instructions[0].Ref.Owner)
	assert.Equal(t, []string{"com/example/Param"}, get.Instructions[1].ClassArgs)
}

func TestParseClassErrors(t *testing.T) {
	t.Parallel()

	valid := classtest.New("com/example/Broken").
		WithMethod(model.ACC_PUBLIC, "m", "()V", classtest.InvokeVirtual("a/B", "c", "()V")).
		Bytes()

	tests := []struct {
		name      string
		data      []byte
		class     string
		stage     string
		errSubstr string
	}{
		{
			name:      "bad magic",
			data:      []byte{0xCA, 0xFE, 0xD0, 0x0D, 0, 0, 0, 52},
			stage:     "header",
			errSubstr: "bad magic",
		},
		{
			name:  "empty",
			data:  nil,
			stage: "header",
		},
		{
			name:  "truncated after header",
			data:  valid[:len(valid)-1],
			class: "com/example/Broken",
			stage: "class attributes",
		},
		{
			name:      "undefined opcode",
			data:      classtest.New("com/example/Bad").WithMethod(model.ACC_PUBLIC, "m", "()V", classtest.Raw(0xcb)).Bytes(),
			class:     "com/example/Bad",
			stage:     "code of m()V",
			errSubstr: "undefined opcode",
		},
		{
			name:      "truncated instruction",
			data:      classtest.New("com/example/Short").WithMethod(model.ACC_PUBLIC, "m", "()V", classtest.Raw(0x11)).Bytes(),
			class:     "com/example/Short",
			stage:     "code of m()V",
			errSubstr: "runs past end of code",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseClassBytes(tc.data)
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tc.class, decodeErr.Class)
			assert.Equal(t, tc.stage, decodeErr.Stage)
			if tc.errSubstr != "" {
				assert.Contains(t, err.Error(), tc.errSubstr)
			}
		})
	}
}

func TestOperandLength(t *testing.T) {
	t.Parallel()

	tests := map[byte]int{
		0x00: 0, 0x10: 1, 0x11: 2, 0x12: 1, 0x13: 2, 0x14: 2,
		0x19: 1, 0x2a: 0, 0x3a: 1, 0x84: 2, 0xa7: 2, 0xa9: 1,
		0xb1: 0, 0xb6: 2, 0xb9: 4, 0xba: 4, 0xbc: 1, 0xc5: 3,
		0xc8: 4, 0xaa: -1, 0xab: -1, 0xc4: -1, 0xcb: -1,
	}
	for op, want := range tests {
		assert.Equal(t, want, operandLength(op), "opcode 0x%02x", op)
	}
}

func TestDecodeModifiedUTF8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("java/lang/Object"), "java/lang/Object"},
		{[]byte{'a', 0xC0, 0x80, 'b'}, "a\x00b"},
		{[]byte{0xC3, 0xA9}, "é"},
		{[]byte{0xE2, 0x82, 0xAC}, "€"},
		{[]byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}, "\U0001F600"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, decodeModifiedUTF8(tc.in))
	}
}
