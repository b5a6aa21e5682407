package classtest

import (
	"bytes"

	"github.com/mabhi256/jverify/internal/classfile/model"
)

// Handle describes a CONSTANT_MethodHandle
type Handle struct {
	Kind       byte
	Owner      string
	Name       string
	Descriptor string
	Interface  bool
}

// Class is a class file under construction. The zero value is not usable; call New.
type Class struct {
	name        string
	access      model.AccessFlags
	super       string
	interfaces  []string
	fields      []*Field
	methods     []*Method
	annotations []string
	deprecated  bool
	nestHost    string
	nestMembers []string
	sourceFile  string
	signature   string
	major       uint16
}

// New starts a public class extending java/lang/Object
func New(name string) *Class {
	return &Class{
		name:   name,
		access: model.ACC_PUBLIC | model.ACC_SUPER,
		super:  model.JavaLangObject,
		major:  61,
	}
}

// Interface starts a public abstract interface
func Interface(name string) *Class {
	return New(name).Access(model.ACC_PUBLIC | model.ACC_INTERFACE | model.ACC_ABSTRACT)
}

func (c *Class) Access(flags model.AccessFlags) *Class {
	c.access = flags
	return c
}

// Extends sets the superclass; "" produces a class without one
func (c *Class) Extends(super string) *Class {
	c.super = super
	return c
}

func (c *Class) Implements(interfaces ...string) *Class {
	c.interfaces = append(c.interfaces, interfaces...)
	return c
}

func (c *Class) Annotate(descriptors ...string) *Class {
	c.annotations = append(c.annotations, descriptors...)
	return c
}

func (c *Class) Deprecated() *Class {
	c.deprecated = true
	return c
}

func (c *Class) NestHost(host string) *Class {
	c.nestHost = host
	return c
}

func (c *Class) NestMembers(members ...string) *Class {
	c.nestMembers = append(c.nestMembers, members...)
	return c
}

func (c *Class) SourceFile(name string) *Class {
	c.sourceFile = name
	return c
}

// Signature adds a generic Signature attribute, which readers are expected to skip
func (c *Class) Signature(sig string) *Class {
	c.signature = sig
	return c
}

func (c *Class) Version(major uint16) *Class {
	c.major = major
	return c
}

func (c *Class) Name() string {
	return c.name
}

// Map assembles classes keyed by binary name
func Map(classes ...*Class) map[string][]byte {
	out := make(map[string][]byte, len(classes))
	for _, c := range classes {
		out[c.name] = c.Bytes()
	}
	return out
}

// Field adds a field and returns it for further configuration
func (c *Class) Field(access model.AccessFlags, name, desc string) *Field {
	f := &Field{access: access, name: name, desc: desc}
	c.fields = append(c.fields, f)
	return f
}

// Method adds a method with the given code and returns it for further configuration.
// Non-abstract, non-native methods always get a Code attribute ending in return.
func (c *Class) Method(access model.AccessFlags, name, desc string, code ...Op) *Method {
	m := &Method{access: access, name: name, desc: desc, code: code}
	c.methods = append(c.methods, m)
	return m
}

// WithField is Field for chaining on the class
func (c *Class) WithField(access model.AccessFlags, name, desc string) *Class {
	c.Field(access, name, desc)
	return c
}

// WithMethod is Method for chaining on the class
func (c *Class) WithMethod(access model.AccessFlags, name, desc string, code ...Op) *Class {
	c.Method(access, name, desc, code...)
	return c
}

type Field struct {
	access      model.AccessFlags
	name, desc  string
	annotations []string
	deprecated  bool
}

func (f *Field) Annotate(descriptors ...string) *Field {
	f.annotations = append(f.annotations, descriptors...)
	return f
}

func (f *Field) Deprecated() *Field {
	f.deprecated = true
	return f
}

type Method struct {
	access      model.AccessFlags
	name, desc  string
	code        []Op
	throws      []string
	catches     []string
	annotations []string
	deprecated  bool
}

func (m *Method) Throws(classes ...string) *Method {
	m.throws = append(m.throws, classes...)
	return m
}

// Catches adds exception table entries; "" adds a finally handler
func (m *Method) Catches(classes ...string) *Method {
	m.catches = append(m.catches, classes...)
	return m
}

func (m *Method) Annotate(descriptors ...string) *Method {
	m.annotations = append(m.annotations, descriptors...)
	return m
}

func (m *Method) Deprecated() *Method {
	m.deprecated = true
	return m
}

type bootstrap struct {
	handle uint16
	args   []uint16
}

type assembler struct {
	pool       *pool
	bootstraps []bootstrap
	bsmIndex   map[string]uint16
}

// Bytes assembles the class file
func (c *Class) Bytes() []byte {
	a := &assembler{pool: newPool(), bsmIndex: make(map[string]uint16)}

	var body bytes.Buffer
	writeU2(&body, uint16(c.access))
	writeU2(&body, a.pool.class(c.name))
	if c.super == "" {
		writeU2(&body, 0)
	} else {
		writeU2(&body, a.pool.class(c.super))
	}
	writeU2(&body, uint16(len(c.interfaces)))
	for _, iface := range c.interfaces {
		writeU2(&body, a.pool.class(iface))
	}

	writeU2(&body, uint16(len(c.fields)))
	for _, f := range c.fields {
		writeU2(&body, uint16(f.access))
		writeU2(&body, a.pool.utf8(f.name))
		writeU2(&body, a.pool.utf8(f.desc))
		a.writeAttributes(&body, a.memberAttributes(f.annotations, f.deprecated))
	}

	writeU2(&body, uint16(len(c.methods)))
	for _, m := range c.methods {
		writeU2(&body, uint16(m.access))
		writeU2(&body, a.pool.utf8(m.name))
		writeU2(&body, a.pool.utf8(m.desc))

		var attrs []attribute
		if !m.access.Has(model.ACC_ABSTRACT | model.ACC_NATIVE) {
			attrs = append(attrs, attribute{"Code", a.code(m)})
		}
		if len(m.throws) > 0 {
			attrs = append(attrs, attribute{"Exceptions", a.classList(m.throws)})
		}
		attrs = append(attrs, a.memberAttributes(m.annotations, m.deprecated)...)
		a.writeAttributes(&body, attrs)
	}

	var attrs []attribute
	if c.sourceFile != "" {
		var b bytes.Buffer
		writeU2(&b, a.pool.utf8(c.sourceFile))
		attrs = append(attrs, attribute{"SourceFile", b.Bytes()})
	}
	if c.signature != "" {
		var b bytes.Buffer
		writeU2(&b, a.pool.utf8(c.signature))
		attrs = append(attrs, attribute{"Signature", b.Bytes()})
	}
	if c.nestHost != "" {
		var b bytes.Buffer
		writeU2(&b, a.pool.class(c.nestHost))
		attrs = append(attrs, attribute{"NestHost", b.Bytes()})
	}
	if len(c.nestMembers) > 0 {
		attrs = append(attrs, attribute{"NestMembers", a.classList(c.nestMembers)})
	}
	attrs = append(attrs, a.memberAttributes(c.annotations, c.deprecated)...)
	if len(a.bootstraps) > 0 {
		var b bytes.Buffer
		writeU2(&b, uint16(len(a.bootstraps)))
		for _, bsm := range a.bootstraps {
			writeU2(&b, bsm.handle)
			writeU2(&b, uint16(len(bsm.args)))
			for _, arg := range bsm.args {
				writeU2(&b, arg)
			}
		}
		attrs = append(attrs, attribute{"BootstrapMethods", b.Bytes()})
	}
	a.writeAttributes(&body, attrs)

	var out bytes.Buffer
	writeU4(&out, 0xCAFEBABE)
	writeU2(&out, 0)
	writeU2(&out, c.major)
	writeU2(&out, a.pool.count)
	out.Write(a.pool.buf.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

type attribute struct {
	name string
	body []byte
}

func (a *assembler) writeAttributes(b *bytes.Buffer, attrs []attribute) {
	writeU2(b, uint16(len(attrs)))
	for _, attr := range attrs {
		writeU2(b, a.pool.utf8(attr.name))
		writeU4(b, uint32(len(attr.body)))
		b.Write(attr.body)
	}
}

func (a *assembler) memberAttributes(annotations []string, deprecated bool) []attribute {
	var attrs []attribute
	if deprecated {
		attrs = append(attrs, attribute{"Deprecated", nil})
	}
	if len(annotations) > 0 {
		var b bytes.Buffer
		writeU2(&b, uint16(len(annotations)))
		for _, desc := range annotations {
			writeU2(&b, a.pool.utf8(desc))
			// one element pair exercises element_value skipping
			writeU2(&b, 1)
			writeU2(&b, a.pool.utf8("value"))
			b.WriteByte('[')
			writeU2(&b, 2)
			b.WriteByte('s')
			writeU2(&b, a.pool.utf8("since"))
			b.WriteByte('e')
			writeU2(&b, a.pool.utf8("Ljava/lang/annotation/ElementType;"))
			writeU2(&b, a.pool.utf8("METHOD"))
		}
		attrs = append(attrs, attribute{"RuntimeVisibleAnnotations", b.Bytes()})
	}
	return attrs
}

func (a *assembler) classList(names []string) []byte {
	var b bytes.Buffer
	writeU2(&b, uint16(len(names)))
	for _, name := range names {
		writeU2(&b, a.pool.class(name))
	}
	return b.Bytes()
}

func (a *assembler) code(m *Method) []byte {
	w := &codeWriter{asm: a}
	for _, op := range m.code {
		op(w)
	}
	w.buf.WriteByte(0xb1) // return

	var b bytes.Buffer
	writeU2(&b, 8)  // max_stack
	writeU2(&b, 16) // max_locals
	writeU4(&b, uint32(w.buf.Len()))
	b.Write(w.buf.Bytes())

	writeU2(&b, uint16(len(m.catches)))
	for _, catch := range m.catches {
		writeU2(&b, 0)
		writeU2(&b, uint16(w.buf.Len()-1))
		writeU2(&b, uint16(w.buf.Len()-1))
		if catch == "" {
			writeU2(&b, 0)
		} else {
			writeU2(&b, a.pool.class(catch))
		}
	}
	writeU2(&b, 0) // code attributes
	return b.Bytes()
}

func (a *assembler) bootstrap(h Handle, args []uint16) uint16 {
	handle := a.pool.methodHandle(h)
	key := []byte{byte(handle >> 8), byte(handle)}
	for _, arg := range args {
		key = append(key, byte(arg>>8), byte(arg))
	}
	if i, ok := a.bsmIndex[string(key)]; ok {
		return i
	}
	i := uint16(len(a.bootstraps))
	a.bootstraps = append(a.bootstraps, bootstrap{handle: handle, args: args})
	a.bsmIndex[string(key)] = i
	return i
}
