package parser

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/mabhi256/jverify/internal/classfile/model"
)

const CLASS_MAGIC = 0xCAFEBABE

/*
*	ClassFile {
*		u4             magic;
*		u2             minor_version;
*		u2             major_version;
*		u2             constant_pool_count;
*		cp_info        constant_pool[constant_pool_count-1];
*		u2             access_flags;
*		u2             this_class;
*		u2             super_class;
*		u2             interfaces_count;
*		u2             interfaces[interfaces_count];
*		u2             fields_count;
*		field_info     fields[fields_count];
*		u2             methods_count;
*		method_info    methods[methods_count];
*		u2             attributes_count;
*		attribute_info attributes[attributes_count];
*	}
 */

// pendingCode defers bytecode scanning until BootstrapMethods, which trails the methods, is known
type pendingCode struct {
	method *model.Method
	code   []byte
}

type classParser struct {
	reader     *BinaryReader
	cp         *ConstantPool
	class      *model.ClassFile
	codes      []pendingCode
	bootstraps []bootstrapMethod
}

// ParseClassBytes decodes a complete class file held in memory
func ParseClassBytes(data []byte) (*model.ClassFile, error) {
	return ParseClass(bytes.NewReader(data))
}

// ParseClass decodes one class file from r
func ParseClass(r io.Reader) (*model.ClassFile, error) {
	p := &classParser{
		reader: NewBinaryReader(r),
		class:  &model.ClassFile{},
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.class, nil
}

func (p *classParser) fail(stage string, err error) error {
	return &DecodeError{Class: p.class.Name, Stage: stage, Err: err}
}

func (p *classParser) parse() error {
	magic, err := p.reader.ReadU4()
	if err != nil {
		return p.fail("header", err)
	}
	if magic != CLASS_MAGIC {
		return p.fail("header", fmt.Errorf("bad magic 0x%08X", magic))
	}
	if p.class.MinorVersion, err = p.reader.ReadU2(); err != nil {
		return p.fail("header", err)
	}
	if p.class.MajorVersion, err = p.reader.ReadU2(); err != nil {
		return p.fail("header", err)
	}

	if p.cp, err = readConstantPool(p.reader); err != nil {
		return p.fail("constant pool", err)
	}

	if err := p.parseHeader(); err != nil {
		return p.fail("class header", err)
	}

	fieldCount, err := p.reader.ReadU2()
	if err != nil {
		return p.fail("fields", err)
	}
	for range fieldCount {
		field, err := p.parseField()
		if err != nil {
			return p.fail("fields", err)
		}
		p.class.Fields = append(p.class.Fields, field)
	}

	methodCount, err := p.reader.ReadU2()
	if err != nil {
		return p.fail("methods", err)
	}
	for range methodCount {
		method, err := p.parseMethod()
		if err != nil {
			return p.fail("methods", err)
		}
		p.class.Methods = append(p.class.Methods, method)
	}

	if err := p.readAttributes(p.classAttribute); err != nil {
		return p.fail("class attributes", err)
	}

	for _, pending := range p.codes {
		instructions, err := scanCode(pending.code, p.cp, p.bootstraps)
		if err != nil {
			return p.fail("code of "+pending.method.Name+pending.method.Descriptor, err)
		}
		pending.method.Instructions = instructions
	}

	return nil
}

func (p *classParser) parseHeader() error {
	access, err := p.reader.ReadU2()
	if err != nil {
		return fmt.Errorf("failed to read access flags: %w", err)
	}
	p.class.Access = model.AccessFlags(access)

	thisIndex, err := p.reader.ReadU2()
	if err != nil {
		return fmt.Errorf("failed to read this_class: %w", err)
	}
	if p.class.Name, err = p.cp.ClassName(thisIndex); err != nil {
		return fmt.Errorf("failed to resolve this_class: %w", err)
	}

	superIndex, err := p.reader.ReadU2()
	if err != nil {
		return fmt.Errorf("failed to read super_class: %w", err)
	}
	if p.class.SuperName, err = p.cp.OptionalClassName(superIndex); err != nil {
		return fmt.Errorf("failed to resolve super_class: %w", err)
	}

	interfaces, err := p.reader.ReadU2List()
	if err != nil {
		return fmt.Errorf("failed to read interfaces: %w", err)
	}
	for _, index := range interfaces {
		name, err := p.cp.ClassName(index)
		if err != nil {
			return fmt.Errorf("failed to resolve interface: %w", err)
		}
		p.class.Interfaces = append(p.class.Interfaces, name)
	}
	return nil
}

// memberHeader reads access_flags, name_index and descriptor_index shared by field_info and method_info
func (p *classParser) memberHeader() (model.AccessFlags, string, string, error) {
	access, err := p.reader.ReadU2()
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read access flags: %w", err)
	}
	nameIndex, err := p.reader.ReadU2()
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read name index: %w", err)
	}
	descIndex, err := p.reader.ReadU2()
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read descriptor index: %w", err)
	}

	name, err := p.cp.Utf8(nameIndex)
	if err != nil {
		return 0, "", "", err
	}
	desc, err := p.cp.Utf8(descIndex)
	if err != nil {
		return 0, "", "", err
	}
	return model.AccessFlags(access), name, desc, nil
}

func (p *classParser) parseField() (*model.Field, error) {
	access, name, desc, err := p.memberHeader()
	if err != nil {
		return nil, err
	}
	field := &model.Field{Owner: p.class.Name, Name: name, Descriptor: desc, Access: access}

	err = p.readAttributes(func(attr string, body []byte) error {
		switch attr {
		case "Deprecated":
			field.Deprecated = true
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			types, err := p.parseAnnotations(body)
			if err != nil {
				return err
			}
			field.Annotations = append(field.Annotations, types...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return field, nil
}

func (p *classParser) parseMethod() (*model.Method, error) {
	access, name, desc, err := p.memberHeader()
	if err != nil {
		return nil, err
	}
	method := &model.Method{Owner: p.class.Name, Name: name, Descriptor: desc, Access: access}

	err = p.readAttributes(func(attr string, body []byte) error {
		switch attr {
		case "Code":
			return p.parseCode(method, body)
		case "Exceptions":
			names, err := p.classList(body)
			if err != nil {
				return err
			}
			method.Exceptions = names
		case "Deprecated":
			method.Deprecated = true
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			types, err := p.parseAnnotations(body)
			if err != nil {
				return err
			}
			method.Annotations = append(method.Annotations, types...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("method %s%s: %w", name, desc, err)
	}
	return method, nil
}

/*
*	Code_attribute {
*		u2 max_stack;
*		u2 max_locals;
*		u4 code_length;
*		u1 code[code_length];
*		u2 exception_table_length;
*		{   u2 start_pc;
*			u2 end_pc;
*			u2 handler_pc;
*			u2 catch_type;
*		} exception_table[exception_table_length];
*		u2 attributes_count;
*		attribute_info attributes[attributes_count];
*	}
 */
func (p *classParser) parseCode(method *model.Method, body []byte) error {
	reader := newBytesReader(body)
	if err := reader.Skip(4); err != nil {
		return fmt.Errorf("failed to read max_stack/max_locals: %w", err)
	}
	length, err := reader.ReadU4()
	if err != nil {
		return fmt.Errorf("failed to read code length: %w", err)
	}
	if int64(length) > int64(len(body)) {
		return fmt.Errorf("code length %d exceeds attribute length %d", length, len(body))
	}
	code, err := reader.ReadNBytes(int(length))
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}

	handlers, err := reader.ReadU2()
	if err != nil {
		return fmt.Errorf("failed to read exception table length: %w", err)
	}
	for range handlers {
		if err := reader.Skip(6); err != nil {
			return fmt.Errorf("failed to read exception table: %w", err)
		}
		catchType, err := reader.ReadU2()
		if err != nil {
			return fmt.Errorf("failed to read exception table: %w", err)
		}
		if catchType == 0 {
			continue // finally
		}
		name, err := p.cp.ClassName(catchType)
		if err != nil {
			return fmt.Errorf("failed to resolve catch type: %w", err)
		}
		method.CatchTypes = appendUnique(method.CatchTypes, name)
	}

	p.codes = append(p.codes, pendingCode{method: method, code: code})
	return nil
}

func (p *classParser) classAttribute(attr string, body []byte) error {
	switch attr {
	case "SourceFile":
		index, err := newBytesReader(body).ReadU2()
		if err != nil {
			return err
		}
		if p.class.SourceFile, err = p.cp.Utf8(index); err != nil {
			return err
		}
	case "NestHost":
		index, err := newBytesReader(body).ReadU2()
		if err != nil {
			return err
		}
		if p.class.NestHost, err = p.cp.ClassName(index); err != nil {
			return err
		}
	case "NestMembers":
		names, err := p.classList(body)
		if err != nil {
			return err
		}
		p.class.NestMembers = names
	case "BootstrapMethods":
		methods, err := parseBootstrapMethods(body)
		if err != nil {
			return fmt.Errorf("failed to read bootstrap methods: %w", err)
		}
		p.bootstraps = methods
	case "Deprecated":
		p.class.Deprecated = true
	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		types, err := p.parseAnnotations(body)
		if err != nil {
			return err
		}
		p.class.Annotations = append(p.class.Annotations, types...)
	}
	return nil
}

/*
*	attribute_info {
*		u2 attribute_name_index;
*		u4 attribute_length;
*		u1 info[attribute_length];
*	}
 */
func (p *classParser) readAttributes(visit func(name string, body []byte) error) error {
	count, err := p.reader.ReadU2()
	if err != nil {
		return fmt.Errorf("failed to read attributes count: %w", err)
	}

	for range count {
		nameIndex, err := p.reader.ReadU2()
		if err != nil {
			return fmt.Errorf("failed to read attribute name: %w", err)
		}
		length, err := p.reader.ReadU4()
		if err != nil {
			return fmt.Errorf("failed to read attribute length: %w", err)
		}
		name, err := p.cp.Utf8(nameIndex)
		if err != nil {
			return fmt.Errorf("failed to resolve attribute name: %w", err)
		}

		if length > maxAttributeLength {
			return fmt.Errorf("attribute %s length %d is too large", name, length)
		}
		if !knownAttributes[name] {
			if err := p.reader.Skip(int(length)); err != nil {
				return fmt.Errorf("failed to skip attribute %s: %w", name, err)
			}
			continue
		}

		body, err := p.reader.ReadNBytes(int(length))
		if err != nil {
			return fmt.Errorf("failed to read attribute %s: %w", name, err)
		}
		if err := visit(name, body); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
	}
	return nil
}

const maxAttributeLength = 1 << 26

var knownAttributes = map[string]bool{
	"Code":                        true,
	"Exceptions":                  true,
	"Deprecated":                  true,
	"RuntimeVisibleAnnotations":   true,
	"RuntimeInvisibleAnnotations": true,
	"BootstrapMethods":            true,
	"NestHost":                    true,
	"NestMembers":                 true,
	"SourceFile":                  true,
}

// classList decodes a u2 count followed by CONSTANT_Class indexes
func (p *classParser) classList(body []byte) ([]string, error) {
	indexes, err := newBytesReader(body).ReadU2List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(indexes))
	for _, index := range indexes {
		name, err := p.cp.ClassName(index)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func appendUnique(list []string, value string) []string {
	if slices.Contains(list, value) {
		return list
	}
	return append(list, value)
}
