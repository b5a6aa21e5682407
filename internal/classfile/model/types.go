package model

import "slices"

const (
	JavaLangObject = "java/lang/Object"

	ConstructorName       = "<init>"
	StaticInitializerName = "<clinit>"
)

// Annotation type descriptors the advisory checks look for
const (
	DeprecatedAnnotation   = "Ljava/lang/Deprecated;"
	OverrideOnlyAnnotation = "Lorg/jetbrains/annotations/ApiStatus$OverrideOnly;"
	ExperimentalAnnotation = "Lorg/jetbrains/annotations/ApiStatus$Experimental;"
	InternalAnnotation     = "Lorg/jetbrains/annotations/ApiStatus$Internal;"
)

// ClassFile is the parsed, immutable form of one compiled class
type ClassFile struct {
	Name         string
	Access       AccessFlags
	SuperName    string // empty only for java/lang/Object (and module-info)
	Interfaces   []string
	Fields       []*Field
	Methods      []*Method
	MajorVersion uint16
	MinorVersion uint16

	SourceFile  string
	NestHost    string
	NestMembers []string
	Annotations []string
	Deprecated  bool // Deprecated attribute
}

func (c *ClassFile) Package() string   { return PackageOf(c.Name) }
func (c *ClassFile) IsInterface() bool { return c.Access.IsInterface() }
func (c *ClassFile) IsAbstract() bool  { return c.Access.IsAbstract() }
func (c *ClassFile) IsFinal() bool     { return c.Access.IsFinal() }
func (c *ClassFile) IsPublic() bool    { return c.Access.IsPublic() }

// IsConcrete reports a class that can be instantiated and must implement every abstract method
func (c *ClassFile) IsConcrete() bool {
	return !c.Access.Has(ACC_ABSTRACT | ACC_INTERFACE)
}

// FindMethod returns the method declared by this class with the exact name and descriptor
func (c *ClassFile) FindMethod(name, descriptor string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// FindField returns the field declared by this class with the exact name and descriptor
func (c *ClassFile) FindField(name, descriptor string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && f.Descriptor == descriptor {
			return f
		}
	}
	return nil
}

// NestHostName returns the class that owns this class's nest
func (c *ClassFile) NestHostName() string {
	if c.NestHost != "" {
		return c.NestHost
	}
	return c.Name
}

func (c *ClassFile) HasAnnotation(desc string) bool {
	return slices.Contains(c.Annotations, desc)
}

func (c *ClassFile) IsDeprecated() bool {
	return c.Deprecated || c.HasAnnotation(DeprecatedAnnotation)
}

func (c *ClassFile) IsOverrideOnly() bool { return c.HasAnnotation(OverrideOnlyAnnotation) }
func (c *ClassFile) IsExperimental() bool { return c.HasAnnotation(ExperimentalAnnotation) }
func (c *ClassFile) IsInternal() bool     { return c.HasAnnotation(InternalAnnotation) }

// Method is a method_info with its scanned code
type Method struct {
	Owner        string
	Name         string
	Descriptor   string
	Access       AccessFlags
	Exceptions   []string // declared checked exceptions
	CatchTypes   []string // exception table catch types, finally handlers excluded
	Instructions []Instruction
	Annotations  []string
	Deprecated   bool
}

// Signature is the name+descriptor key used for override matching
func (m *Method) Signature() string {
	return m.Name + m.Descriptor
}

func (m *Method) String() string {
	return m.Owner + "." + m.Name + m.Descriptor
}

func (m *Method) IsConstructor() bool {
	return m.Name == ConstructorName
}

func (m *Method) IsInitializer() bool {
	return m.Name == ConstructorName || m.Name == StaticInitializerName
}

func (m *Method) HasAnnotation(desc string) bool {
	return slices.Contains(m.Annotations, desc)
}

func (m *Method) IsDeprecated() bool {
	return m.Deprecated || m.HasAnnotation(DeprecatedAnnotation)
}

func (m *Method) IsOverrideOnly() bool { return m.HasAnnotation(OverrideOnlyAnnotation) }
func (m *Method) IsExperimental() bool { return m.HasAnnotation(ExperimentalAnnotation) }
func (m *Method) IsInternal() bool     { return m.HasAnnotation(InternalAnnotation) }

// Field is a field_info
type Field struct {
	Owner       string
	Name        string
	Descriptor  string
	Access      AccessFlags
	Annotations []string
	Deprecated  bool
}

func (f *Field) String() string {
	return f.Owner + "." + f.Name + " : " + f.Descriptor
}

func (f *Field) HasAnnotation(desc string) bool {
	return slices.Contains(f.Annotations, desc)
}

func (f *Field) IsDeprecated() bool {
	return f.Deprecated || f.HasAnnotation(DeprecatedAnnotation)
}

func (f *Field) IsExperimental() bool { return f.HasAnnotation(ExperimentalAnnotation) }
func (f *Field) IsInternal() bool     { return f.HasAnnotation(InternalAnnotation) }
