package problem

import "fmt"

type Kind int

const (
	ClassNotFound Kind = iota
	InterfaceNotFound
	FailedToReadClass
	SuperClassBecameInterface
	SuperInterfaceBecameClass
	InheritFromFinalClass
	MethodNotImplemented
	MultipleDefaultImplementations
	OverridingFinalMethod
	MethodNotFound
	InvokeInstanceOnStaticMethod
	InvokeStaticOnInstanceMethod
	InvokeInterfaceOnPrivateMethod
	InvokeInterfaceOnStaticMethod
	InvokeClassMethodOnInterface
	InvokeInterfaceMethodOnClass
	AbstractMethodInvocation
	IllegalMethodAccess
	FieldNotFound
	InstanceAccessOfStaticField
	StaticAccessOfInstanceField
	ChangeFinalField
	IllegalFieldAccess
	IllegalClassAccess
	AbstractClassInstantiation
	InterfaceInstantiation
	DuplicateClass
	MissingOptionalDependency
	CyclicDependency
	DeprecatedAPIUsage
	ExperimentalAPIUsage
	InternalAPIUsage
	OverrideOnlyAPIUsage

	maxKind = OverrideOnlyAPIUsage
)

var kindNames = [...]string{
	ClassNotFound:                  "ClassNotFound",
	InterfaceNotFound:              "InterfaceNotFound",
	FailedToReadClass:              "FailedToReadClass",
	SuperClassBecameInterface:      "SuperClassBecameInterface",
	SuperInterfaceBecameClass:      "SuperInterfaceBecameClass",
	InheritFromFinalClass:          "InheritFromFinalClass",
	MethodNotImplemented:           "MethodNotImplemented",
	MultipleDefaultImplementations: "MultipleDefaultImplementations",
	OverridingFinalMethod:          "OverridingFinalMethod",
	MethodNotFound:                 "MethodNotFound",
	InvokeInstanceOnStaticMethod:   "InvokeInstanceOnStaticMethod",
	InvokeStaticOnInstanceMethod:   "InvokeStaticOnInstanceMethod",
	InvokeInterfaceOnPrivateMethod: "InvokeInterfaceOnPrivateMethod",
	InvokeInterfaceOnStaticMethod:  "InvokeInterfaceOnStaticMethod",
	InvokeClassMethodOnInterface:   "InvokeClassMethodOnInterface",
	InvokeInterfaceMethodOnClass:   "InvokeInterfaceMethodOnClass",
	AbstractMethodInvocation:       "AbstractMethodInvocation",
	IllegalMethodAccess:            "IllegalMethodAccess",
	FieldNotFound:                  "FieldNotFound",
	InstanceAccessOfStaticField:    "InstanceAccessOfStaticField",
	StaticAccessOfInstanceField:    "StaticAccessOfInstanceField",
	ChangeFinalField:               "ChangeFinalField",
	IllegalFieldAccess:             "IllegalFieldAccess",
	IllegalClassAccess:             "IllegalClassAccess",
	AbstractClassInstantiation:     "AbstractClassInstantiation",
	InterfaceInstantiation:         "InterfaceInstantiation",
	DuplicateClass:                 "DuplicateClass",
	MissingOptionalDependency:      "MissingOptionalDependency",
	CyclicDependency:               "CyclicDependency",
	DeprecatedAPIUsage:             "DeprecatedAPIUsage",
	ExperimentalAPIUsage:           "ExperimentalAPIUsage",
	InternalAPIUsage:               "InternalAPIUsage",
	OverrideOnlyAPIUsage:           "OverrideOnlyAPIUsage",
}

// Kinds lists every kind in declaration order
func Kinds() []Kind {
	kinds := make([]Kind, 0, maxKind+1)
	for k := Kind(0); k <= maxKind; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) String() string {
	if k < 0 || k > maxKind {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Severity is the default severity of problems of this kind
func (k Kind) Severity() Severity {
	switch k {
	case MissingOptionalDependency, CyclicDependency,
		DeprecatedAPIUsage, ExperimentalAPIUsage, InternalAPIUsage, OverrideOnlyAPIUsage:
		return Warning
	default:
		return Error
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || k > maxKind {
		return nil, fmt.Errorf("invalid problem kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown problem kind %q", s)
}

type Severity int

const (
	Error Severity = iota
	// Warning is advisory and never fails a verification
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}
