package verifier

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mabhi256/jverify/internal/classfile/classtest"
	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/problem"
	"github.com/mabhi256/jverify/internal/resolver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	public   = model.ACC_PUBLIC
	static   = model.ACC_STATIC
	abstract = model.ACC_ABSTRACT
)

// platform is the host and runtime every test verifies against
func platform() resolver.Resolver {
	return resolver.NewMemory("platform.jar", classtest.Map(
		classtest.New(model.JavaLangObject).Extends("").
			WithMethod(public, "<init>", "()V").
			WithMethod(public, "hashCode", "()I"),
		classtest.Interface("java/lang/Runnable").WithMethod(public|abstract, "run", "()V"),
		classtest.New("java/lang/invoke/LambdaMetafactory").
			WithMethod(public|static, "metafactory", classtest.LambdaMetafactory.Descriptor),

		classtest.Interface("api/Task").WithMethod(public|abstract, "run", "()V"),
		classtest.New("api/Sealed").Access(public|model.ACC_FINAL|model.ACC_SUPER),
		classtest.New("api/Base").WithMethod(public|model.ACC_FINAL, "m", "()V"),
		classtest.New("api/Util").
			WithMethod(public|static, "s", "()V").
			WithMethod(public, "i", "()V").
			WithMethod(model.ACC_PRIVATE, "p", "()V"),
		classtest.Interface("api/Iface").WithMethod(public|static, "st", "()V"),
		classtest.New("api/AbstractBase").Access(public|abstract|model.ACC_SUPER).
			WithMethod(public|abstract, "run", "()V"),
		classtest.New("api/Holder").
			WithField(public|static, "S", "I").
			WithField(public, "I", "I").
			WithField(public|model.ACC_FINAL, "F", "I").
			WithField(model.ACC_PRIVATE, "P", "I").
			WithField(model.ACC_PROTECTED, "PR", "I"),
		classtest.Interface("api/Consts").WithField(public|static|model.ACC_FINAL, "X", "I"),
		classtest.New("api/HolderSub").Implements("api/Consts"),
		classtest.New("api/Hidden").Access(model.ACC_SUPER),
		classtest.Interface("api/A").WithMethod(public, "m", "()V"),
		classtest.Interface("api/B").WithMethod(public, "m", "()V"),
		classtest.Interface("api/C").Implements("api/A").WithMethod(public, "m", "()V"),
		classtest.Interface("api/D").Implements("api/A").WithMethod(public|abstract, "m", "()V"),
		listener(),
		classtest.New("api/Old").Deprecated(),
	))
}

func listener() *classtest.Class {
	c := classtest.New("api/Listener").WithMethod(public, "<init>", "()V")
	c.Method(public, "onEvent", "()V").Annotate(model.OverrideOnlyAnnotation)
	c.Method(public, "old", "()V").Deprecated()
	return c
}

func verify(t *testing.T, opts Options, deps []resolver.Resolver, classes ...*classtest.Class) *Result {
	t.Helper()
	in := Input{
		Plugin:       resolver.NewMemory("plugin.jar", classtest.Map(classes...)),
		Dependencies: deps,
		Classpath:    platform(),
	}
	result, err := New(opts).Verify(context.Background(), in)
	require.NoError(t, err)
	return result
}

func kinds(problems []problem.Problem) []problem.Kind {
	out := make([]problem.Kind, len(problems))
	for i, p := range problems {
		out[i] = p.Kind
	}
	return out
}

func TestAbstractCoverage(t *testing.T) {
	t.Parallel()

	result := verify(t, Options{}, nil, classtest.New("p/Impl").Implements("api/Task"))
	require.Equal(t, 1, result.Problems.Len())
	p := result.Problems.All()[0]
	assert.Equal(t, problem.MethodNotImplemented, p.Kind)
	assert.Equal(t, "api/Task.run()V", p.Target)
	assert.Equal(t, problem.Location{Class: "p/Impl"}, p.Location)

	result = verify(t, Options{}, nil, classtest.New("p/Impl").Implements("api/Task").WithMethod(public, "run", "()V"))
	assert.Zero(t, result.Problems.Len())

	// abstract classes are not required to implement anything
	result = verify(t, Options{}, nil, classtest.New("p/Partial").Access(public|abstract).Implements("api/Task"))
	assert.Zero(t, result.Problems.Len())
}

func TestDefaultMethods(t *testing.T) {
	t.Parallel()

	result := verify(t, Options{}, nil,
		classtest.New("p/Both").Implements("api/A", "api/B"),
		classtest.New("p/Specific").Implements("api/C", "api/A"),
		classtest.New("p/Reabstracted").Implements("api/D"),
	)
	assert.Equal(t, []problem.Kind{problem.MultipleDefaultImplementations, problem.MethodNotImplemented},
		kinds(result.Problems.All()))

	byClass := make(map[string]problem.Kind)
	for _, p := range result.Problems.All() {
		byClass[p.Location.Class] = p.Kind
	}
	assert.Equal(t, problem.MultipleDefaultImplementations, byClass["p/Both"])
	assert.Equal(t, problem.MethodNotImplemented, byClass["p/Reabstracted"])
	assert.NotContains(t, byClass, "p/Specific")
}

func TestFinalViolations(t *testing.T) {
	t.Parallel()

	result := verify(t, Options{}, nil, classtest.New("p/Sub").Extends("api/Sealed"))
	assert.Equal(t, []problem.Kind{problem.InheritFromFinalClass}, kinds(result.Problems.All()))

	result = verify(t, Options{}, nil, classtest.New("p/Over").Extends("api/Base").WithMethod(public, "m", "()V"))
	require.Equal(t, []problem.Kind{problem.OverridingFinalMethod}, kinds(result.Problems.All()))
	p := result.Problems.All()[0]
	assert.Equal(t, "m()V", p.Location.Member)
	assert.Equal(t, "api/Base.m()V", p.Target)

	// a static method with the same signature does not override
	result = verify(t, Options{}, nil, classtest.New("p/Hide").Extends("api/Base").WithMethod(public|static, "m", "()V"))
	assert.Zero(t, result.Problems.Len())
}

func TestHierarchyProblems(t *testing.T) {
	t.Parallel()

	result := verify(t, Options{}, nil,
		classtest.New("p/X").Extends("api/Task").Implements("api/Util", "missing/I"),
	)
	assert.Equal(t, []problem.Kind{
		problem.SuperClassBecameInterface,
		problem.SuperInterfaceBecameClass,
		problem.InterfaceNotFound,
	}, kinds(result.Problems.All()))
}

func TestDuplicateClass(t *testing.T) {
	t.Parallel()

	dep := resolver.NewMemory("dep.jar", classtest.Map(classtest.New("p/C")))
	other := resolver.NewMemory("other.jar", classtest.Map(classtest.New("p/Other")))
	result := verify(t, Options{}, []resolver.Resolver{other, dep}, classtest.New("p/C"), classtest.New("p/D"))

	require.Equal(t, []problem.Kind{problem.DuplicateClass}, kinds(result.Problems.All()))
	p := result.Problems.All()[0]
	assert.Equal(t, "p/C", p.Location.Class)
	assert.Equal(t, "dep.jar", p.Target)
}

func TestInvocationModes(t *testing.T) {
	t.Parallel()

	caller := classtest.New("p/Caller").WithMethod(public, "call", "()V",
		classtest.InvokeVirtual("api/Util", "s", "()V"),
		classtest.InvokeStatic("api/Util", "i", "()V"),
		classtest.InvokeVirtual("api/Util", "p", "()V"),
		classtest.InvokeInterface("api/Iface", "st", "()V"),
		classtest.InvokeVirtual("api/Iface", "x", "()V"),
		classtest.InvokeInterface("api/Util", "i", "()V"),
		classtest.InvokeVirtual("api/Util", "gone", "()V"),
		classtest.InvokeVirtual("api/Util", "hashCode", "()I"),
		classtest.InvokeStatic("api/Util", "s", "()V"),
		classtest.InvokeVirtual("[Ljava/lang/String;", "clone", "()Ljava/lang/Object;"),
	)
	child := classtest.New("p/Child").Extends("api/AbstractBase").WithMethod(public, "run", "()V",
		classtest.InvokeSpecial("api/AbstractBase", "run", "()V"),
	)

	result := verify(t, Options{}, nil, caller, child)
	assert.Equal(t, map[problem.Kind]int{
		problem.InvokeInstanceOnStaticMethod:  1,
		problem.InvokeStaticOnInstanceMethod:  1,
		problem.IllegalMethodAccess:           1,
		problem.InvokeInterfaceOnStaticMethod: 1,
		problem.InvokeClassMethodOnInterface:  1,
		problem.InvokeInterfaceMethodOnClass:  1,
		problem.MethodNotFound:                1,
		problem.ClassNotFound:                 1,
		problem.AbstractMethodInvocation:      1,
	}, result.Problems.CountByKind())

	missing := result.Problems.OfKind(problem.ClassNotFound)
	require.Len(t, missing, 1)
	assert.Equal(t, "java/lang/String", missing[0].Target)
	assert.Equal(t, "call()V", missing[0].Location.Member)
}

func TestNestmateAccess(t *testing.T) {
	t.Parallel()

	outer := classtest.New("p/Outer").NestMembers("p/Outer$Inner").WithMethod(model.ACC_PRIVATE, "secret", "()V")
	inner := classtest.New("p/Outer$Inner").NestHost("p/Outer").WithMethod(public, "peek", "()V",
		classtest.InvokeVirtual("p/Outer", "secret", "()V"),
	)
	stranger := classtest.New("p/Stranger").WithMethod(public, "peek", "()V",
		classtest.InvokeVirtual("p/Outer", "secret", "()V"),
	)

	result := verify(t, Options{}, nil, outer, inner, stranger)
	require.Equal(t, []problem.Kind{problem.IllegalMethodAccess}, kinds(result.Problems.All()))
	assert.Equal(t, "p/Stranger", result.Problems.All()[0].Location.Class)
}

func TestFieldAccess(t *testing.T) {
	t.Parallel()

	user := classtest.New("p/User").WithMethod(public, "use", "()V",
		classtest.GetField("api/Holder", "S", "I"),
		classtest.GetStatic("api/Holder", "I", "I"),
		classtest.PutField("api/Holder", "F", "I"),
		classtest.GetField("api/Holder", "P", "I"),
		classtest.GetField("api/Holder", "PR", "I"),
		classtest.GetField("api/Holder", "missing", "I"),
		classtest.GetStatic("api/HolderSub", "X", "I"),
		classtest.GetField("api/Holder", "I", "I"),
	)

	result := verify(t, Options{}, nil, user)
	assert.Equal(t, map[problem.Kind]int{
		problem.InstanceAccessOfStaticField: 1,
		problem.StaticAccessOfInstanceField: 1,
		problem.ChangeFinalField:            1,
		problem.IllegalFieldAccess:          2,
		problem.FieldNotFound:               1,
	}, result.Problems.CountByKind())
}

func TestProtectedAccessFromSubclass(t *testing.T) {
	t.Parallel()

	sub := classtest.New("p/HolderChild").Extends("api/Holder").WithMethod(public, "read", "()V",
		classtest.GetField("api/Holder", "PR", "I"),
	)
	result := verify(t, Options{}, nil, sub)
	assert.Zero(t, result.Problems.Len())
}

func TestProtectedAccessThroughUnresolvedSuperclass(t *testing.T) {
	t.Parallel()

	read := classtest.GetField("api/Holder", "PR", "I")
	child := classtest.New("p/Child").Extends("missing/Middle").WithMethod(public, "read", "()V", read)
	stranger := classtest.New("p/Stranger").WithMethod(public, "read", "()V", read)

	result := verify(t, Options{}, nil, child, stranger)
	assert.Equal(t, []problem.Kind{problem.ClassNotFound, problem.IllegalFieldAccess}, kinds(result.Problems.All()))
	assert.Equal(t, "missing/Middle", result.Problems.All()[0].Target)
	assert.Equal(t, "p/Child", result.Problems.All()[0].Location.Class)
	assert.Equal(t, "p/Stranger", result.Problems.All()[1].Location.Class)
}

func TestTypeInstructions(t *testing.T) {
	t.Parallel()

	types := classtest.New("p/Types").WithMethod(public, "make", "()V",
		classtest.NewObject("api/Iface"),
		classtest.NewObject("api/AbstractBase"),
		classtest.CheckCast("missing/T"),
		classtest.ANewArray("[Lmissing/Arr;"),
		classtest.MultiANewArray("[[I", 2),
		classtest.InstanceOf("[Ljava/lang/Object;"),
		classtest.LdcClass("api/Hidden"),
	)

	result := verify(t, Options{}, nil, types)
	assert.Equal(t, []problem.Kind{
		problem.InterfaceInstantiation,
		problem.AbstractClassInstantiation,
		problem.ClassNotFound,
		problem.ClassNotFound,
		problem.IllegalClassAccess,
	}, kinds(result.Problems.All()))

	var targets []string
	for _, p := range result.Problems.OfKind(problem.ClassNotFound) {
		targets = append(targets, p.Target)
	}
	assert.Equal(t, []string{"missing/T", "missing/Arr"}, targets)
}

func TestDynamicCallSites(t *testing.T) {
	t.Parallel()

	handle := func(kind model.HandleKind, owner, name, desc string) classtest.Handle {
		return classtest.Handle{Kind: byte(kind), Owner: owner, Name: name, Descriptor: desc}
	}
	lambdas := classtest.New("p/Lambdas").
		WithMethod(model.ACC_PRIVATE|static, "lambda$0", "()V").
		WithMethod(public, "make", "()V",
			classtest.InvokeDynamic("run", "()Ljava/lang/Runnable;", classtest.LambdaMetafactory,
				classtest.MethodType("()V"), handle(model.REF_invokeStatic, "p/Lambdas", "lambda$0", "()V"), classtest.MethodType("()V")),
		)
	broken := classtest.New("p/Broken").WithMethod(public, "make", "()V",
		classtest.InvokeDynamic("run", "()Ljava/lang/Runnable;", classtest.LambdaMetafactory,
			classtest.MethodType("()V"), handle(model.REF_invokeStatic, "api/Util", "gone", "()V"), classtest.MethodType("()V")),
		classtest.InvokeDynamic("run", "()Ljava/lang/Runnable;", classtest.LambdaMetafactory,
			classtest.MethodType("()V"), handle(model.REF_invokeStatic, "api/Util", "i", "()V"), classtest.ClassConst("missing/K")),
		classtest.LdcHandle(handle(model.REF_getStatic, "api/Holder", "I", "I")),
		classtest.LdcMethodType("(Lmissing/M;)V"),
	)

	result := verify(t, Options{}, nil, lambdas, broken)
	assert.Equal(t, map[problem.Kind]int{
		problem.MethodNotFound:               1,
		problem.InvokeStaticOnInstanceMethod: 1,
		problem.ClassNotFound:                2,
		problem.StaticAccessOfInstanceField:  1,
	}, result.Problems.CountByKind())
	for _, p := range result.Problems.All() {
		assert.Equal(t, "p/Broken", p.Location.Class)
	}
}

func TestMemberTypes(t *testing.T) {
	t.Parallel()

	c := classtest.New("p/Types").WithField(public, "f", "[Lmissing/F;")
	c.Method(public, "m", "(ILmissing/P;)V").Throws("missing/E").Catches("missing/X", "")

	result := verify(t, Options{}, nil, c)
	var targets []string
	for _, p := range result.Problems.All() {
		assert.Equal(t, problem.ClassNotFound, p.Kind)
		targets = append(targets, p.Target)
	}
	assert.Equal(t, []string{"missing/F", "missing/P", "missing/E", "missing/X"}, targets)
}

func TestUnresolvedAncestorSuppression(t *testing.T) {
	t.Parallel()

	orphan := classtest.New("p/Orphan").Extends("missing/Base").Implements("api/Task").
		WithMethod(public, "call", "()V",
			classtest.InvokeVirtual("p/Orphan", "helper", "()V"),
			classtest.GetField("p/Orphan", "state", "I"),
		)
	complete := classtest.New("p/Complete").WithMethod(public, "call", "()V",
		classtest.InvokeVirtual("p/Complete", "helper", "()V"),
	)

	result := verify(t, Options{}, nil, orphan, complete)
	assert.Equal(t, []problem.Kind{problem.MethodNotFound, problem.ClassNotFound}, kinds(result.Problems.All()))
	assert.Equal(t, "p/Complete", result.Problems.All()[0].Location.Class)
	assert.Equal(t, "missing/Base", result.Problems.All()[1].Target)
}

func TestAdvisories(t *testing.T) {
	t.Parallel()

	classes := []*classtest.Class{
		classtest.New("p/L").Extends("api/Listener").WithMethod(public, "onEvent", "()V",
			classtest.InvokeSpecial("api/Listener", "onEvent", "()V"),
		),
		classtest.New("p/Caller").WithMethod(public, "run", "()V",
			classtest.InvokeVirtual("api/Listener", "onEvent", "()V"),
			classtest.InvokeVirtual("api/Listener", "old", "()V"),
			classtest.CheckCast("api/Old"),
			classtest.CheckCast("p/Internal"),
		),
		classtest.New("p/Internal").Deprecated(),
	}

	result := verify(t, Options{}, nil, classes...)
	assert.Empty(t, result.Problems.Errors())
	assert.Equal(t, []problem.Kind{
		problem.OverrideOnlyAPIUsage,
		problem.DeprecatedAPIUsage,
		problem.DeprecatedAPIUsage,
	}, kinds(result.Problems.Warnings()))
	for _, p := range result.Problems.All() {
		assert.Equal(t, problem.Warning, p.Severity)
		assert.Equal(t, "p/Caller", p.Location.Class)
	}

	result = verify(t, Options{SkipAdvisories: true}, nil, classes...)
	assert.Zero(t, result.Problems.Len())
}

func TestFailedToReadClass(t *testing.T) {
	t.Parallel()

	classes := classtest.Map(classtest.New("p/Good").Implements("api/Task"))
	classes["p/Bad"] = []byte{0xca, 0xfe, 0xba}
	in := Input{Plugin: resolver.NewMemory("plugin.jar", classes), Classpath: platform()}

	result, err := New(Options{}).Verify(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Classes)
	assert.Equal(t, []problem.Kind{problem.FailedToReadClass, problem.MethodNotImplemented}, kinds(result.Problems.All()))
	assert.Equal(t, "p/Bad", result.Problems.All()[0].Location.Class)
}

func TestVerifyIsIdempotent(t *testing.T) {
	t.Parallel()

	in := Input{
		Plugin: resolver.NewMemory("plugin.jar", classtest.Map(
			classtest.New("p/Impl").Implements("api/Task", "missing/I"),
			classtest.New("p/Sub").Extends("api/Sealed"),
			classtest.New("p/Caller").WithMethod(public, "call", "()V",
				classtest.InvokeVirtual("api/Util", "gone", "()V"),
				classtest.GetStatic("api/Holder", "I", "I"),
				classtest.CheckCast("api/Old"),
			),
		)),
		Classpath: platform(),
	}

	first, err := New(Options{Workers: 1}).Verify(context.Background(), in)
	require.NoError(t, err)
	second, err := New(Options{Workers: 8}).Verify(context.Background(), in)
	require.NoError(t, err)

	assert.NotZero(t, first.Problems.Len())
	assert.Equal(t, first.Problems.All(), second.Problems.All())
}

func TestVerifyCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Verify(ctx, Input{Plugin: resolver.Empty()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnreadableClassAlsoInDependency(t *testing.T) {
	t.Parallel()

	classes := classtest.Map(classtest.New("p/Good"))
	classes["p/C"] = []byte{0xca, 0xfe, 0xba}
	dep := resolver.NewMemory("dep.jar", classtest.Map(classtest.New("p/C")))
	in := Input{
		Plugin:       resolver.NewMemory("plugin.jar", classes),
		Dependencies: []resolver.Resolver{dep},
		Classpath:    platform(),
	}

	result, err := New(Options{}).Verify(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, []problem.Kind{problem.FailedToReadClass, problem.DuplicateClass}, kinds(result.Problems.All()))
	p := result.Problems.All()[1]
	assert.Equal(t, problem.Location{Class: "p/C"}, p.Location)
	assert.Equal(t, "dep.jar", p.Target)
}

type countingResolver struct {
	resolver.Resolver

	mu    sync.Mutex
	finds map[string]int
}

func (r *countingResolver) Find(name string) resolver.Result {
	r.mu.Lock()
	r.finds[name]++
	r.mu.Unlock()
	return r.Resolver.Find(name)
}

func TestPluginClassesDecodedOnce(t *testing.T) {
	t.Parallel()

	plugin := &countingResolver{
		Resolver: resolver.NewMemory("plugin.jar", classtest.Map(
			classtest.New("p/Base").WithMethod(public, "helper", "()V"),
			classtest.New("p/Impl").Extends("p/Base").Implements("api/Task").WithMethod(public, "run", "()V",
				classtest.InvokeVirtual("p/Base", "helper", "()V"),
				classtest.InvokeVirtual("p/Impl", "helper", "()V"),
			),
		)),
		finds: make(map[string]int),
	}

	result, err := New(Options{Workers: 1}).Verify(context.Background(), Input{Plugin: plugin, Classpath: platform()})
	require.NoError(t, err)
	assert.Zero(t, result.Problems.Len())
	assert.Equal(t, 1, plugin.finds["p/Base"])
	assert.Equal(t, 1, plugin.finds["p/Impl"])
}
