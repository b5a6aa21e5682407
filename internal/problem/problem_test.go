package problem

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNames(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	assert.Equal(t, "Kind(99)", Kind(99).String())
	_, err := Kind(99).MarshalText()
	assert.Error(t, err)
	_, err = ParseKind("NoSuchKind")
	assert.Error(t, err)
}

func TestKindSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Error, ClassNotFound.Severity())
	assert.Equal(t, Error, DuplicateClass.Severity())
	assert.Equal(t, Warning, DeprecatedAPIUsage.Severity())
	assert.Equal(t, Warning, MissingOptionalDependency.Severity())
}

func TestProblemJSON(t *testing.T) {
	t.Parallel()

	p := New(MethodNotFound, Location{Class: "a/B", Member: "run()V"}, "c/D.go()V", "method %s is not found", "c/D.go()V")
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "MethodNotFound",
		"severity": "error",
		"location": {"class": "a/B", "member": "run()V"},
		"target": "c/D.go()V",
		"description": "method c/D.go()V is not found"
	}`, string(data))

	var back Problem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestListDeduplicates(t *testing.T) {
	t.Parallel()

	a := New(ClassNotFound, Location{Class: "a/A"}, "x/X", "class x/X is not found")
	b := New(DeprecatedAPIUsage, Location{Class: "a/A", Member: "m()V"}, "y/Y", "deprecated class y/Y is used")
	c := New(ClassNotFound, Location{Class: "a/B"}, "x/X", "class x/X is not found")

	l := NewList(a, b, a)
	l.Add(c, b)

	assert.Equal(t, []Problem{a, b, c}, l.All())
	assert.Equal(t, []Problem{a, c}, l.Errors())
	assert.Equal(t, []Problem{b}, l.Warnings())
	assert.True(t, l.HasErrors())
	assert.Equal(t, map[Kind]int{ClassNotFound: 2, DeprecatedAPIUsage: 1}, l.CountByKind())
	assert.Equal(t, []Problem{a, c, b}, l.Sorted())

	var empty *List
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Errors())
}

func TestDiff(t *testing.T) {
	t.Parallel()

	a := New(ClassNotFound, Location{Class: "a/A"}, "x/X", "class x/X is not found")
	b := New(MethodNotFound, Location{Class: "a/A"}, "x/Y.m()V", "method x/Y.m()V is not found")
	c := New(FieldNotFound, Location{Class: "a/A"}, "x/Y.f", "field x/Y.f is not found")

	introduced, resolved := Diff([]Problem{a, b}, []Problem{b, c})
	assert.Equal(t, []Problem{c}, introduced)
	assert.Equal(t, []Problem{a}, resolved)
}
