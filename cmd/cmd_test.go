package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/guregu/null.v3"

	"github.com/mabhi256/jverify/internal/classfile/classtest"
	"github.com/mabhi256/jverify/internal/classfile/model"
	"github.com/mabhi256/jverify/internal/config"
	"github.com/mabhi256/jverify/internal/resolver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

const public = model.ACC_PUBLIC

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeClass(t *testing.T, root string, c *classtest.Class) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(c.Name())+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, c.Bytes(), 0o644))
}

// writeHost lays out a host whose Action class has perform but no cancel
func writeHost(t *testing.T, dir string) string {
	t.Helper()
	lib := filepath.Join(dir, "ide", "lib")
	writeClass(t, lib, classtest.New(model.JavaLangObject).Extends("").WithMethod(public, "<init>", "()V"))
	writeClass(t, lib, classtest.New("com/intellij/openapi/Action").WithMethod(public, "perform", "()V"))
	path := filepath.Join(dir, "ide", "host.yaml")
	writeFile(t, path, "version: \"233.1\"\nclasses: [lib]\n")
	return path
}

// writePlugin lays out com.acme calling Action.method
func writePlugin(t *testing.T, dir, method string) string {
	t.Helper()
	writeClass(t, filepath.Join(dir, "classes"), classtest.New("com/acme/Main").WithMethod(public, "run", "()V",
		classtest.InvokeVirtual("com/intellij/openapi/Action", method, "()V")))
	path := filepath.Join(dir, "plugin.yaml")
	writeFile(t, path, "id: com.acme\nversion: \"1.0\"\nclasses: [classes]\n")
	return path
}

func useConfig(t *testing.T, output string) {
	t.Helper()
	conf = config.NewConfig()
	conf.Workers = null.IntFrom(2)
	conf.Output = null.StringFrom(output)
	t.Cleanup(func() {
		conf = config.NewConfig()
		verifyManifests = manifestFlags{}
		depsManifests = manifestFlags{}
	})
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(io.Discard)
	c.SetContext(context.Background())
	return c, &out
}

func TestVerifyWorkspaceReportsProblems(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir)
	writePlugin(t, filepath.Join(dir, "acme"), "cancel")
	writeFile(t, filepath.Join(dir, "workspace.yaml"), "host: ide/host.yaml\nplugins: [acme/plugin.yaml]\n")

	useConfig(t, "json")
	verifyManifests = manifestFlags{workspace: filepath.Join(dir, "workspace.yaml")}

	c, out := testCommand()
	err := runVerify(c, nil)
	require.ErrorIs(t, err, errProblemsFound)
	assert.Contains(t, out.String(), `"com.acme"`)
	assert.Contains(t, out.String(), "MethodNotFound")
}

func TestVerifyCompatiblePlugin(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeHost(t, dir)
	pluginPath := writePlugin(t, filepath.Join(dir, "acme"), "perform")

	useConfig(t, "cli")
	verifyManifests = manifestFlags{host: hostPath}

	c, out := testCommand()
	require.NoError(t, runVerify(c, []string{pluginPath}))
	assert.Contains(t, out.String(), "Compatible")
}

func TestVerifyWithoutPlugins(t *testing.T) {
	dir := t.TempDir()
	useConfig(t, "cli")
	verifyManifests = manifestFlags{host: writeHost(t, dir)}

	c, _ := testCommand()
	assert.EqualError(t, runVerify(c, nil), "no plugins to verify")
}

func TestDiffStoredRuns(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeHost(t, dir)
	broken := writePlugin(t, filepath.Join(dir, "v1"), "cancel")
	fixed := writePlugin(t, filepath.Join(dir, "v2"), "perform")

	useConfig(t, "cli")
	conf.Store = null.StringFrom(filepath.Join(dir, "runs.db"))
	verifyManifests = manifestFlags{host: hostPath}

	c, _ := testCommand()
	require.ErrorIs(t, runVerify(c, []string{broken}), errProblemsFound)
	c, _ = testCommand()
	require.NoError(t, runVerify(c, []string{fixed}))

	c, out := testCommand()
	require.NoError(t, runDiff(c, []string{"com.acme"}))
	assert.Contains(t, out.String(), "RESOLVED (1)")
	assert.NotContains(t, out.String(), "INTRODUCED")

	c, _ = testCommand()
	assert.ErrorContains(t, runDiff(c, []string{"com.other"}), "has 0 stored runs")
}

func TestDiffNeedsStore(t *testing.T) {
	useConfig(t, "cli")
	c, _ := testCommand()
	assert.ErrorContains(t, runDiff(c, []string{"com.acme"}), "--store")
}

func TestDepsMarksMissing(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeHost(t, dir)
	pluginPath := filepath.Join(dir, "acme", "plugin.yaml")
	writeFile(t, pluginPath, "id: com.acme\ndepends: [{id: com.maybe, optional: true}, com.gone]\n")

	useConfig(t, "cli")
	depsManifests = manifestFlags{host: hostPath}

	c, out := testCommand()
	require.ErrorIs(t, runDeps(c, []string{pluginPath}), errProblemsFound)
	assert.Contains(t, out.String(), "com.gone")
	assert.Contains(t, out.String(), "com.maybe")
	assert.Contains(t, out.String(), "✗")
}

func TestListClasses(t *testing.T) {
	first := resolver.NewMemory("first.jar", classtest.Map(classtest.New("a/Shared"), classtest.New("a/Only")))
	second := resolver.NewMemory("second.jar", classtest.Map(classtest.New("a/Shared")))

	entries := listClasses([]resolver.Resolver{first, second})
	require.Len(t, entries, 2)
	assert.Equal(t, "a/Only", entries[0].Name)
	assert.False(t, entries[0].Duplicate())
	assert.Equal(t, "a/Shared", entries[1].Name)
	assert.Len(t, entries[1].Locations, 2)
	assert.True(t, entries[1].Duplicate())
}
