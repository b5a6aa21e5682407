package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jverify/internal/classfile/classtest"
	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/resolver"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeClass(t *testing.T, root, name string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name)+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, classtest.New(name).Bytes(), 0o644))
}

func TestReadPluginDependencies(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugins/acme/plugin.yaml", []byte(`
id: com.acme
version: 1.2.0
depends:
  - com.intellij.java
  - id: org.jetbrains.kotlin
    optional: true
  - id: com.intellij.modules.platform
    module: true
modules: [com.acme.core]
classes: [lib, /opt/shared.jar]
`), 0o644))

	m, err := ReadPlugin(fs, "/plugins/acme/plugin.yaml")
	require.NoError(t, err)

	assert.Equal(t, []Dependency{
		{ID: "com.intellij.java"},
		{ID: "org.jetbrains.kotlin", Optional: true},
		{ID: "com.intellij.modules.platform", Module: true},
	}, m.Depends)
	assert.Equal(t, []string{"/plugins/acme/lib", "/opt/shared.jar"}, m.ClassPaths())
}

func TestReadInvalidManifests(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.yaml", []byte("version: 1\ndepends: [{optional: true}]\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/h.yaml", []byte("plugins: [{id: a}]\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/w.yaml", []byte("plugins: [a.yaml]\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/broken.yaml", []byte("id: [\n"), 0o644))

	_, err := ReadPlugin(fs, "/p.yaml")
	assert.ErrorContains(t, err, "id is required")
	assert.ErrorContains(t, err, "dependency 0 has no id")

	_, err = ReadHost(fs, "/h.yaml")
	assert.ErrorContains(t, err, "version is required")

	_, err = ReadWorkspace(fs, "/w.yaml")
	assert.ErrorContains(t, err, "host is required")

	_, err = ReadPlugin(fs, "/broken.yaml")
	assert.ErrorContains(t, err, "failed to parse manifest")

	_, err = ReadPlugin(fs, "/missing.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenHostAndWorkspace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClass(t, filepath.Join(dir, "ide", "lib"), "com/intellij/openapi/Action")
	writeClass(t, filepath.Join(dir, "ide", "java"), "com/intellij/psi/PsiClass")
	writeClass(t, filepath.Join(dir, "acme", "classes"), "com/acme/Main")

	writeFile(t, filepath.Join(dir, "ide", "host.yaml"), `
version: "233.11799"
classes: [lib]
plugins:
  - id: com.intellij.java
    modules: [com.intellij.modules.java]
    classes: [java]
`)
	writeFile(t, filepath.Join(dir, "acme", "plugin.yaml"), `
id: com.acme
version: "1.0"
depends: [com.intellij.java]
classes: [classes]
`)
	writeFile(t, filepath.Join(dir, "workspace.yaml"), `
host: ide/host.yaml
plugins: [acme/plugin.yaml]
repository: repo
`)

	fs := afero.NewOsFs()
	ws, err := ReadWorkspace(fs, filepath.Join(dir, "workspace.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "repo"), ws.RepositoryPath())
	assert.Empty(t, ws.JDKPath())

	owner := &resolver.Closer{}
	defer owner.Close()

	hm, err := ReadHost(fs, ws.HostPath())
	require.NoError(t, err)
	host, err := hm.Open(owner)
	require.NoError(t, err)

	assert.Equal(t, "233.11799", host.Version())
	assert.True(t, host.Classes().Contains("com/intellij/openapi/Action"))
	java, ok := host.FindPluginByModule("com.intellij.modules.java")
	require.True(t, ok)
	assert.True(t, java.Classes().Contains("com/intellij/psi/PsiClass"))

	pm, err := ReadPlugin(fs, ws.PluginPaths()[0])
	require.NoError(t, err)
	p, err := pm.Open(owner)
	require.NoError(t, err)
	assert.Equal(t, "com.acme:1.0", p.String())
	assert.Equal(t, []plugin.Dependency{{ID: "com.intellij.java"}}, p.Dependencies())
	assert.True(t, p.Classes().Contains("com/acme/Main"))
}

func TestOpenMissingClassRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugin.yaml"), "id: broken\nclasses: [missing.jar]\n")

	m, err := ReadPlugin(afero.NewOsFs(), filepath.Join(dir, "plugin.yaml"))
	require.NoError(t, err)
	_, err = m.Open(&resolver.Closer{})
	var openErr *resolver.OpenError
	assert.ErrorAs(t, err, &openErr)
}

func TestRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClass(t, filepath.Join(dir, "org.jetbrains.kotlin", "classes"), "kotlin/Unit")
	writeFile(t, filepath.Join(dir, "org.jetbrains.kotlin", ManifestName), `
id: org.jetbrains.kotlin
version: "1.9"
classes: [classes]
compatibility: {since: "231", until: "233.*"}
`)
	writeFile(t, filepath.Join(dir, "mislabelled", ManifestName), "id: other\n")

	repo := NewRepository(afero.NewOsFs(), dir, nil)
	defer repo.Close()
	ctx := context.Background()

	p, err := repo.Fetch(ctx, "233.11799", "org.jetbrains.kotlin")
	require.NoError(t, err)
	assert.True(t, p.Classes().Contains("kotlin/Unit"))

	again, err := repo.Fetch(ctx, "232.1", "org.jetbrains.kotlin")
	require.NoError(t, err)
	assert.Same(t, p, again)

	_, err = repo.Fetch(ctx, "241.1", "org.jetbrains.kotlin")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	_, err = repo.Fetch(ctx, "233.1", "com.unknown")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	_, err = repo.Fetch(ctx, "233.1", "../escape")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	_, err = repo.Fetch(ctx, "233.1", "mislabelled")
	assert.ErrorContains(t, err, "declares plugin other")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.Fetch(cancelled, "233.1", "org.jetbrains.kotlin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareBuilds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"233.11799", "233.11799", 0},
		{"233", "233.1", -1},
		{"241.1", "233.*", 1},
		{"233.5", "233.*", 0},
		{"IU-233", "IU-233", 0},
		{"232.99", "233.1", -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompareBuilds(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
	assert.True(t, Compatibility{Since: "231"}.Supports("233.1"))
	assert.False(t, Compatibility{Until: "232.*"}.Supports("233.1"))
}
