package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/plugins"
	"github.com/conneroisu/appgen/internal/templates"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		RootDir:       root,
		SrcDir:        root,
		BuildDir:      ".appgen",
		Dirs:          config.DirsConfig{Plugins: "plugins", Layouts: "layouts", Middleware: "middleware"},
		Extensions:    []string{".js", ".ts"},
		Ignore:        []string{"**/*.test.*"},
		Experimental:  map[string]bool{},
		RuntimeConfig: map[string]interface{}{},
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func readOutput(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	data, err := os.ReadFile(cfg.BuildPath(name))
	require.NoError(t, err)
	return string(data)
}

func TestGenerateWritesAllTemplates(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"plugins/router.ts":        "",
		"plugins/auth.client.ts":   "",
		"layouts/default.vue":      "",
		"middleware/auth.ts":       "",
		"middleware/log.global.ts": "",
	})
	cfg := testConfig(root)

	g := NewGenerator(cfg, nil)
	result, err := g.Generate(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Written, len(templates.Default()))
	assert.Empty(t, result.Unchanged)
	assert.Empty(t, result.Failed)
	assert.True(t, result.Changed())

	for _, tmpl := range templates.Default() {
		out := readOutput(t, cfg, tmpl.Filename)
		assert.True(t, strings.HasPrefix(out, Header), tmpl.Filename)
	}
	assert.Contains(t, readOutput(t, cfg, "plugins.client.mjs"), "auth.client.ts")
	assert.NotContains(t, readOutput(t, cfg, "plugins.server.mjs"), "auth.client.ts")

	manifest, err := LoadManifest(cfg.BuildPath(""))
	require.NoError(t, err)
	assert.Len(t, manifest.Files, len(templates.Default()))
}

func TestGenerateSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"plugins/router.ts": ""})
	cfg := testConfig(root)
	g := NewGenerator(cfg, nil)

	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	result, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Written)
	assert.Len(t, result.Unchanged, len(templates.Default()))
	assert.False(t, result.Changed())

	writeFiles(t, root, map[string]string{"plugins/session.ts": ""})
	result, err = g.Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, result.Written, "plugins.client.mjs")
	assert.Contains(t, result.Written, "plugins.server.mjs")
	assert.Contains(t, result.Written, "types/plugins.d.ts")
	assert.Contains(t, result.Unchanged, "layouts.mjs")

	snapshot := g.Metrics().Snapshot()
	assert.Equal(t, int64(3), snapshot.TotalRuns)
	assert.Equal(t, int64(3), snapshot.SuccessfulRuns)
}

func TestGenerateRewritesDeletedOutput(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	g := NewGenerator(cfg, nil)

	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(cfg.BuildPath("layouts.mjs")))

	result, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"layouts.mjs"}, result.Written)
}

func TestGenerateCycleWritesNothing(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"plugins/a.ts":        "",
		"plugins/a.meta.yaml": "depends_on: [b]\n",
		"plugins/b.ts":        "",
		"plugins/b.meta.yaml": "depends_on: [a]\n",
	})
	cfg := testConfig(root)

	g := NewGenerator(cfg, nil)
	result, err := g.Generate(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, plugins.ErrCircularDependency))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateRender))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCircularDependency))
	assert.False(t, apperrors.IsRecoverable(err))
	assert.ElementsMatch(t, []string{"plugins.client.mjs", "plugins.server.mjs"}, result.Failed)
	assert.Empty(t, result.Written)

	_, statErr := os.Stat(cfg.BuildPath("layouts.mjs"))
	assert.True(t, os.IsNotExist(statErr))

	snapshot := g.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.FailedRuns)
	assert.Equal(t, 0.0, g.Metrics().SuccessRate())
}

func TestGenerateRemovesStaleFiles(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	static := func(name, body string) templates.Template {
		return templates.Template{
			Filename: name,
			Render: func(context.Context, *templates.Context) (string, error) {
				return body, nil
			},
		}
	}

	g := NewGenerator(cfg, nil).WithTemplates([]templates.Template{
		static("one.mjs", "export default 1\n"),
		static("nested/two.mjs", "export default 2\n"),
	})
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, cfg.BuildPath("nested/two.mjs"))

	g.WithTemplates([]templates.Template{static("one.mjs", "export default 1\n")})
	result, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/two.mjs"}, result.Removed)
	assert.Equal(t, []string{"one.mjs"}, result.Unchanged)
	assert.NoFileExists(t, cfg.BuildPath("nested/two.mjs"))
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGenerator(testConfig(t.TempDir()), nil)
	_, err := g.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManifestCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("files: [unclosed"), 0o644))

	_, err := LoadManifest(dir)
	require.Error(t, err)

	m, err := LoadManifest(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m.Files)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest("v1.0.0")
	m.Files["b.mjs"] = "00000002"
	m.Files["a.mjs"] = "00000001"
	require.NoError(t, m.Save(dir))

	loaded, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", loaded.Version)
	assert.Equal(t, []string{"a.mjs", "b.mjs"}, loaded.Filenames())
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, 0.0, m.SuccessRate())

	m.RecordRun(&Result{Written: []string{"a"}, Unchanged: []string{"b", "c"}}, 10*time.Millisecond, nil)
	m.RecordRun(nil, 30*time.Millisecond, errors.New("boom"))

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.TotalRuns)
	assert.Equal(t, int64(1), s.FilesWritten)
	assert.Equal(t, int64(2), s.FilesUnchanged)
	assert.Equal(t, 20*time.Millisecond, s.AverageDuration)
	assert.Equal(t, 50.0, m.SuccessRate())

	m.Reset()
	assert.Equal(t, int64(0), m.Snapshot().TotalRuns)
}
