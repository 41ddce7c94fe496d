package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/appgen/internal/build"
	"github.com/conneroisu/appgen/internal/config"
	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/logging"
	"github.com/conneroisu/appgen/internal/plugins"
)

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "created", EventTypeCreated.String())
	assert.Equal(t, "modified", EventTypeModified.String())
	assert.Equal(t, "deleted", EventTypeDeleted.String())
	assert.Equal(t, "renamed", EventTypeRenamed.String())
	assert.Equal(t, "unknown", EventType(42).String())
}

func TestFilters(t *testing.T) {
	root := "/project"
	ignore := IgnoreFilter(root, []string{"**/*.test.*", "**/node_modules/**"})
	assert.True(t, ignore("/project/plugins/a.ts"))
	assert.False(t, ignore("/project/plugins/a.test.ts"))
	assert.False(t, ignore("/project/plugins/node_modules/x/index.js"))

	ext := ExtensionFilter(".ts", ".VUE")
	assert.True(t, ext("a.ts"))
	assert.True(t, ext("layouts/Default.vue"))
	assert.False(t, ext("README.md"))

	assert.True(t, NoEditorFilter("plugins/a.ts"))
	assert.False(t, NoEditorFilter("plugins/a.ts~"))
	assert.False(t, NoEditorFilter("plugins/.a.ts.swp"))
	assert.False(t, NoEditorFilter("plugins/.#a.ts"))

	either := AnyFilter(ext, func(p string) bool { return p == "x" })
	assert.True(t, either("x"))
	assert.True(t, either("a.ts"))
	assert.False(t, either("y"))
}

func TestValidatePath(t *testing.T) {
	root := t.TempDir()
	fw, err := NewFileWatcher(root, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	_, err = fw.validatePath(filepath.Join(root, "plugins"))
	assert.NoError(t, err)

	_, err = fw.validatePath(filepath.Join(root, "..", "elsewhere"))
	assert.Error(t, err)

	assert.Error(t, fw.AddPath(filepath.Dir(root)))
}

func TestAddRecursive(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"plugins/a/b", "plugins/node_modules/x", "plugins/.cache"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	fw, err := NewFileWatcher(root, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(filepath.Join(root, "plugins")))
	require.NoError(t, fw.AddRecursive(filepath.Join(root, "missing")))

	assert.Equal(t, []string{
		filepath.Join(root, "plugins"),
		filepath.Join(root, "plugins", "a"),
		filepath.Join(root, "plugins", "a", "b"),
	}, fw.WatchedPaths())
}

func TestDebouncerFoldsBurst(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.start(ctx)

	d.add(ChangeEvent{Path: "b.ts", Type: EventTypeCreated})
	d.add(ChangeEvent{Path: "a.ts", Type: EventTypeCreated})
	d.add(ChangeEvent{Path: "b.ts", Type: EventTypeModified})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "a.ts", batch[0].Path)
		assert.Equal(t, "b.ts", batch[1].Path)
		assert.Equal(t, EventTypeModified, batch[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
	}
}

type fakeGenerator struct {
	mu      sync.Mutex
	runs    int
	cfgs    []*config.Config
	err     error
	trigger chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{trigger: make(chan struct{}, 10)}
}

func (f *fakeGenerator) Generate(context.Context) (*build.Result, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	select {
	case f.trigger <- struct{}{}:
	default:
	}
	if f.err != nil {
		return nil, f.err
	}
	return &build.Result{Written: []string{"plugins.client.mjs"}}, nil
}

func (f *fakeGenerator) SetConfig(cfg *config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
}

func (f *fakeGenerator) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.trigger:
	case <-time.After(5 * time.Second):
		t.Fatal("generator not run")
	}
}

func projectConfig(root string) *config.Config {
	return &config.Config{
		RootDir:    root,
		SrcDir:     root,
		BuildDir:   ".appgen",
		Dirs:       config.DirsConfig{Plugins: "plugins", Layouts: "layouts", Middleware: "middleware"},
		Extensions: []string{".ts"},
		Ignore:     []string{"**/*.test.*"},
		ConfigFile: filepath.Join(root, ".appgen.yml"),
		Watch:      config.WatchConfig{Debounce: 20 * time.Millisecond},
	}
}

func TestProjectWatcherRegenerates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plugins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".appgen.yml"), []byte("log_level: info\n"), 0o644))

	gen := newFakeGenerator()
	reloaded := &config.Config{LogLevel: "debug"}
	pw, err := NewProjectWatcher(projectConfig(root), gen, func() (*config.Config, error) {
		return reloaded, nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pw.Run(ctx) }()

	gen.wait(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "plugins", "router.ts"), []byte("x"), 0o644))
	gen.wait(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".appgen.yml"), []byte("log_level: debug\n"), 0o644))
	require.Eventually(t, func() bool {
		gen.mu.Lock()
		defer gen.mu.Unlock()
		return len(gen.cfgs) > 0
	}, 5*time.Second, 10*time.Millisecond)

	gen.mu.Lock()
	assert.Same(t, reloaded, gen.cfgs[0])
	assert.Equal(t, filepath.Join(root, ".appgen.yml"), gen.cfgs[0].ConfigFile)
	gen.mu.Unlock()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "plugins", "analytics"), 0o755))
	require.Eventually(t, func() bool {
		for _, p := range pw.fw.WatchedPaths() {
			if p == filepath.Join(root, "plugins", "analytics") {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestProjectWatcherFiltersUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plugins"), 0o755))

	pw, err := NewProjectWatcher(projectConfig(root), newFakeGenerator(), nil, nil)
	require.NoError(t, err)
	defer pw.fw.Stop()

	cfgFile := filepath.Join(root, ".appgen.yml")
	accept := func(path string) bool {
		for _, f := range pw.fw.filters {
			if !f(path) {
				return false
			}
		}
		return true
	}

	assert.True(t, accept(filepath.Join(root, "plugins", "a.ts")))
	assert.True(t, accept(filepath.Join(root, "plugins", "a.meta.yaml")))
	assert.True(t, accept(cfgFile))
	assert.False(t, accept(filepath.Join(root, "plugins", "a.test.ts")))
	assert.False(t, accept(filepath.Join(root, "plugins", "notes.md")))
	assert.False(t, accept(filepath.Join(root, "package.json")))
	assert.False(t, accept(filepath.Join(root, ".appgen", "plugins.client.mjs")))
}

// recordingLogger keeps the level and message of every Warn and Error call.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) Debug(context.Context, string, ...interface{}) {}
func (l *recordingLogger) Info(context.Context, string, ...interface{})  {}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.record("WARN " + msg)
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.record("ERROR " + msg)
}

func (l *recordingLogger) With(...interface{}) logging.Logger  { return l }
func (l *recordingLogger) WithComponent(string) logging.Logger { return l }

func (l *recordingLogger) record(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func TestProjectWatcherLogsGenerationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "recoverable error is a warning",
			err:  apperrors.NewValidationError(apperrors.ErrCodeConfigInvalid, "bad plugin meta"),
			want: "WARN Generation failed, waiting for the next change",
		},
		{
			name: "cycle is an error",
			err:  (&plugins.CycleError{Path: []string{"a", "b", "a"}}).ToAppError(),
			want: "ERROR Generation failed",
		},
		{
			name: "plain error is an error",
			err:  errors.New("disk full"),
			want: "ERROR Generation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			gen := newFakeGenerator()
			gen.err = tt.err
			logger := &recordingLogger{}

			pw, err := NewProjectWatcher(projectConfig(root), gen, nil, logger)
			require.NoError(t, err)
			defer pw.fw.Stop()

			require.NoError(t, pw.handle(context.Background(), []ChangeEvent{{Path: filepath.Join(root, "plugins", "a.ts")}}))
			gen.wait(t)

			logger.mu.Lock()
			defer logger.mu.Unlock()
			assert.Contains(t, logger.entries, tt.want)
		})
	}
}

func TestProjectWatcherSeesSourceDirCreatedLater(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(root)
	cfg.ConfigFile = ""

	gen := newFakeGenerator()
	pw, err := NewProjectWatcher(cfg, gen, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pw.Run(ctx) }()

	gen.wait(t)

	pluginDir := filepath.Join(root, "plugins")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "a.ts"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		gen.mu.Lock()
		defer gen.mu.Unlock()
		return gen.runs >= 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, pw.fw.WatchedPaths(), pluginDir)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
