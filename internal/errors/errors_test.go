package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	err := NewBuildError(ErrCodeTemplateRender, "render failed", fmt.Errorf("boom")).
		WithComponent("plugins.client.mjs").
		WithFile("plugins/a.ts")

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_TEMPLATE_RENDER]")
	assert.Contains(t, msg, "component:plugins.client.mjs")
	assert.Contains(t, msg, "plugins/a.ts")
	assert.Contains(t, msg, "render failed: boom")
}

func TestAppErrorIs(t *testing.T) {
	a := NewValidationError(ErrCodeDuplicatePlugin, "duplicate a")
	b := NewValidationError(ErrCodeDuplicatePlugin, "duplicate b")
	c := NewValidationError(ErrCodeInvalidPath, "bad path")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", a), b))
}

func TestWithContext(t *testing.T) {
	err := NewConfigError(ErrCodeConfigInvalid, "bad").
		WithContext("field", "dirs.plugins").
		WithContext("value", "../x")

	require.NotNil(t, err.Context)
	assert.Equal(t, "dirs.plugins", err.Context["field"])
	assert.Equal(t, "../x", err.Context["value"])
}

func TestRecoverability(t *testing.T) {
	assert.True(t, IsRecoverable(NewValidationError("X", "x")))
	assert.True(t, IsRecoverable(NewBuildError("X", "x", nil)))
	assert.False(t, IsRecoverable(NewIOError("X", "x", nil)))
	assert.False(t, IsRecoverable(NewConfigError("X", "x")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
}

func TestIsBuildError(t *testing.T) {
	assert.True(t, IsBuildError(NewBuildError(ErrCodeCircularDependency, "cycle", nil)))
	assert.False(t, IsBuildError(NewIOError(ErrCodeWriteFailed, "write", nil)))
	assert.False(t, IsBuildError(nil))
}

func TestHasCode(t *testing.T) {
	inner := NewBuildError(ErrCodeCircularDependency, "cycle", nil)
	outer := WrapBuild(inner, ErrCodeTemplateRender, "render failed", "plugins.client.mjs")

	assert.True(t, HasCode(outer, ErrCodeTemplateRender))
	assert.True(t, HasCode(outer, ErrCodeCircularDependency))
	assert.False(t, HasCode(outer, ErrCodeDuplicatePlugin))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrCodeTemplateRender))
}

func TestWrap(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "x"))
	})

	t.Run("plain error", func(t *testing.T) {
		cause := fmt.Errorf("disk full")
		err := WrapIO(cause, ErrCodeWriteFailed, "write failed")
		require.NotNil(t, err)
		assert.Equal(t, ErrorTypeIO, err.Type)
		assert.False(t, err.Recoverable)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("keeps app error context", func(t *testing.T) {
		inner := NewValidationError("X", "x").WithComponent("scanner").WithFile("a.ts")
		err := WrapConfig(inner, "config rejected")
		assert.Equal(t, "scanner", err.Component)
		assert.Equal(t, "a.ts", err.FilePath)
		assert.Equal(t, ErrCodeConfigInvalid, err.Code)
		assert.False(t, err.Recoverable)
	})

	t.Run("context is not shared with the cause", func(t *testing.T) {
		inner := NewValidationError("X", "x").WithContext("plugin", "auth")
		outer := Wrap(inner, ErrorTypeBuild, ErrCodeTemplateRender, "render failed").
			WithContext("file", "plugins.client.mjs")

		assert.Equal(t, "auth", outer.Context["plugin"])
		assert.Equal(t, "plugins.client.mjs", outer.Context["file"])
		assert.NotContains(t, inner.Context, "file")
	})
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.False(t, vec.HasErrors())
	assert.Nil(t, vec.ToAppError())
	assert.Equal(t, "no validation errors", vec.Error())

	vec.AddField("dirs.plugins", "../up", "path contains traversal", "use a path inside the project")
	assert.Contains(t, vec.Error(), "dirs.plugins")

	vec.AddField("plugins[0].mode", "both", "unknown mode")
	assert.Equal(t, "validation failed with 2 errors", vec.Error())

	ae := vec.ToAppError()
	require.NotNil(t, ae)
	assert.Equal(t, ErrorTypeConfig, ae.Type)
	assert.Equal(t, ErrCodeConfigInvalid, ae.Code)
	assert.Contains(t, ae.Context, "dirs.plugins")
	assert.Contains(t, ae.Context, "plugins[0].mode")
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewValidationError("X", "x"))
	h.Handle(ctx, NewBuildError("X", "x", nil))
	h.Handle(ctx, NewIOError("X", "x", nil))
	h.Handle(ctx, fmt.Errorf("plain"))

	assert.Equal(t, []string{"Validation error occurred"}, logger.warns)
	assert.Equal(t, []string{
		"Build error occurred",
		"Error occurred",
		"Unhandled error occurred",
	}, logger.errors)
}
