package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/callmap/internal/analysis"
)

var sampleReport = analysis.FileReport{
	Imports: []string{"os", "json"},
	Calls:   []string{"os", "json", "helper"},
}

// --- Risor integration tests (via RunHookSource) ---

func TestRunHookSource_Identity(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	got, err := rt.RunHookSource(context.Background(), `
result := {"imports": imports, "calls": calls}
result
`, "/src/a.py", sampleReport)
	require.NoError(t, err)
	assert.Equal(t, sampleReport, got)
}

func TestRunHookSource_FilterCalls(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	script := `
kept := []
for i := 0; i < len(calls); i++ {
    if calls[i] != "helper" {
        kept.append(calls[i])
    }
}
result := {"imports": imports, "calls": kept}
result
`
	got, err := rt.RunHookSource(context.Background(), script, "/src/a.py", sampleReport)
	require.NoError(t, err)
	assert.Equal(t, []string{"os", "json"}, got.Imports)
	assert.Equal(t, []string{"os", "json"}, got.Calls)
}

func TestRunHookSource_SeesPath(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	script := `
assert(path == "/src/a.py", 'unexpected path {path}')
result := {"imports": [path], "calls": []}
result
`
	got, err := rt.RunHookSource(context.Background(), script, "/src/a.py", sampleReport)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.py"}, got.Imports)
	assert.Equal(t, []string{}, got.Calls)
}

func TestRunHookSource_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	in := sampleReport.Clone()

	_, err := rt.RunHookSource(context.Background(), `
calls.append("extra")
result := {"imports": imports, "calls": calls}
result
`, "/a.py", in)
	require.NoError(t, err)
	assert.Equal(t, sampleReport, in)
}

func TestRunHookSource_InvalidResult(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	tests := []struct {
		name   string
		script string
	}{
		{"not a map", `42`},
		{"missing calls", `result := {"imports": imports}
result`},
		{"non-string entry", `result := {"imports": imports, "calls": [1, 2]}
result`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := rt.RunHookSource(context.Background(), tt.script, "/a.py", sampleReport)
			require.ErrorIs(t, err, ErrInvalidResult)
			assert.Equal(t, sampleReport, got, "the input report is returned on failure")
		})
	}
}

func TestRunHookSource_ScriptError(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	_, err := rt.RunHookSource(context.Background(), `assert(false, "boom")`, "/a.py", sampleReport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<inline>")
}

func TestRunHookSource_Log(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	_, err := rt.RunHookSource(context.Background(), `
log.Info("visited")
result := {"imports": imports, "calls": calls}
result
`, "/a.py", sampleReport)
	require.NoError(t, err)
}

// --- script loading tests ---

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"hooks/filter.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("hooks/filter.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path is resolved within the FS.
	got, err = rt.LoadScript("/hooks/filter.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFS_NotFound(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hook.risor"), []byte(content), 0o644))

	rt := NewRuntime(dir)
	got, err := rt.LoadScript("hook.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute paths ignore scriptsDir.
	got, err = NewRuntime("/elsewhere").LoadScript(filepath.Join(dir, "hook.risor"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRunHook_FromFS(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"drop_imports.risor": &fstest.MapFile{Data: []byte(`result := {"imports": [], "calls": calls}
result`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.RunHook(context.Background(), "drop_imports.risor", "/a.py", sampleReport)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Imports)
	assert.Equal(t, sampleReport.Calls, got.Calls)
}

func TestRunHook_MissingScript(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(t.TempDir())

	got, err := rt.RunHook(context.Background(), "missing.risor", "/a.py", sampleReport)
	require.Error(t, err)
	assert.Equal(t, sampleReport, got)
}
