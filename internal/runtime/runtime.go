// Package runtime embeds a Risor VM that post-processes file reports.
//
// A hook script runs once per analyzed file with these globals:
//
//	path     string         absolute path of the file
//	imports  list of string the report's imports
//	calls    list of string the report's calls
//	log      log.Info / log.Warn / log.Error(msg)
//
// The value of the script's last expression must be a map with "imports"
// and "calls" lists of strings. It replaces the report.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/callmap/internal/analysis"
)

// ErrInvalidResult is returned when a hook script does not evaluate to a
// map of string lists.
var ErrInvalidResult = errors.New("hook result must be a map with imports and calls lists of strings")

// Runtime runs hook scripts. It holds no VM state between runs and is safe
// for concurrent use.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Risor import statements resolve against the same FS.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the script's log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime that loads scripts relative to scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunHook loads the script at scriptPath and applies it to report.
func (r *Runtime) RunHook(ctx context.Context, scriptPath, path string, report analysis.FileReport) (analysis.FileReport, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return report, err
	}
	return r.eval(ctx, src, scriptPath, path, report)
}

// RunHookSource applies Risor source code directly. Useful when the caller
// has already loaded the script, and for tests.
func (r *Runtime) RunHookSource(ctx context.Context, source, path string, report analysis.FileReport) (analysis.FileReport, error) {
	return r.eval(ctx, source, "<inline>", path, report)
}

func (r *Runtime) eval(ctx context.Context, source, label, path string, report analysis.FileReport) (analysis.FileReport, error) {
	globals := r.buildGlobals(path, report)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return report, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	out, err := reportFromObject(result)
	if err != nil {
		return report, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return out, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script
// source. Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// Paths are relative within the FS ("/hooks/x.risor" -> "hooks/x.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the globals exposed to hook scripts.
func (r *Runtime) buildGlobals(path string, report analysis.FileReport) map[string]any {
	return map[string]any{
		"path":    path,
		"imports": stringList(report.Imports),
		"calls":   stringList(report.Calls),
		"log":     mustProxy(&logObject{logger: r.logger, path: path}),
	}
}

func stringList(xs []string) *object.List {
	items := make([]object.Object, len(xs))
	for i, x := range xs {
		items[i] = object.NewString(x)
	}
	return object.NewList(items)
}

// reportFromObject converts a script result back into a FileReport.
func reportFromObject(obj object.Object) (analysis.FileReport, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return analysis.FileReport{}, fmt.Errorf("%w: got %s", ErrInvalidResult, typeName(obj))
	}
	fields := m.Value()
	imports, err := stringsFromObject(fields["imports"], "imports")
	if err != nil {
		return analysis.FileReport{}, err
	}
	calls, err := stringsFromObject(fields["calls"], "calls")
	if err != nil {
		return analysis.FileReport{}, err
	}
	return analysis.FileReport{Imports: imports, Calls: calls}, nil
}

func stringsFromObject(obj object.Object, key string) ([]string, error) {
	list, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidResult, key, typeName(obj))
	}
	out := make([]string, 0, len(list.Value()))
	for i, item := range list.Value() {
		s, ok := item.(*object.String)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is %s", ErrInvalidResult, key, i, typeName(item))
		}
		out = append(out, s.Value())
	}
	return out, nil
}

func typeName(obj object.Object) string {
	if obj == nil {
		return "nothing"
	}
	return string(obj.Type())
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
	path   string
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, slog.String("source", "hook"), slog.String("path", l.path))
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, slog.String("source", "hook"), slog.String("path", l.path))
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, slog.String("source", "hook"), slog.String("path", l.path))
}
