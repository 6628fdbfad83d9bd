package callmap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jward/callmap/internal/analysis"
	"github.com/jward/callmap/internal/metrics"
	"github.com/jward/callmap/internal/runtime"
	"github.com/jward/callmap/internal/store"
	"github.com/jward/callmap/internal/syntax"
)

// AnalyzerVersion identifies the attribution rules. Cached reports written
// under a different version are discarded when the database is opened.
const AnalyzerVersion = "1"

var (
	// ErrInvalidPath is returned for a path that is neither a regular file
	// nor a directory.
	ErrInvalidPath = errors.New("not a directory or file")

	// ErrUsage reports a command line without exactly one path.
	ErrUsage = errors.New("usage: callmap <path>")
)

var tracer = otel.Tracer("github.com/jward/callmap")

// Engine analyzes files. It is safe for concurrent use: every traversal owns
// its binding table.
type Engine struct {
	logger      *slog.Logger
	workers     int
	maxFileSize int64
	metrics     *metrics.Metrics

	dbPath string
	store  *store.Store

	scriptPath string
	scriptsFS  fs.FS
	script     string // loaded hook source; empty means no hook
	runtime    *runtime.Runtime
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of files analyzed concurrently. Values below
// one select one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the logger for diagnostics. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDatabase caches reports in a SQLite database at dbPath. The Engine
// owns the database and closes it in Close.
func WithDatabase(dbPath string) Option {
	return func(e *Engine) {
		e.dbPath = dbPath
	}
}

// WithScript runs the Risor hook script at path on every report. The path
// is resolved on disk, or within the filesystem given by WithScriptsFS.
func WithScript(path string) Option {
	return func(e *Engine) {
		e.scriptPath = path
	}
}

// WithScriptsFS loads the hook script from fsys instead of from disk. This
// enables embedding hooks via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxFileSize skips files larger than n bytes; they get an empty
// report. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) {
		e.maxFileSize = n
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = goruntime.NumCPU()
	}

	if e.scriptPath != "" {
		if err := e.loadScript(); err != nil {
			return nil, err
		}
	}

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("callmap: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("callmap: migrate: %w", err)
		}
		if err := checkAnalyzerVersion(s); err != nil {
			s.Close()
			return nil, fmt.Errorf("callmap: %w", err)
		}
		e.store = s
	}
	return e, nil
}

func (e *Engine) loadScript() error {
	var rtOpts []runtime.RuntimeOption
	rtOpts = append(rtOpts, runtime.WithRuntimeLogger(e.logger))
	scriptsDir := ""
	name := e.scriptPath
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	} else {
		// Risor imports inside the hook resolve next to the hook itself.
		abs, err := filepath.Abs(e.scriptPath)
		if err != nil {
			return fmt.Errorf("callmap: resolve script path: %w", err)
		}
		scriptsDir, name = filepath.Dir(abs), filepath.Base(abs)
	}
	e.runtime = runtime.NewRuntime(scriptsDir, rtOpts...)

	src, err := e.runtime.LoadScript(name)
	if err != nil {
		return fmt.Errorf("callmap: load script: %w", err)
	}
	e.script = src
	return nil
}

// checkAnalyzerVersion purges cached reports written by other attribution
// rules.
func checkAnalyzerVersion(s *store.Store) error {
	stored, err := s.GetMetadata("analyzer_version")
	if err != nil {
		return err
	}
	if stored == AnalyzerVersion {
		return nil
	}
	if err := s.Purge(); err != nil {
		return err
	}
	return s.SetMetadata("analyzer_version", AnalyzerVersion)
}

// Close releases the Engine's database, if any.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the report cache, or nil when WithDatabase was not used.
func (e *Engine) Store() *store.Store {
	return e.store
}

// AnalyzeSource analyzes source text. It never fails: malformed source
// yields an empty report, and so does a ctx that is done before parsing
// completes.
func (e *Engine) AnalyzeSource(ctx context.Context, src []byte) FileReport {
	report, _, _ := e.analyzeSource(ctx, "<source>", src)
	return report
}

// analyzeSource returns the report and the metrics outcome. The error is
// non-nil only when ctx interrupted parsing; the report must then not be
// cached.
func (e *Engine) analyzeSource(ctx context.Context, path string, src []byte) (FileReport, string, error) {
	mod, err := syntax.Parse(ctx, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return EmptyReport(), metrics.OutcomeCancelled, err
		}
		e.logger.Debug("parse failed, using empty report",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return EmptyReport(), metrics.OutcomeParseError, nil
	}

	table, calls := analysis.Walk(mod)
	resolved := 0
	for _, c := range calls {
		if c.Resolved {
			resolved++
		}
	}
	e.metrics.CallsDone(resolved, len(calls)-resolved)
	return analysis.BuildReport(table, calls), metrics.OutcomeOK, nil
}

// AnalyzeFile analyzes one file. A file that cannot be read yields an empty
// report together with the read error. A done ctx yields an empty report and
// an error wrapping ctx.Err(); nothing is cached for it. Every other failure
// (parse errors, oversized files, hook errors) is absorbed into the returned
// report.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (FileReport, error) {
	var cache store.ReportCache
	if e.store != nil {
		cache = e.store
	}
	return e.analyzeFile(ctx, path, cache)
}

func (e *Engine) analyzeFile(ctx context.Context, path string, cache store.ReportCache) (FileReport, error) {
	if err := ctx.Err(); err != nil {
		return EmptyReport(), err
	}

	ctx, span := tracer.Start(ctx, "callmap.AnalyzeFile")
	defer span.End()
	span.SetAttributes(attribute.String("file", path))

	if e.maxFileSize > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > e.maxFileSize {
			e.logger.Warn("file exceeds size limit, using empty report",
				slog.String("path", path),
				slog.Int64("size", info.Size()),
				slog.Int64("limit", e.maxFileSize),
			)
			e.metrics.FileDone(metrics.OutcomeTooLarge)
			return EmptyReport(), nil
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("cannot read file, using empty report",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		e.metrics.FileDone(metrics.OutcomeReadError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return EmptyReport(), fmt.Errorf("callmap: read %s: %w", path, err)
	}

	report, outcome, err := e.cachedOrAnalyze(ctx, path, src, cache)
	e.metrics.FileDone(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis interrupted")
		return EmptyReport(), fmt.Errorf("callmap: analyze %s: %w", path, err)
	}
	report = e.applyHook(ctx, path, report)

	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("imports", len(report.Imports)),
		attribute.Int("calls", len(report.Calls)),
	)
	return report, nil
}

func (e *Engine) cachedOrAnalyze(ctx context.Context, path string, src []byte, cache store.ReportCache) (FileReport, string, error) {
	if cache == nil {
		return e.analyzeSource(ctx, path, src)
	}

	hash := store.ContentHash(src)
	cached, err := cache.Lookup(path, hash)
	if err != nil {
		e.logger.Warn("cache lookup failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		return FileReport{Imports: cached.Imports, Calls: cached.Calls}, metrics.OutcomeCached, nil
	}

	report, outcome, err := e.analyzeSource(ctx, path, src)
	if err != nil {
		return report, outcome, err
	}
	err = cache.Save(&store.Report{
		Path:       path,
		Hash:       hash,
		Imports:    report.Imports,
		Calls:      report.Calls,
		AnalyzedAt: time.Now(),
	})
	if err != nil {
		e.logger.Warn("cache save failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	return report, outcome, nil
}

// applyHook runs the hook script, keeping the original report when it
// fails.
func (e *Engine) applyHook(ctx context.Context, path string, report FileReport) FileReport {
	if e.script == "" {
		return report
	}
	out, err := e.runtime.RunHookSource(ctx, e.script, path, report)
	if err != nil {
		e.logger.Warn("hook script failed, keeping report",
			slog.String("path", path),
			slog.String("script", e.scriptPath),
			slog.String("error", err.Error()),
		)
		e.metrics.HookFailed()
		return report
	}
	return out
}

// ListSourceFiles expands path into the files to analyze. A regular file is
// returned as is, whatever its extension. A directory yields its direct
// children that are regular *.py files, sorted; subdirectories are not
// descended into. Anything else returns ErrInvalidPath.
func ListSourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidPath)
	}
	if info.Mode().IsRegular() {
		return []string{path}, nil
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidPath)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	var files []string
	for _, entry := range entries {
		if !syntax.IsSourceFile(entry.Name()) {
			continue
		}
		full := filepath.Join(path, entry.Name())
		// Stat follows symlinks, so a link to a regular file counts.
		st, err := os.Stat(full)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		files = append(files, full)
	}
	sort.Strings(files)
	return files, nil
}

// AnalyzePaths analyzes every file named by paths, expanding directories
// with ListSourceFiles. Paths are made absolute and become the keys of the
// result. An invalid path is logged and skipped. Only context cancellation
// makes AnalyzePaths fail.
func (e *Engine) AnalyzePaths(ctx context.Context, paths []string) (CorpusReport, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			e.logger.Warn("cannot resolve path",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			continue
		}
		listed, err := ListSourceFiles(abs)
		if err != nil {
			e.logger.Warn(diagnostic(abs, err), slog.String("path", abs))
			continue
		}
		for _, f := range listed {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return e.AnalyzeFiles(ctx, files)
}

// diagnostic renders the message for a skipped path.
func diagnostic(path string, err error) string {
	if errors.Is(err, ErrInvalidPath) {
		return fmt.Sprintf("%s is %s.", path, ErrInvalidPath)
	}
	return strings.TrimSpace(err.Error())
}
