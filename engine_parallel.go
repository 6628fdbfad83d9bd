package callmap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jward/callmap/internal/store"
)

// AnalyzeFiles analyzes files with a bounded worker pool:
//
//	Workers (parallel): read, parse, walk, hook. Fresh reports are buffered
//	                    in a store.Batch when a database is configured.
//	Collector (serial): build the CorpusReport, then commit the batch in a
//	                    single transaction.
//
// Per-file failures yield empty reports. Only context cancellation returns
// an error, in which case no report is returned and nothing is cached.
func (e *Engine) AnalyzeFiles(ctx context.Context, files []string) (CorpusReport, error) {
	corpus := make(CorpusReport, len(files))
	if len(files) == 0 {
		return corpus, nil
	}

	var (
		batch *store.Batch
		cache store.ReportCache
	)
	if e.store != nil {
		batch = store.NewBatch(e.store)
		cache = batch
	}

	type result struct {
		path   string
		report FileReport
	}
	resultCh := make(chan result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.workers, len(files)))
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := e.analyzeFile(gctx, path, cache)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			// Read errors were logged; the empty report stands.
			resultCh <- result{path: path, report: report}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		// The batch is dropped with the reports: nothing from an aborted run
		// reaches the cache.
		return nil, fmt.Errorf("callmap: analysis aborted: %w", err)
	}
	close(resultCh)

	for res := range resultCh {
		corpus[res.path] = res.report
	}

	if batch != nil {
		if err := e.store.CommitBatch(batch); err != nil {
			e.logger.Warn("cache commit failed",
				slog.Int("reports", batch.Len()),
				slog.String("error", err.Error()),
			)
		}
	}
	return corpus, nil
}
