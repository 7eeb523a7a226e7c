package pipeline

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/mutpeak/internal/region"
)

// WorkItem is a peak queued for processing.
type WorkItem struct {
	Seq  int
	Peak *region.Peak
}

// ParallelRun processes peaks from items using a pool of workers.
// Results are sent to the returned channel in completion order; use
// OrderedCollect to consume them in sequence order. A failed peak yields a
// Result with Err set. If workers is 0, runtime.NumCPU() is used.
func (p *Pipeline) ParallelRun(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				res, err := p.Run(ctx, item.Peak)
				if err != nil {
					res = &Result{Peak: item.Peak, Err: err}
				}
				results <- WorkResult{Seq: item.Seq, Result: res}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// WorkResult carries a peak's result with its sequence number.
type WorkResult struct {
	Seq    int
	Result *Result
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results are held until the next expected one arrives.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(*Result) error) error {
	pending := make(map[int]*Result)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r.Result

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// RunAll processes peaks concurrently and calls fn with each result in
// peak order. A peak that fails is passed to fn with Err set and does not
// stop the others; an error returned by fn stops collection.
func (p *Pipeline) RunAll(ctx context.Context, peaks []*region.Peak, workers int, fn func(*Result) error) error {
	items := make(chan WorkItem, len(peaks))
	for i, pk := range peaks {
		items <- WorkItem{Seq: i, Peak: pk}
	}
	close(items)

	failed := 0
	err := OrderedCollect(p.ParallelRun(ctx, items, workers), func(r *Result) error {
		if r.Err != nil {
			failed++
			p.logger.Error("peak failed", zap.String("peak", r.Peak.Name), zap.Error(r.Err))
		}
		return fn(r)
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		p.logger.Warn("some peaks failed", zap.Int("failed", failed), zap.Int("total", len(peaks)))
	}
	return nil
}
