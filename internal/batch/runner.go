// Package batch executes queued batch searches against the index and
// persists their results.
package batch

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/internal/store/model"
	"github.com/docpipe/docpipe/pkg/metrics"
)

// Searcher returns every document matching one query of a batch
// search, for one project.
type Searcher interface {
	Search(ctx context.Context, project, query string) ([]model.Document, error)
}

// Runner polls the store for queued batch searches and executes them
// one at a time. Executions of distinct searches are independent; one
// failed search does not stop the runner.
type Runner struct {
	store    store.Store
	searcher Searcher
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewRunner(st store.Store, searcher Searcher, interval time.Duration) *Runner {
	return &Runner{
		store:    st,
		searcher: searcher,
		interval: interval,
		log:      zap.S().Named("batch"),
	}
}

// Run polls until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := jitterbug.New(r.interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer ticker.Stop()

	r.log.Infof("batch runner started, poll interval %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := r.RunOnce(ctx); err != nil {
			r.log.Errorf("batch poll failed: %v", err)
		}
	}
}

// RunOnce executes every currently queued batch search.
func (r *Runner) RunOnce(ctx context.Context) error {
	queued, err := r.store.BatchSearch().GetQueued(ctx)
	if err != nil {
		return errors.Wrap(err, "listing queued batch searches")
	}
	for i := range queued {
		search := &queued[i]
		if err := r.execute(ctx, search); err != nil {
			r.log.Errorf("batch search %s failed: %v", search.ID, err)
			if stateErr := r.setState(ctx, search, model.StateFailure); stateErr != nil {
				r.log.Errorf("cannot mark batch search %s failed: %v", search.ID, stateErr)
			}
		}
	}
	return nil
}

// execute runs one batch search to completion. Queries run in their
// saved order; the first query error aborts the search, results saved
// so far stay in place.
func (r *Runner) execute(ctx context.Context, search *model.BatchSearch) error {
	if !search.State.CanTransition(model.StateRunning) {
		return errors.Errorf("batch search %s cannot start from state %s", search.ID, search.State)
	}
	if err := r.setState(ctx, search, model.StateRunning); err != nil {
		return errors.Wrap(err, "marking batch search running")
	}
	r.log.Infof("running batch search %s with %d queries", search.ID, search.Queries.Len())

	total := 0
	for _, query := range search.Queries.Keys() {
		documents, err := r.searcher.Search(ctx, search.Project, query)
		if err != nil {
			return errors.Wrapf(err, "query %q", query)
		}
		if err := r.store.BatchSearch().SaveResults(ctx, search.ID, query, documents); err != nil {
			return errors.Wrapf(err, "saving results of query %q", query)
		}
		total += len(documents)
	}

	if err := r.setState(ctx, search, model.StateSuccess); err != nil {
		return errors.Wrap(err, "marking batch search done")
	}
	r.log.Infof("batch search %s done, %d results", search.ID, total)
	return nil
}

func (r *Runner) setState(ctx context.Context, search *model.BatchSearch, state model.State) error {
	if err := r.store.BatchSearch().SetState(ctx, search.ID, state); err != nil {
		return err
	}
	search.State = state
	metrics.IncreaseBatchTransitionMetric(string(state))
	return nil
}
