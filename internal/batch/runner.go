package batch

import (
	"context"
	"log/slog"

	"fluxmedia/internal/logging"
	"fluxmedia/internal/operation"
	"fluxmedia/internal/request"
)

// Outcome records what happened to one item. Err is set only when the item
// was rejected before reaching the backend.
type Outcome struct {
	Index     int
	Item      Item
	Download  operation.State
	Convert   *operation.State
	Err       error
	Cancelled bool
}

// Final is the state the item ended in: the convert when one ran, otherwise
// the download.
func (o Outcome) Final() operation.State {
	if o.Convert != nil {
		return *o.Convert
	}
	return o.Download
}

// Succeeded reports whether every step of the item succeeded.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && !o.Cancelled && o.Final().Phase == operation.PhaseSucceeded
}

// Summary aggregates a batch run.
type Summary struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Cancelled int
}

// Runner executes items one after another through a single controller.
type Runner struct {
	ctrl      *operation.Controller
	logger    *slog.Logger
	onOutcome func(Outcome)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each item settles.
func WithProgress(fn func(Outcome)) RunnerOption {
	return func(r *Runner) {
		r.onOutcome = fn
	}
}

// NewRunner builds a runner driving ctrl.
func NewRunner(ctrl *operation.Controller, opts ...RunnerOption) *Runner {
	r := &Runner{ctrl: ctrl, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "batch")
	return r
}

// Run processes items in order. A failed item does not stop the batch;
// cancelling ctx marks the remaining items cancelled.
func (r *Runner) Run(ctx context.Context, items []Item) Summary {
	summary := Summary{Outcomes: make([]Outcome, 0, len(items))}
	for idx, item := range items {
		outcome := r.runItem(ctx, idx, item)
		switch {
		case outcome.Cancelled:
			summary.Cancelled++
		case outcome.Succeeded():
			summary.Succeeded++
		default:
			summary.Failed++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		if r.onOutcome != nil {
			r.onOutcome(outcome)
		}
	}
	r.logger.Info("batch finished",
		logging.Int("items", len(items)),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
	)
	return summary
}

func (r *Runner) runItem(ctx context.Context, idx int, item Item) Outcome {
	outcome := Outcome{Index: idx, Item: item}
	if ctx.Err() != nil {
		outcome.Cancelled = true
		return outcome
	}

	req, err := request.BuildDownload(item.Fields())
	if err != nil {
		outcome.Err = err
		r.logger.Warn("batch item rejected", logging.Int("index", idx), logging.Error(err))
		return outcome
	}

	state, err := r.ctrl.SubmitDownload(ctx, req)
	outcome.Download = state
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if state.Phase != operation.PhaseSucceeded || !item.Convert {
		return outcome
	}

	converted, err := r.ctrl.SubmitConvert(ctx, item.AudioOnly, item.SelectedFormat())
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Convert = &converted
	return outcome
}
