package operation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/logging"
	"fluxmedia/internal/request"
	"fluxmedia/internal/services"
)

// Backend is the subset of the job API the controller drives.
type Backend interface {
	Download(ctx context.Context, req request.DownloadRequest) (backend.DownloadResponse, error)
	Convert(ctx context.Context, req request.ConvertRequest) (backend.ConvertResponse, error)
}

// Hook observes transitions. Hooks run on the submitting goroutine after the
// controller lock is released.
type Hook func(ctx context.Context, tr Transition)

// Controller owns the lifecycle of the single in-flight operation.
type Controller struct {
	backend Backend
	logger  *slog.Logger
	newID   func() string

	mu    sync.Mutex
	state State
	hooks []Hook
}

// Option customizes the controller.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithArtifact seeds the controller with an artifact produced earlier, so a
// convert can be submitted without a download in this process.
func WithArtifact(path string) Option {
	return func(c *Controller) {
		c.state.ArtifactPath = path
	}
}

// WithRequestIDs overrides correlation id generation.
func WithRequestIDs(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New constructs an idle controller.
func New(b Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
		state:   State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "operation")
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CanSubmit reports whether a download for url would be accepted right now.
func (c *Controller) CanSubmit(url string) bool {
	if strings.TrimSpace(url) == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase.IsResting()
}

// OnTransition registers a hook invoked after every state change.
func (c *Controller) OnTransition(h Hook) {
	if h == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// SubmitDownload runs a download to completion and returns the resting state.
// Backend failures settle into PhaseFailed and are not returned as errors; an
// error means the submission was rejected and nothing was sent.
func (c *Controller) SubmitDownload(ctx context.Context, req request.DownloadRequest) (State, error) {
	if strings.TrimSpace(req.URL) == "" {
		return c.State(), &request.ValidationError{Field: "url", Reason: "a media URL is required"}
	}
	return c.run(ctx, KindDownload, func(ctx context.Context) (string, error) {
		resp, err := c.backend.Download(ctx, req)
		return resp.Path, err
	}, nil)
}

// SubmitConvert converts the current artifact. The output format follows the
// audio-only and selected-format rules of request.ConvertOutputFormat.
func (c *Controller) SubmitConvert(ctx context.Context, audioOnly bool, selectedFormat string) (State, error) {
	var convertReq request.ConvertRequest
	prepare := func(current State) error {
		var err error
		convertReq, err = request.BuildConvert(current.ArtifactPath, audioOnly, selectedFormat)
		return err
	}
	return c.run(ctx, KindConvert, func(ctx context.Context) (string, error) {
		resp, err := c.backend.Convert(ctx, convertReq)
		return resp.Output, err
	}, prepare)
}

func (c *Controller) run(ctx context.Context, kind Kind, call func(context.Context) (string, error), prepare func(State) error) (State, error) {
	c.mu.Lock()
	if !c.state.Phase.IsResting() {
		current := c.state
		c.mu.Unlock()
		return current, services.Wrap(services.ErrBusy, "operation", string(kind), "another operation is running", nil)
	}
	if prepare != nil {
		if err := prepare(c.state); err != nil {
			current := c.state
			c.mu.Unlock()
			return current, err
		}
	}
	from := c.state
	started := State{
		Phase:        PhaseRunning,
		Kind:         kind,
		Message:      startingMessage(kind),
		ArtifactPath: from.ArtifactPath,
	}
	if kind == KindDownload {
		started.ArtifactPath = ""
	}
	c.state = started
	hooks := append([]Hook(nil), c.hooks...)
	c.mu.Unlock()

	requestID := c.newID()
	ctx = services.WithOperation(ctx, string(kind))
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, c.logger)
	logger.Info(string(kind)+" submitted", logging.String("artifact", from.ArtifactPath))
	emit(ctx, hooks, Transition{From: from, To: started, RequestID: requestID})

	artifact, err := call(ctx)

	phase, message := settle(kind, err)
	c.mu.Lock()
	settled := c.state
	settled.Phase = phase
	if err != nil {
		settled.Message = backend.Message(err, message)
	} else {
		settled.Message = message
		settled.ArtifactPath = artifact
	}
	c.state = settled
	hooks = append([]Hook(nil), c.hooks...)
	c.mu.Unlock()

	if err != nil {
		logger.Error(string(kind)+" failed",
			logging.String("message", settled.Message),
			logging.String("artifact", settled.ArtifactPath),
			logging.Error(err),
		)
	} else {
		logger.Info(string(kind)+" completed", logging.String("artifact", settled.ArtifactPath))
	}
	emit(ctx, hooks, Transition{From: started, To: settled, RequestID: requestID})
	return settled, nil
}

func emit(ctx context.Context, hooks []Hook, tr Transition) {
	for _, h := range hooks {
		h(ctx, tr)
	}
}
