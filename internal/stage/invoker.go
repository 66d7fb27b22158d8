package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
)

// DefaultTimeout bounds a single stage invocation when no option overrides it.
const DefaultTimeout = 30 * time.Second

// Invoker runs one stage with a timeout and converts every failure mode
// into a failed Result.
type Invoker struct {
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithTimeout sets the per-stage timeout. Zero disables it.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		i.timeout = d
	}
}

// WithLogger sets the logger used for invocation outcomes.
func WithLogger(l *zap.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l.Named("stage")
		}
	}
}

// NewInvoker creates an Invoker.
func NewInvoker(opts ...InvokerOption) *Invoker {
	i := &Invoker{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Timeout returns the configured per-stage timeout.
func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

type outcome struct {
	res *Result
	err error
}

// Invoke runs s once. It always returns a non-nil Result. The error is
// non-nil when the stage returned an error, panicked, returned nothing,
// exceeded its deadline or was canceled; the Result then carries
// Success=false and the error text. A stage that reports Success=false
// without an error is a soft failure and yields a nil error.
//
// The effective deadline is the earlier of the invoker timeout and any
// deadline already on ctx.
func (i *Invoker) Invoke(ctx context.Context, s Stage, input string, sctx map[string]any) (*Result, error) {
	id := s.ID()
	ctx = logging.WithStageID(ctx, id)
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("%w: %v", ErrCanceled, err)
		return Failed(id, err, 0), err
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if i.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
	}
	defer cancel()

	start := i.now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrStagePanic, rec)}
			}
		}()
		res, err := s.Process(callCtx, input, sctx)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
		// A stage that surfaces its own context error is classified the
		// same way as one the invoker abandoned.
		if out.err != nil && callCtx.Err() != nil && errors.Is(out.err, callCtx.Err()) {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				out.err = fmt.Errorf("%w: %v", ErrStageTimeout, out.err)
			} else {
				out.err = fmt.Errorf("%w: %v", ErrCanceled, out.err)
			}
		}
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			out.err = ErrStageTimeout
		} else {
			out.err = fmt.Errorf("%w: %v", ErrCanceled, callCtx.Err())
		}
	}
	elapsed := i.now().Sub(start)

	res, err := normalize(id, out, elapsed)
	fields := append(logging.ContextFields(ctx), zap.String("stage_id", id))
	if err != nil {
		i.logger.Warn("stage invocation failed",
			append(fields, zap.Duration("duration", elapsed), zap.Error(err))...)
		return res, err
	}
	if !res.Success {
		i.logger.Info("stage reported failure",
			append(fields, zap.String("reason", res.Error))...)
		return res, nil
	}
	i.logger.Log(logging.TraceLevel, "stage invoked",
		append(fields, zap.Float64("confidence", res.Confidence), zap.Duration("duration", elapsed))...)
	return res, nil
}

func normalize(id string, out outcome, elapsed time.Duration) (*Result, error) {
	if out.err != nil {
		return Failed(id, out.err, elapsed), out.err
	}
	if out.res == nil {
		return Failed(id, ErrNoResult, elapsed), ErrNoResult
	}

	res := *out.res
	if res.StageID == "" {
		res.StageID = id
	}
	res.Duration = elapsed
	if !res.Success {
		res.Confidence = 0
		if res.Error == "" {
			res.Error = "stage reported failure"
		}
		return &res, nil
	}
	res.Error = ""
	switch {
	case res.Confidence < 0:
		res.Confidence = 0
	case res.Confidence > 1:
		res.Confidence = 1
	}
	return &res, nil
}
