package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ragweave/ragweave/internal/metrics"
	"github.com/ragweave/ragweave/strategy"
	"github.com/ragweave/ragweave/types"
)

// Question is one unit of work for a session.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	// Gold is the reference answer, carried through for evaluation.
	Gold string `json:"gold,omitempty"`
}

// Answer is the terminal output of one session.
type Answer struct {
	QuestionID string          `json:"question_id"`
	SessionID  string          `json:"session_id"`
	Text       string          `json:"text"`
	Degraded   bool            `json:"degraded"`
	Trace      []strategy.Step `json:"trace"`
	Elapsed    time.Duration   `json:"elapsed"`
	Model      string          `json:"model"`
	Strategy   string          `json:"strategy"`

	// Err is set when the session failed. Text and Trace still carry
	// whatever the session produced before failing.
	Err error `json:"-"`
}

// Failed reports whether the session ended in failure.
func (a *Answer) Failed() bool { return a.Err != nil }

// SessionRunner drives one strategy instance per question to completion,
// enforcing a wall-clock timeout on top of the strategy's own round
// budget. Timed-out sessions report a session-timeout failure carrying
// the partial trace; the in-flight round keeps running until its next
// suspension point and its result is discarded.
type SessionRunner struct {
	strategyName string
	deps         strategy.Deps
	cfg          strategy.Config
	timeout      time.Duration
	logger       *zap.Logger
	metrics      *metrics.Collector
	tracer       trace.Tracer
}

// RunnerOption configures a SessionRunner.
type RunnerOption func(*SessionRunner)

// WithTimeout sets the per-session wall-clock limit. Zero disables it.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *SessionRunner) { r.timeout = d }
}

// WithMetrics attaches the Prometheus collector.
func WithMetrics(collector *metrics.Collector) RunnerOption {
	return func(r *SessionRunner) { r.metrics = collector }
}

// NewSessionRunner creates a runner for the named strategy. The name is
// validated eagerly so misconfiguration fails at startup, not per
// question.
func NewSessionRunner(strategyName string, deps strategy.Deps, cfg strategy.Config, logger *zap.Logger, opts ...RunnerOption) (*SessionRunner, error) {
	if err := strategy.Validate(strategyName); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SessionRunner{
		strategyName: strategyName,
		deps:         deps,
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "session_runner"), zap.String("strategy", strategyName)),
		tracer:       otel.Tracer("ragweave/workflow"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes one session. The returned Answer is never nil: failures
// are reported through its Err field.
func (r *SessionRunner) Run(ctx context.Context, q Question) *Answer {
	sessionID := uuid.NewString()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "workflow.Session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.strategy", r.strategyName),
			attribute.String("question.id", q.ID),
		))
	defer span.End()

	ans := &Answer{
		QuestionID: q.ID,
		SessionID:  sessionID,
		Model:      r.cfg.Params.Model,
		Strategy:   r.strategyName,
	}

	state := strategy.NewState(q.Text)
	err := r.drive(ctx, state)

	ans.Elapsed = time.Since(start)
	ans.Trace = state.Steps()
	if text, degraded, ok := state.Final(); ok {
		ans.Text = text
		ans.Degraded = degraded
	}
	ans.Err = err

	outcome := "ok"
	switch {
	case err != nil && types.IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case ans.Degraded:
		outcome = "degraded"
	}
	if r.metrics != nil {
		r.metrics.RecordSession(r.strategyName, outcome, ans.Elapsed)
	}
	r.logger.Debug("session finished",
		zap.String("session_id", sessionID),
		zap.String("question_id", q.ID),
		zap.String("outcome", outcome),
		zap.Int("trace_steps", len(ans.Trace)),
		zap.Duration("elapsed", ans.Elapsed))
	return ans
}

// drive loops the strategy until done, failure, or timeout. The timeout
// is observed between rounds and via the context handed to the strategy;
// a round blocked in a backend call is abandoned, not interrupted.
func (r *SessionRunner) drive(ctx context.Context, state *strategy.State) error {
	st, err := strategy.New(r.strategyName, r.deps, r.cfg)
	if err != nil {
		return err
	}

	deadline := time.Time{}
	if r.timeout > 0 {
		deadline = time.Now().Add(r.timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	type stepResult struct {
		done bool
		err  error
	}

	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return types.NewError(types.ErrSessionTimeout, "session wall-clock exceeded")
		}

		ch := make(chan stepResult, 1)
		go func() {
			done, err := st.Step(ctx, state)
			ch <- stepResult{done: done, err: err}
		}()

		select {
		case res := <-ch:
			if res.err != nil {
				if ctx.Err() != nil && !deadline.IsZero() {
					return types.NewError(types.ErrSessionTimeout, "session wall-clock exceeded").WithCause(res.err)
				}
				return res.err
			}
			if res.done {
				return nil
			}
		case <-ctx.Done():
			// The round's result, if it ever arrives, is discarded.
			return types.NewError(types.ErrSessionTimeout, "session wall-clock exceeded")
		}
	}
}
