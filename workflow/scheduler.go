package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Round is one complete pass over a batch, answers in input order.
type Round struct {
	Index   int           `json:"index"`
	Answers []*Answer     `json:"answers"`
	Elapsed time.Duration `json:"elapsed"`
}

// BatchResult holds every round of a batch run. Single-round runs have
// exactly one element in Rounds.
type BatchResult struct {
	Rounds  []Round       `json:"rounds"`
	Elapsed time.Duration `json:"elapsed"`
}

// Answers returns the first round's answers, the common case.
func (b *BatchResult) Answers() []*Answer {
	if len(b.Rounds) == 0 {
		return nil
	}
	return b.Rounds[0].Answers
}

// Scheduler fans a batch of questions out across a bounded worker pool.
// Output order always matches input order regardless of completion
// order, and one question's failure never aborts the rest.
type Scheduler struct {
	runner      *SessionRunner
	numParallel int
	testRounds  int
	logger      *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTestRounds repeats the full batch n times, keeping each round's
// answers separate, for measuring answer variance across runs.
func WithTestRounds(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.testRounds = n
		}
	}
}

// NewScheduler creates a scheduler over runner with at most numParallel
// concurrent sessions.
func NewScheduler(runner *SessionRunner, numParallel int, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if numParallel <= 0 {
		numParallel = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner:      runner,
		numParallel: numParallel,
		testRounds:  1,
		logger:      logger.With(zap.String("component", "scheduler")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the batch for the configured number of rounds. Every
// input question gets exactly one answer slot per round.
func (s *Scheduler) Run(ctx context.Context, questions []Question) *BatchResult {
	start := time.Now()
	result := &BatchResult{Rounds: make([]Round, 0, s.testRounds)}

	for round := 0; round < s.testRounds; round++ {
		roundStart := time.Now()
		answers := s.runRound(ctx, questions)
		result.Rounds = append(result.Rounds, Round{
			Index:   round,
			Answers: answers,
			Elapsed: time.Since(roundStart),
		})
	}

	result.Elapsed = time.Since(start)
	s.logger.Info("batch complete",
		zap.Int("questions", len(questions)),
		zap.Int("rounds", s.testRounds),
		zap.Duration("elapsed", result.Elapsed))
	return result
}

func (s *Scheduler) runRound(ctx context.Context, questions []Question) []*Answer {
	answers := make([]*Answer, len(questions))
	sem := make(chan struct{}, s.numParallel)
	var wg sync.WaitGroup

	for i, q := range questions {
		wg.Add(1)
		go func(idx int, q Question) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			ans := s.runner.Run(ctx, q)
			answers[idx] = ans

			if ans.Failed() {
				s.logger.Warn("question failed",
					zap.String("question_id", q.ID),
					zap.Error(ans.Err))
			}
		}(i, q)
	}

	wg.Wait()
	return answers
}
