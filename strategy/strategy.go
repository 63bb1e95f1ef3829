package strategy

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ragweave/ragweave/llm"
	"github.com/ragweave/ragweave/retrieval"
)

// StepKind classifies one recorded unit of reasoning work.
type StepKind string

const (
	StepDecompose   StepKind = "decompose"
	StepSubQuestion StepKind = "sub-question"
	StepSubAnswer   StepKind = "sub-answer"
	StepRetrieval   StepKind = "retrieval"
	StepFinalAnswer StepKind = "final-answer"
)

// Step is one entry in a session's reasoning trace.
type Step struct {
	Index   int               `json:"index"`
	Kind    StepKind          `json:"kind"`
	Payload string            `json:"payload"`
	Chunks  []retrieval.Chunk `json:"chunks,omitempty"`
}

// State carries one session's question and accumulated trace. It is
// mutated by exactly one strategy instance, but the trace may be read
// from another goroutine when a session times out, so all access is
// synchronized.
type State struct {
	mu       sync.Mutex
	question string
	steps    []Step
	rounds   int
	final    string
	degraded bool
	resolved bool
}

// NewState creates the state for one question.
func NewState(question string) *State {
	return &State{question: question}
}

// Question returns the original question.
func (s *State) Question() string { return s.question }

// Append records one reasoning step and returns its index.
func (s *State) Append(kind StepKind, payload string, chunks ...retrieval.Chunk) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.steps)
	s.steps = append(s.steps, Step{Index: idx, Kind: kind, Payload: payload, Chunks: chunks})
	return idx
}

// Steps returns a snapshot of the trace so far.
func (s *State) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// BeginRound increments the strategy round counter and returns its new
// value. One round corresponds to one Strategy.Step invocation.
func (s *State) BeginRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds++
	return s.rounds
}

// Rounds returns how many strategy rounds have run.
func (s *State) Rounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}

// SetFinal records the final answer. degraded marks answers produced by
// budget exhaustion rather than natural termination.
func (s *State) SetFinal(answer string, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = answer
	s.degraded = degraded
	s.resolved = true
}

// Final returns the final answer, whether it is degraded, and whether
// one has been recorded at all.
func (s *State) Final() (answer string, degraded, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final, s.degraded, s.resolved
}

// Model is the slice of the model client a strategy needs.
type Model interface {
	Run(ctx context.Context, req *llm.Request) (string, error)
}

// Deps are the collaborators handed to every strategy.
type Deps struct {
	Model     Model
	Retriever retrieval.Retriever
	Logger    *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Config carries per-session strategy parameters.
type Config struct {
	// MaxSteps bounds the number of strategy rounds. Reaching it resolves
	// the session with a degraded answer instead of failing it.
	MaxSteps int

	// TopK and ScoreThreshold are passed through to every retrieval.
	TopK           int
	ScoreThreshold float64

	// Params are the sampling parameters for every model call.
	Params llm.Params

	// MaxContextTokens caps the retrieved context included in a prompt.
	// Zero leaves context untruncated.
	MaxContextTokens int

	// History is prior conversation context, consulted by strategies that
	// support multi-turn sessions.
	History []llm.Message
}

func (c Config) normalize() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 8
	}
	if c.TopK <= 0 {
		c.TopK = 4
	}
	return c
}

// Strategy is a reasoning state machine. Step advances the session by
// one round; done reports that state now carries a final answer. An
// error from Step is terminal for the session.
type Strategy interface {
	Name() string
	Step(ctx context.Context, state *State) (done bool, err error)
}
