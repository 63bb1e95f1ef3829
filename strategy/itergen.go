package strategy

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

func init() {
	Register("iter_retgen", func(deps Deps, cfg Config) Strategy {
		return &IterRetGen{deps: deps, cfg: cfg}
	})
}

// IterRetGen iterates retrieval and generation: each round retrieves
// with the previous draft folded into the query, then regenerates the
// draft against the new context. Two identical consecutive drafts mean
// convergence; the iteration budget caps the loop otherwise.
type IterRetGen struct {
	deps Deps
	cfg  Config

	draft string
}

func (s *IterRetGen) Name() string { return "iter_retgen" }

func (s *IterRetGen) Step(ctx context.Context, state *State) (bool, error) {
	round := state.BeginRound()

	query := state.Question()
	if s.draft != "" {
		query = state.Question() + " " + s.draft
	}

	results, err := s.deps.Retriever.Retrieve(ctx, query, s.cfg.TopK, s.cfg.ScoreThreshold)
	if err != nil {
		return false, err
	}
	state.Append(StepRetrieval, query, chunksOf(results)...)

	draft, err := ask(ctx, s.deps, s.cfg,
		itergenDraftPrompt(state.Question(), formatContext(s.cfg, results), s.draft), nil)
	if err != nil {
		return false, err
	}
	draft = strings.TrimSpace(draft)
	state.Append(StepSubAnswer, draft)

	converged := s.draft != "" && draft == s.draft
	s.draft = draft

	if converged {
		state.Append(StepFinalAnswer, draft)
		state.SetFinal(draft, false)
		s.deps.logger().Debug("iter-retgen converged",
			zap.String("question", state.Question()),
			zap.Int("iterations", round))
		return true, nil
	}

	if round >= s.cfg.MaxSteps {
		answer := s.draft
		if answer == "" {
			answer = noContextSentinel
		}
		state.Append(StepFinalAnswer, answer)
		state.SetFinal(answer, true)
		return true, nil
	}
	return false, nil
}
