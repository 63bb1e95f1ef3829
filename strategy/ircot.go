package strategy

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

func init() {
	Register("ircot", func(deps Deps, cfg Config) Strategy {
		return &IRCoT{deps: deps, cfg: cfg}
	})
}

// IRCoT interleaves retrieval with chain-of-thought generation: each
// round retrieves with the running reasoning chain as the query and asks
// the model to extend the chain by one sentence. The chain ends when a
// sentence carries the final-answer marker or the budget runs out.
type IRCoT struct {
	deps Deps
	cfg  Config

	chain []string
}

func (s *IRCoT) Name() string { return "ircot" }

func (s *IRCoT) Step(ctx context.Context, state *State) (bool, error) {
	round := state.BeginRound()

	query := state.Question()
	if len(s.chain) > 0 {
		// Later hops search with the freshest reasoning, not the bare
		// question, so each retrieval follows the chain's direction.
		query = state.Question() + " " + s.chain[len(s.chain)-1]
	}

	results, err := s.deps.Retriever.Retrieve(ctx, query, s.cfg.TopK, s.cfg.ScoreThreshold)
	if err != nil {
		return false, err
	}
	state.Append(StepRetrieval, query, chunksOf(results)...)

	sentence, err := ask(ctx, s.deps, s.cfg,
		ircotPrompt(state.Question(), formatContext(s.cfg, results), strings.Join(s.chain, "\n")), nil)
	if err != nil {
		return false, err
	}
	sentence = strings.TrimSpace(sentence)
	s.chain = append(s.chain, sentence)
	state.Append(StepSubAnswer, sentence)

	if final, ok := extractFinal(sentence); ok {
		state.Append(StepFinalAnswer, final)
		state.SetFinal(final, false)
		return true, nil
	}

	if round >= s.cfg.MaxSteps {
		s.degrade(state)
		return true, nil
	}
	return false, nil
}

func (s *IRCoT) degrade(state *State) {
	answer := noContextSentinel
	if len(s.chain) > 0 {
		answer = s.chain[len(s.chain)-1]
	}
	state.Append(StepFinalAnswer, answer)
	state.SetFinal(answer, true)
	s.deps.logger().Debug("ircot budget exhausted",
		zap.String("question", state.Question()),
		zap.Int("chain_length", len(s.chain)))
}
