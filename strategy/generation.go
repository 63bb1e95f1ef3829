package strategy

import (
	"context"

	"go.uber.org/zap"
)

func init() {
	Register("generation", func(deps Deps, cfg Config) Strategy {
		return &Generation{deps: deps, cfg: cfg}
	})
}

// Generation is the single-shot strategy: retrieve once, answer once.
// Prior conversation turns are forwarded to the model, so it also serves
// multi-turn chat sessions.
type Generation struct {
	deps Deps
	cfg  Config
}

func (g *Generation) Name() string { return "generation" }

func (g *Generation) Step(ctx context.Context, state *State) (bool, error) {
	state.BeginRound()

	results, err := g.deps.Retriever.Retrieve(ctx, state.Question(), g.cfg.TopK, g.cfg.ScoreThreshold)
	if err != nil {
		return false, err
	}
	state.Append(StepRetrieval, state.Question(), chunksOf(results)...)

	answer, err := ask(ctx, g.deps, g.cfg, generationPrompt(state.Question(), formatContext(g.cfg, results)), g.cfg.History)
	if err != nil {
		return false, err
	}

	state.Append(StepFinalAnswer, answer)
	state.SetFinal(answer, false)
	g.deps.logger().Debug("generation complete",
		zap.String("question", state.Question()),
		zap.Int("context_chunks", len(results)))
	return true, nil
}
