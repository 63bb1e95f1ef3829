package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

func init() {
	Register("self_ask", func(deps Deps, cfg Config) Strategy {
		return &SelfAsk{deps: deps, cfg: cfg}
	})
}

// SelfAsk alternates between asking the model for a follow-up question
// and answering that follow-up with retrieved context, until the model
// declares a final answer or the budget runs out. Budget exhaustion
// returns the best partial answer as a degraded result.
type SelfAsk struct {
	deps Deps
	cfg  Config

	scratchpad strings.Builder
	lastAnswer string
}

func (s *SelfAsk) Name() string { return "self_ask" }

func (s *SelfAsk) Step(ctx context.Context, state *State) (bool, error) {
	round := state.BeginRound()

	resp, err := ask(ctx, s.deps, s.cfg, selfAskPrompt(state.Question(), s.scratchpad.String()), s.cfg.History)
	if err != nil {
		return false, err
	}

	if final, ok := extractFinal(resp); ok {
		state.Append(StepFinalAnswer, final)
		state.SetFinal(final, false)
		return true, nil
	}

	followUp := parseFollowUp(resp)
	state.Append(StepSubQuestion, followUp)

	results, err := s.deps.Retriever.Retrieve(ctx, followUp, s.cfg.TopK, s.cfg.ScoreThreshold)
	if err != nil {
		return false, err
	}
	state.Append(StepRetrieval, followUp, chunksOf(results)...)

	answer, err := ask(ctx, s.deps, s.cfg, selfAskAnswerPrompt(followUp, formatContext(s.cfg, results)), nil)
	if err != nil {
		return false, err
	}
	state.Append(StepSubAnswer, answer)
	s.lastAnswer = answer
	fmt.Fprintf(&s.scratchpad, "Follow up: %s\nIntermediate answer: %s\n", followUp, answer)

	if round >= s.cfg.MaxSteps {
		s.degrade(state)
		return true, nil
	}
	return false, nil
}

func (s *SelfAsk) degrade(state *State) {
	answer := s.lastAnswer
	if answer == "" {
		answer = noContextSentinel
	}
	state.Append(StepFinalAnswer, answer)
	state.SetFinal(answer, true)
	s.deps.logger().Debug("self-ask budget exhausted",
		zap.String("question", state.Question()),
		zap.Int("rounds", state.Rounds()))
}

// parseFollowUp extracts the follow-up question from a model turn. The
// whole response is used when the expected prefix is missing.
func parseFollowUp(resp string) string {
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Follow up:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(resp)
}
