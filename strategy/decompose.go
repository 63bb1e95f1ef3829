package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

func init() {
	Register("decomposition", func(deps Deps, cfg Config) Strategy {
		return &Decomposition{deps: deps, cfg: cfg}
	})
}

// Decomposition splits the question into atomic sub-questions with one
// model call, answers each independently with its own retrieval, then
// synthesizes the sub-answers into a final answer.
type Decomposition struct {
	deps Deps
	cfg  Config

	subQuestions []string
	subAnswers   []string
	next         int
	decomposed   bool
}

func (d *Decomposition) Name() string { return "decomposition" }

func (d *Decomposition) Step(ctx context.Context, state *State) (bool, error) {
	round := state.BeginRound()

	switch {
	case !d.decomposed:
		if err := d.decompose(ctx, state); err != nil {
			return false, err
		}
	case d.next < len(d.subQuestions):
		if err := d.answerNext(ctx, state); err != nil {
			return false, err
		}
	default:
		return true, d.synthesize(ctx, state)
	}

	// Budget exhaustion resolves with the partial findings instead of
	// failing the session.
	if round >= d.cfg.MaxSteps {
		_, _, resolved := state.Final()
		if !resolved {
			d.degrade(state)
		}
		return true, nil
	}
	return false, nil
}

func (d *Decomposition) decompose(ctx context.Context, state *State) error {
	resp, err := ask(ctx, d.deps, d.cfg, decomposePrompt(state.Question()), nil)
	if err != nil {
		return err
	}

	d.subQuestions = parseSubQuestions(resp)
	if len(d.subQuestions) == 0 {
		d.subQuestions = []string{state.Question()}
	}
	d.decomposed = true

	state.Append(StepDecompose, strings.Join(d.subQuestions, "\n"))
	d.deps.logger().Debug("question decomposed",
		zap.String("question", state.Question()),
		zap.Int("sub_questions", len(d.subQuestions)))
	return nil
}

func (d *Decomposition) answerNext(ctx context.Context, state *State) error {
	sub := d.subQuestions[d.next]
	d.next++
	state.Append(StepSubQuestion, sub)

	results, err := d.deps.Retriever.Retrieve(ctx, sub, d.cfg.TopK, d.cfg.ScoreThreshold)
	if err != nil {
		return err
	}
	state.Append(StepRetrieval, sub, chunksOf(results)...)

	answer, err := ask(ctx, d.deps, d.cfg, subAnswerPrompt(sub, formatContext(d.cfg, results)), nil)
	if err != nil {
		return err
	}
	state.Append(StepSubAnswer, answer)
	d.subAnswers = append(d.subAnswers, fmt.Sprintf("Q: %s\nA: %s", sub, answer))
	return nil
}

func (d *Decomposition) synthesize(ctx context.Context, state *State) error {
	answer, err := ask(ctx, d.deps, d.cfg, synthesizePrompt(state.Question(), d.subAnswers), nil)
	if err != nil {
		return err
	}
	state.Append(StepFinalAnswer, answer)
	state.SetFinal(answer, false)
	return nil
}

func (d *Decomposition) degrade(state *State) {
	answer := strings.Join(d.subAnswers, "\n")
	if answer == "" {
		answer = noContextSentinel
	}
	state.Append(StepFinalAnswer, answer)
	state.SetFinal(answer, true)
	d.deps.logger().Debug("decomposition budget exhausted",
		zap.Int("answered", len(d.subAnswers)),
		zap.Int("sub_questions", len(d.subQuestions)))
}

var subQuestionLine = regexp.MustCompile(`^\s*(?:\d+[.):]|[-*])\s*(.+)$`)

// parseSubQuestions reads a numbered or bulleted list, one item per
// line. Unmarked non-empty lines count too, so an unformatted model
// response still yields something usable.
func parseSubQuestions(resp string) []string {
	var out []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := subQuestionLine.FindStringSubmatch(line); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		} else {
			out = append(out, line)
		}
	}
	return out
}
