package workflow

import (
	"math"
	"strings"
	"unicode"
)

// Evaluator scores a produced answer against the gold answer. Scores are
// in [0, 1], higher is better.
type Evaluator interface {
	Name() string
	Score(question, gold, produced string) float64
}

// ExactMatch scores 1 when the normalized answers are identical.
type ExactMatch struct{}

func (ExactMatch) Name() string { return "exact_match" }

func (ExactMatch) Score(_, gold, produced string) float64 {
	if normalizeAnswer(gold) == normalizeAnswer(produced) {
		return 1
	}
	return 0
}

// TokenF1 is the token-level F1 between the normalized answers.
type TokenF1 struct{}

func (TokenF1) Name() string { return "token_f1" }

func (TokenF1) Score(_, gold, produced string) float64 {
	goldTokens := strings.Fields(normalizeAnswer(gold))
	prodTokens := strings.Fields(normalizeAnswer(produced))
	if len(goldTokens) == 0 || len(prodTokens) == 0 {
		if len(goldTokens) == len(prodTokens) {
			return 1
		}
		return 0
	}

	counts := make(map[string]int, len(goldTokens))
	for _, tok := range goldTokens {
		counts[tok]++
	}
	common := 0
	for _, tok := range prodTokens {
		if counts[tok] > 0 {
			counts[tok]--
			common++
		}
	}
	if common == 0 {
		return 0
	}

	precision := float64(common) / float64(len(prodTokens))
	recall := float64(common) / float64(len(goldTokens))
	return 2 * precision * recall / (precision + recall)
}

// normalizeAnswer lowercases, strips punctuation and articles, and
// collapses whitespace, the usual QA-benchmark normalization.
func normalizeAnswer(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}

	words := strings.Fields(b.String())
	out := words[:0]
	for _, w := range words {
		if w == "a" || w == "an" || w == "the" {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// MetricSummary aggregates one evaluator over one round.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Mean   float64 `json:"mean"`
	Scored int     `json:"scored"`
	Failed int     `json:"failed"`
}

// Evaluate scores every round of a batch against the questions' gold
// answers. Failed sessions count as zero and are tallied separately.
// The outer slice is indexed by round, the inner by evaluator.
func Evaluate(questions []Question, result *BatchResult, evaluators ...Evaluator) [][]MetricSummary {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	out := make([][]MetricSummary, 0, len(result.Rounds))
	for _, round := range result.Rounds {
		summaries := make([]MetricSummary, 0, len(evaluators))
		for _, ev := range evaluators {
			sum := MetricSummary{Metric: ev.Name()}
			var total float64
			for _, ans := range round.Answers {
				q, ok := byID[ans.QuestionID]
				if !ok || q.Gold == "" {
					continue
				}
				sum.Scored++
				if ans.Failed() {
					sum.Failed++
					continue
				}
				total += ev.Score(q.Text, q.Gold, ans.Text)
			}
			if sum.Scored > 0 {
				sum.Mean = total / float64(sum.Scored)
			}
			summaries = append(summaries, sum)
		}
		out = append(out, summaries)
	}
	return out
}

// MetricSpread aggregates one evaluator's per-round means across all
// rounds of a batch.
type MetricSpread struct {
	Metric string  `json:"metric"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Rounds int     `json:"rounds"`
}

// Spread collapses per-round summaries into cross-round mean and
// standard deviation per metric, preserving evaluator order.
func Spread(rounds [][]MetricSummary) []MetricSpread {
	if len(rounds) == 0 {
		return nil
	}

	out := make([]MetricSpread, len(rounds[0]))
	for i, s := range rounds[0] {
		out[i].Metric = s.Metric
	}
	for _, summaries := range rounds {
		for i := range out {
			if i < len(summaries) {
				out[i].Mean += summaries[i].Mean
			}
		}
	}
	n := float64(len(rounds))
	for i := range out {
		out[i].Mean /= n
		out[i].Rounds = len(rounds)
	}
	for _, summaries := range rounds {
		for i := range out {
			if i < len(summaries) {
				d := summaries[i].Mean - out[i].Mean
				out[i].StdDev += d * d
			}
		}
	}
	for i := range out {
		out[i].StdDev = math.Sqrt(out[i].StdDev / n)
	}
	return out
}
