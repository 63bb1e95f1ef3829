package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragweave/ragweave/llm"
	"github.com/ragweave/ragweave/llm/tokenizer"
	"github.com/ragweave/ragweave/retrieval"
)

// noContextSentinel is what strategies put in a prompt when retrieval
// came back empty. Empty retrieval is valid input, never a failure.
const noContextSentinel = "No supporting context found."

// finalAnswerMarker is the phrase the model is instructed to emit when
// it is ready to conclude. Everything after it is the answer.
const finalAnswerMarker = "So the final answer is:"

// formatContext renders retrieval results for inclusion in a prompt,
// truncated to the configured token budget.
func formatContext(cfg Config, results []retrieval.Result) string {
	if len(results) == 0 {
		return noContextSentinel
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(r.Chunk.Text))
	}
	text := b.String()
	if cfg.MaxContextTokens > 0 {
		text = tokenizer.Truncate(tokenizer.ForModel(cfg.Params.Model), text, cfg.MaxContextTokens)
	}
	return text
}

// chunksOf extracts the chunks from retrieval results for trace records.
func chunksOf(results []retrieval.Result) []retrieval.Chunk {
	chunks := make([]retrieval.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	return chunks
}

// extractFinal looks for the final-answer marker in a model response and
// returns the text after it.
func extractFinal(response string) (string, bool) {
	idx := strings.Index(response, finalAnswerMarker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(response[idx+len(finalAnswerMarker):]), true
}

// ask issues one model call with the session's sampling parameters.
func ask(ctx context.Context, deps Deps, cfg Config, prompt string, history []llm.Message) (string, error) {
	return deps.Model.Run(ctx, &llm.Request{
		Prompt:  prompt,
		History: history,
		Params:  cfg.Params,
	})
}

func generationPrompt(question, context string) string {
	return fmt.Sprintf(`Answer the question using the provided context. If the context does not contain the answer, say so and answer from general knowledge.

Context:
%s

Question: %s

Answer:`, context, question)
}

func decomposePrompt(question string) string {
	return fmt.Sprintf(`Break the question down into the smallest self-contained sub-questions needed to answer it. Output one sub-question per line, numbered. Output nothing but the numbered list.

Question: %s

Sub-questions:`, question)
}

func subAnswerPrompt(subQuestion, context string) string {
	return fmt.Sprintf(`Answer the sub-question concisely using the provided context.

Context:
%s

Sub-question: %s

Answer:`, context, subQuestion)
}

func synthesizePrompt(question string, subQA []string) string {
	return fmt.Sprintf(`Combine the intermediate findings into one final answer to the original question. Answer directly and concisely.

Original question: %s

Findings:
%s

Final answer:`, question, strings.Join(subQA, "\n"))
}

func selfAskPrompt(question, scratchpad string) string {
	return fmt.Sprintf(`You answer questions by asking yourself follow-up questions. Given the question and the follow-ups resolved so far, either ask exactly one new follow-up question on a line starting with "Follow up:", or conclude with a line starting with "%s" followed by the answer.

Question: %s

%s`, finalAnswerMarker, question, scratchpad)
}

func selfAskAnswerPrompt(followUp, context string) string {
	return fmt.Sprintf(`Answer the follow-up question concisely using the provided context.

Context:
%s

Follow up: %s

Intermediate answer:`, context, followUp)
}

func ircotPrompt(question, context, chain string) string {
	return fmt.Sprintf(`Extend the reasoning by exactly one sentence. Use the context below. When the reasoning is complete, end your sentence with "%s" followed by the answer.

Context:
%s

Question: %s

Reasoning so far:
%s

Next sentence:`, finalAnswerMarker, context, question, chain)
}

func itergenDraftPrompt(question, context, previousDraft string) string {
	if previousDraft == "" {
		return fmt.Sprintf(`Answer the question using the provided context. Answer directly and concisely.

Context:
%s

Question: %s

Answer:`, context, question)
	}
	return fmt.Sprintf(`Revise the draft answer using the provided context. Keep it direct and concise. If the draft is already correct and complete, repeat it unchanged.

Context:
%s

Question: %s

Draft answer: %s

Revised answer:`, context, question, previousDraft)
}
