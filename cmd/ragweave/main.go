// Command ragweave answers a batch of questions with a reasoning
// strategy over a retrieval corpus.
//
// Usage:
//
//	ragweave run --config config.yaml --questions questions.jsonl --out answers.jsonl
//	ragweave run --corpus corpus.jsonl --questions questions.jsonl
//	ragweave strategies
//	ragweave version
//
// Questions are JSONL, one {"id","text","gold"} object per line. The
// corpus, when given, is JSONL of {"id","doc_id","text"} chunks indexed
// into the in-memory retriever. Answers are written as JSONL with the
// full step trace.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ragweave/ragweave"
	"github.com/ragweave/ragweave/config"
	"github.com/ragweave/ragweave/retrieval"
	"github.com/ragweave/ragweave/strategy"
	"github.com/ragweave/ragweave/workflow"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		if err := runBatch(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "strategies":
		for _, name := range strategy.Names() {
			fmt.Println(name)
		}
	case "version":
		fmt.Printf("ragweave %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `ragweave - retrieval-augmented question answering

commands:
  run          answer a batch of questions
  strategies   list registered reasoning strategies
  version      print version

run flags:
  --config     YAML config file (optional, env RAGWEAVE_* overrides apply)
  --questions  questions JSONL file (required)
  --corpus     corpus JSONL file indexed into the in-memory retriever
  --out        answers JSONL output, "-" for stdout (default "-")
  --strategy   override the configured strategy
`)
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	questionsPath := fs.String("questions", "", "questions JSONL file")
	corpusPath := fs.String("corpus", "", "corpus JSONL file")
	outPath := fs.String("out", "-", "answers output")
	strategyName := fs.String("strategy", "", "strategy override")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *questionsPath == "" {
		return fmt.Errorf("--questions is required")
	}

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		return err
	}
	if *strategyName != "" {
		if err := strategy.Validate(*strategyName); err != nil {
			return err
		}
		cfg.Strategy.Name = *strategyName
	}

	questions, err := readQuestions(*questionsPath)
	if err != nil {
		return fmt.Errorf("read questions: %w", err)
	}

	ctx := context.Background()
	var opts []ragweave.Option
	if *corpusPath != "" {
		mem, err := loadCorpus(*corpusPath)
		if err != nil {
			return fmt.Errorf("load corpus: %w", err)
		}
		opts = append(opts, ragweave.WithRetriever(mem))
	}

	engine, err := ragweave.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer engine.Close(ctx)

	result := engine.RunBatch(ctx, questions)
	if err := writeAnswers(*outPath, result); err != nil {
		return fmt.Errorf("write answers: %w", err)
	}
	printSummary(questions, result)
	return nil
}

func readQuestions(path string) ([]workflow.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var questions []workflow.Question
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var q workflow.Question
		if err := json.Unmarshal([]byte(text), &q); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", line)
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in %s", path)
	}
	return questions, nil
}

func loadCorpus(path string) (*retrieval.MemoryRetriever, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mem := retrieval.NewMemoryRetriever(retrieval.WithMemoryLogger(zap.NewNop()))
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c retrieval.Chunk
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("chunk%d", line)
		}
		mem.Add(c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mem, nil
}

func writeAnswers(path string, result *workflow.BatchResult) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	for _, round := range result.Rounds {
		for _, ans := range round.Answers {
			record := map[string]any{
				"round":       round.Index,
				"question_id": ans.QuestionID,
				"answer":      ans.Text,
				"degraded":    ans.Degraded,
				"strategy":    ans.Strategy,
				"elapsed_ms":  ans.Elapsed.Milliseconds(),
				"trace":       ans.Trace,
			}
			if ans.Failed() {
				record["error"] = ans.Err.Error()
			}
			if err := enc.Encode(record); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(questions []workflow.Question, result *workflow.BatchResult) {
	hasGold := false
	for _, q := range questions {
		if q.Gold != "" {
			hasGold = true
			break
		}
	}
	if !hasGold {
		return
	}

	rounds := workflow.Evaluate(questions, result, workflow.ExactMatch{}, workflow.TokenF1{})
	for i, summaries := range rounds {
		for _, s := range summaries {
			fmt.Fprintf(os.Stderr, "round %d %s: %.3f (%d scored, %d failed)\n",
				i, s.Metric, s.Mean, s.Scored, s.Failed)
		}
	}
	if len(rounds) > 1 {
		for _, s := range workflow.Spread(rounds) {
			fmt.Fprintf(os.Stderr, "overall %s: %.3f ± %.3f over %d rounds\n",
				s.Metric, s.Mean, s.StdDev, s.Rounds)
		}
	}
}
