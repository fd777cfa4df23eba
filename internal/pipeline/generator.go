package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/uigen/internal/llm"
)

// Completer is the completion service the pipeline calls once per stage.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Result is the output of a successful three-stage generation.
type Result struct {
	Plan        string
	Code        string
	Explanation string
}

// Generator chains the plan, generate and explain completion calls.
type Generator struct {
	llm Completer
}

// NewGenerator creates a Generator backed by the given completion client.
func NewGenerator(c Completer) *Generator {
	return &Generator{llm: c}
}

// Generate runs the three stages in order. Each stage's failure aborts the
// run and is returned as a *StageError; later stages are never attempted.
//  1. Plan: a short plan for the request ("No plan generated" when empty)
//  2. Generate: markup using the fixed component set, fences stripped
//  3. Explain: one-sentence rationale ("Generated successfully" when empty)
func (g *Generator) Generate(ctx context.Context, userPrompt, currentCode string) (Result, error) {
	plan, err := g.stage(ctx, StagePlanning, planMessages(userPrompt))
	if err != nil {
		return Result{}, err
	}
	plan = orDefault(plan, noPlanPlaceholder)

	code, err := g.stage(ctx, StageGeneration, generateMessages(plan, currentCode, userPrompt))
	if err != nil {
		return Result{}, err
	}
	code = StripCodeFences(code)

	explanation, err := g.stage(ctx, StageExplanation, explainMessages(userPrompt))
	if err != nil {
		return Result{}, err
	}
	explanation = orDefault(explanation, explanationPlaceholder)

	return Result{Plan: plan, Code: code, Explanation: explanation}, nil
}

func (g *Generator) stage(ctx context.Context, stage Stage, messages []llm.Message) (string, error) {
	slog.Info("pipeline stage started", "stage", stage)
	start := time.Now()

	out, err := g.llm.Complete(ctx, messages)
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}

	slog.Debug("pipeline stage finished",
		"stage", stage,
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(out),
	)
	return out, nil
}
