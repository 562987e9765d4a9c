package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/skinsage/skinsage/internal/api/generative_ai"
	"github.com/skinsage/skinsage/internal/types"
)

const synthesisTopN = 3

const nothingFoundText = "I couldn't find any products matching that request in the catalog. " +
	"Try describing the product type or a key ingredient, and I'll search again."

const warningDisclaimer = "Please consult a dermatologist before using these products together."

// Synthesizer produces the user-facing text for both terminal paths. The
// blocked path is fully deterministic and never touches the model; the
// allowed path builds a grounded prompt and makes exactly one model call.
type Synthesizer struct {
	logger *slog.Logger
	llm    generativeAI.LanguageModel
}

func NewSynthesizer(llm generativeAI.LanguageModel, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{logger: logger, llm: llm}
}

// RenderWarning renders the blocked-path safety warning: every CRITICAL
// conflict with its reasoning and adjustment, then the standing disclaimer.
// Reproducible by construction; model behavior can never vary it.
func (s *Synthesizer) RenderWarning(verdict types.SafetyVerdict) string {
	var sb strings.Builder
	sb.WriteString("SAFETY ALERT: I cannot recommend this product because it conflicts with items in your routine.\n\n")

	for _, c := range verdict.CriticalConflicts() {
		fmt.Fprintf(&sb, "%s + %s: %s\n", c.IngredientA, c.IngredientB, c.Reasoning)
		fmt.Fprintf(&sb, "  -> %s\n\n", c.RecommendedAdjustment)
	}

	sb.WriteString(warningDisclaimer)
	return sb.String()
}

// BuildPrompt assembles the grounded prompt for the allowed path. Every
// non-blocking conflict present in the verdict is included with its
// adjustment; leaving one out would be a safety regression even though the
// gate did not block.
func (s *Synthesizer) BuildPrompt(state *types.SessionState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on the user's query: %q\n\n", state.Query)
	fmt.Fprintf(&sb, "User Profile: %s skin\n", state.UserContext.SkinType)
	fmt.Fprintf(&sb, "Current Shelf: %s\n", strings.Join(state.UserContext.InventoryNames(), ", "))

	if len(state.UserContext.JournalNotes) > 0 {
		sb.WriteString("\nRecent skin journal notes:\n")
		for _, note := range state.UserContext.JournalNotes {
			fmt.Fprintf(&sb, "- %s\n", note)
		}
	}

	sb.WriteString("\nFound Products:\n")
	top := state.Candidates
	if len(top) > synthesisTopN {
		top = top[:synthesisTopN]
	}
	for _, p := range top {
		fmt.Fprintf(&sb, "- %s by %s [evidence: %s]\n", p.Name, p.Brand, p.EvidenceGrade)
	}

	if len(state.SafetyVerdict.Conflicts) > 0 {
		sb.WriteString("\nNote these warnings:\n")
		for _, c := range state.SafetyVerdict.Conflicts {
			fmt.Fprintf(&sb, "- %s + %s: %s\n", c.IngredientA, c.IngredientB, c.RecommendedAdjustment)
		}
	}

	if len(state.StoreResults) > 0 {
		sb.WriteString("\nNearby stores:\n")
		for _, store := range state.StoreResults {
			fmt.Fprintf(&sb, "- %s (%s)\n", store.Name, store.Address)
		}
	}

	sb.WriteString("\nYou are a dermatology consultant. Be specific and reference the user's actual products. " +
		"Provide a helpful, personalized recommendation.")
	return sb.String()
}

// Synthesize runs the allowed path to completion and returns the final text.
func (s *Synthesizer) Synthesize(ctx context.Context, state *types.SessionState) (string, error) {
	ctx, span := otel.Tracer("Synthesizer").Start(ctx, "Synthesize", trace.WithAttributes(
		attribute.Int("candidates.count", len(state.Candidates)),
	))
	defer span.End()

	if len(state.Candidates) == 0 {
		span.SetStatus(codes.Ok, "No candidates, canned response")
		return nothingFoundText, nil
	}

	prompt := s.BuildPrompt(state)
	text, err := s.llm.Invoke(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Model invoke failed")
		return "", fmt.Errorf("synthesis call failed: %w", err)
	}
	span.SetStatus(codes.Ok, "Synthesis complete")
	return text, nil
}

// SynthesizeStream is the incremental variant: it yields text deltas as the
// model produces them. The empty-candidate case yields the canned response as
// a single delta.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, state *types.SessionState) (iter.Seq2[string, error], error) {
	if len(state.Candidates) == 0 {
		return func(yield func(string, error) bool) {
			yield(nothingFoundText, nil)
		}, nil
	}
	return s.llm.Stream(ctx, s.BuildPrompt(state))
}
