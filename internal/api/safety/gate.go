package safety

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skinsage/skinsage/internal/types"
)

// DeepAnalyzer is the optional second evaluation tier: a model-based analysis
// of complex multi-ingredient formulations. It only ever adds findings, it is
// never required for the pipeline to be correct, and implementations must not
// return an error for "nothing found".
type DeepAnalyzer interface {
	Analyze(ctx context.Context, candidates []types.Product, shelfIngredients []string) ([]types.Conflict, error)
}

// Gate runs the conflict engine over every retrieved candidate and aggregates
// the findings into a single verdict. It is the one component allowed to set
// Blocked, and it always derives it from the overall severity.
type Gate struct {
	engine   *Engine
	analyzer DeepAnalyzer // nil unless deep analysis is configured
	logger   *slog.Logger
}

func NewGate(engine *Engine, analyzer DeepAnalyzer, logger *slog.Logger) *Gate {
	return &Gate{engine: engine, analyzer: analyzer, logger: logger}
}

// Check evaluates each candidate with a non-empty ingredient list against the
// shelf, tags findings with the candidate name, and tracks the highest
// severity seen. Candidates without ingredient data contribute nothing; that
// is missing data, not an error.
func (g *Gate) Check(ctx context.Context, candidates []types.Product, shelfIngredients []string) types.SafetyVerdict {
	ctx, span := otel.Tracer("SafetyGate").Start(ctx, "Check", trace.WithAttributes(
		attribute.Int("candidates.count", len(candidates)),
		attribute.Int("shelf.ingredients", len(shelfIngredients)),
	))
	defer span.End()

	var allConflicts []types.Conflict
	overall := types.SeveritySafe

	for _, product := range candidates {
		if len(product.Ingredients) == 0 {
			continue
		}
		conflicts := g.engine.Evaluate(product.Ingredients, shelfIngredients)
		for _, c := range conflicts {
			c.ProductName = product.Name
			allConflicts = append(allConflicts, c)
			if c.Severity.MoreSevere(overall) {
				overall = c.Severity
			}
		}
	}

	// Tier 2 runs only when the rule tier found nothing CRITICAL and there is
	// something to analyze. It may raise the severity but a missing or failing
	// analyzer never degrades the verdict.
	if overall != types.SeverityCritical && len(candidates) > 0 && g.analyzer != nil {
		extra, err := g.analyzer.Analyze(ctx, candidates, shelfIngredients)
		if err != nil {
			g.logger.WarnContext(ctx, "Deep formulation analysis failed, continuing with rule verdict",
				slog.Any("error", err))
		} else {
			for _, c := range extra {
				allConflicts = append(allConflicts, c)
				if c.Severity.MoreSevere(overall) {
					overall = c.Severity
				}
			}
		}
	}

	verdict := types.SafetyVerdict{
		OverallSeverity: overall,
		Conflicts:       allConflicts,
		Blocked:         overall == types.SeverityCritical,
	}

	span.SetAttributes(
		attribute.String("verdict.severity", string(verdict.OverallSeverity)),
		attribute.Bool("verdict.blocked", verdict.Blocked),
		attribute.Int("verdict.conflicts", len(verdict.Conflicts)),
	)
	if verdict.Blocked {
		g.logger.WarnContext(ctx, "Safety gate blocked recommendation",
			slog.Int("conflicts", len(verdict.Conflicts)))
	}
	return verdict
}
