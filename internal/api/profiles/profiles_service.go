package profiles

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skinsage/skinsage/internal/types"
)

// ingredientAnnotationPrefix marks a structured ingredient note on an
// inventory item, as written by the label scanner.
const ingredientAnnotationPrefix = "Ingredients:"

// recentJournalLimit caps how many journal notes reach the synthesis prompt.
const recentJournalLimit = 5

var _ Service = (*ServiceImpl)(nil)

// Service assembles the per-request user context. It must complete before
// retrieval or safety evaluation; both depend on its output.
type Service interface {
	Assemble(ctx context.Context, userID uuid.UUID) (types.UserContext, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo}
}

// Assemble loads the profile and active shelf and derives the shelf
// ingredient set from each item's ingredient annotation. A user with no
// profile or no inventory gets a defaulted context, not an error; only a
// failing store read surfaces.
func (s *ServiceImpl) Assemble(ctx context.Context, userID uuid.UUID) (types.UserContext, error) {
	ctx, span := otel.Tracer("ContextAssembler").Start(ctx, "Assemble", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	userCtx := types.UserContext{
		UserID:               userID,
		SkinType:             "unknown",
		BlacklistIngredients: []string{},
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Profile read failed")
		return types.UserContext{}, err
	}
	if profile != nil {
		if profile.SkinType != "" {
			userCtx.SkinType = profile.SkinType
		}
		userCtx.Concerns = profile.Concerns
	}

	inventory, err := s.repo.GetActiveInventory(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Inventory read failed")
		return types.UserContext{}, err
	}
	userCtx.ActiveInventory = inventory
	userCtx.ShelfIngredients = deriveShelfIngredients(inventory)

	// Journal notes only enrich the synthesis prompt; a failed read degrades
	// to an empty set rather than failing the request.
	notes, err := s.repo.GetRecentJournal(ctx, userID, recentJournalLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "Journal read failed, continuing without notes", slog.Any("error", err))
	} else {
		userCtx.JournalNotes = notes
	}

	s.logger.DebugContext(ctx, "User context assembled",
		slog.String("skin_type", userCtx.SkinType),
		slog.Int("inventory", len(inventory)),
		slog.Int("shelf_ingredients", len(userCtx.ShelfIngredients)))
	span.SetAttributes(
		attribute.Int("inventory.count", len(inventory)),
		attribute.Int("shelf.ingredients", len(userCtx.ShelfIngredients)),
	)
	span.SetStatus(codes.Ok, "Context assembled")
	return userCtx, nil
}

// deriveShelfIngredients parses structured ingredient annotations into a
// deduplicated list, preserving first-seen order. Items without annotations
// contribute nothing.
func deriveShelfIngredients(inventory []types.InventoryItem) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, item := range inventory {
		if !strings.HasPrefix(item.IngredientAnnotation, ingredientAnnotationPrefix) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(item.IngredientAnnotation, ingredientAnnotationPrefix))
		for _, ing := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(ing)
			if trimmed == "" {
				continue
			}
			key := strings.ToUpper(trimmed)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, trimmed)
		}
	}
	return out
}
