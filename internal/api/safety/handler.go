package safety

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	appMiddleware "github.com/skinsage/skinsage/app/middleware"
	"github.com/skinsage/skinsage/internal/api"
	"github.com/skinsage/skinsage/internal/api/products"
	"github.com/skinsage/skinsage/internal/api/profiles"
	"github.com/skinsage/skinsage/internal/types"
)

// Handler answers the standalone question "is this specific product safe
// for me?" without running the full recommendation pipeline.
type Handler interface {
	CheckProductHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	gate      *Gate
	assembler profiles.Service
	products  products.Repository
	logger    *slog.Logger
}

var _ Handler = (*HandlerImpl)(nil)

func NewHandler(gate *Gate, assembler profiles.Service, productsRepo products.Repository, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		gate:      gate,
		assembler: assembler,
		products:  productsRepo,
		logger:    logger,
	}
}

type checkProductRequest struct {
	ProductName string   `json:"product_name"`
	Ingredients []string `json:"ingredients,omitempty"`
}

type checkProductResponse struct {
	ProductName string              `json:"product_name"`
	Verdict     types.SafetyVerdict `json:"verdict"`
}

// CheckProductHandler evaluates one product against the caller's shelf.
// The product is looked up by name; callers may instead supply the
// ingredient list directly for products not in the catalog.
func (h *HandlerImpl) CheckProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SafetyHandler").Start(r.Context(), "CheckProductHandler")
	defer span.End()

	var body checkProductRequest
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		h.logger.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if body.ProductName == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "product_name cannot be empty")
		return
	}

	userIDStr, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "user not authenticated")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "invalid user identity")
		return
	}

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("product.name", body.ProductName),
	)

	userCtx, err := h.assembler.Assemble(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to assemble user context", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "context assembly failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load user context")
		return
	}

	candidate := types.Product{Name: body.ProductName, Ingredients: body.Ingredients}
	if len(candidate.Ingredients) == 0 {
		stored, err := h.products.GetProductByName(ctx, body.ProductName)
		if err != nil {
			h.logger.ErrorContext(ctx, "Product lookup failed", slog.Any("error", err))
			span.RecordError(err)
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to look up product")
			return
		}
		if stored == nil {
			api.ErrorResponse(w, r, http.StatusNotFound, "product not found; supply ingredients to check an uncatalogued product")
			return
		}
		candidate = *stored
	}

	verdict := h.gate.Check(ctx, []types.Product{candidate}, userCtx.ShelfIngredients)

	span.SetAttributes(
		attribute.Bool("safety.blocked", verdict.Blocked),
		attribute.String("safety.severity", string(verdict.OverallSeverity)),
	)
	span.SetStatus(codes.Ok, "product checked")

	api.WriteJSONResponse(w, r, http.StatusOK, checkProductResponse{
		ProductName: candidate.Name,
		Verdict:     verdict,
	})
}
