package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/skinsage/skinsage/app/middleware"
	"github.com/skinsage/skinsage/app/observability/metrics"
	"github.com/skinsage/skinsage/internal/api"
	"github.com/skinsage/skinsage/internal/api/orchestrator"
	"github.com/skinsage/skinsage/internal/types"
)

// Handler exposes the recommendation pipeline over HTTP, in batch and
// streaming (SSE) form.
type Handler interface {
	RecommendHandler(w http.ResponseWriter, r *http.Request)
	RecommendStreamHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	executor *orchestrator.Executor
	logger   *slog.Logger
}

var _ Handler = (*HandlerImpl)(nil)

func NewHandler(executor *orchestrator.Executor, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{executor: executor, logger: logger}
}

type recommendRequest struct {
	Query        string `json:"query"`
	LocationHint string `json:"location_hint,omitempty"`
}

type recommendResponse struct {
	SessionID string              `json:"session_id"`
	Response  string              `json:"response"`
	Blocked   bool                `json:"blocked"`
	Severity  string              `json:"severity"`
	Conflicts []types.Conflict    `json:"conflicts,omitempty"`
	Products  []types.Product     `json:"products,omitempty"`
	Stores    []types.StoreResult `json:"stores,omitempty"`
}

func (h *HandlerImpl) parseRequest(w http.ResponseWriter, r *http.Request, span trace.Span) (orchestrator.Request, bool) {
	ctx := r.Context()

	var body recommendRequest
	if err := api.DecodeJSONBody(w, r, &body); err != nil {
		h.logger.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return orchestrator.Request{}, false
	}
	if body.Query == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "query cannot be empty")
		return orchestrator.Request{}, false
	}

	userIDStr, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "user not authenticated")
		return orchestrator.Request{}, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.ErrorContext(ctx, "Invalid user ID in token", slog.String("userID", userIDStr))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusUnauthorized, "invalid user identity")
		return orchestrator.Request{}, false
	}

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("query.length", len(body.Query)),
	)

	return orchestrator.Request{
		Query:        body.Query,
		UserID:       userID,
		LocationHint: body.LocationHint,
	}, true
}

// RecommendHandler runs the full pipeline and returns the final state as
// a single JSON document.
func (h *HandlerImpl) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "RecommendHandler")
	defer span.End()

	metrics.Get().ChatRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", "batch")))

	req, ok := h.parseRequest(w, r, span)
	if !ok {
		return
	}

	state, err := h.executor.Run(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "Pipeline run failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to process request")
		return
	}

	resp := recommendResponse{
		SessionID: state.SessionID.String(),
		Response:  state.FinalText,
		Blocked:   state.SafetyVerdict.Blocked,
		Severity:  string(state.SafetyVerdict.OverallSeverity),
		Conflicts: state.SafetyVerdict.Conflicts,
		Stores:    state.StoreResults,
	}
	if !state.SafetyVerdict.Blocked {
		resp.Products = state.Candidates
	}

	span.SetStatus(codes.Ok, "request processed")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// RecommendStreamHandler runs the pipeline while relaying incremental
// events to the client as Server-Sent Events. The safety verdict is
// pushed the moment it is known; blocked sessions end with a final text
// event carrying the warning instead of a recommendation.
func (h *HandlerImpl) RecommendStreamHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "RecommendStreamHandler")
	defer span.End()

	metrics.Get().ChatRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", "stream")))

	req, ok := h.parseRequest(w, r, span)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.ErrorContext(ctx, "Streaming not supported by response writer")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for some proxies

	streamResp := h.executor.RunStream(ctx, req)
	defer streamResp.Cancel()

	span.SetAttributes(attribute.String("session.id", streamResp.SessionID.String()))

	for {
		select {
		case event, open := <-streamResp.Stream:
			if !open {
				span.SetStatus(codes.Ok, "stream completed")
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.ErrorContext(ctx, "Failed to marshal event", slog.Any("error", err))
				continue
			}

			fmt.Fprintf(w, "id: %s\n", event.EventID)
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

		case <-ctx.Done():
			h.logger.InfoContext(ctx, "Client disconnected",
				slog.String("session_id", streamResp.SessionID.String()))
			return
		}
	}
}
