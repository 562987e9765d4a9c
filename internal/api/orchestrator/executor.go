package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/skinsage/skinsage/app/observability/metrics"
	"github.com/skinsage/skinsage/internal/api/profiles"
	"github.com/skinsage/skinsage/internal/api/safety"
	"github.com/skinsage/skinsage/internal/api/stores"
	"github.com/skinsage/skinsage/internal/types"
)

const defaultRetrievalLimit = 5

// Stage is one node of the execution state machine.
type Stage int

const (
	StageStart Stage = iota
	StageContext
	StageRetrieve
	StageSafety
	StageBlocked
	StageStore
	StageSynth
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageContext:
		return "context"
	case StageRetrieve:
		return "retrieve"
	case StageSafety:
		return "safety"
	case StageBlocked:
		return "blocked"
	case StageStore:
		return "store"
	case StageSynth:
		return "synth"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Retriever is the slice of the product service the executor needs.
type Retriever interface {
	Search(ctx context.Context, queryText string, filters map[string]string, limit int) []types.Product
}

// Executor drives one request through the pipeline:
//
//	START -> CONTEXT -> RETRIEVE -> SAFETY -> {BLOCKED | STORE -> SYNTH | SYNTH}
//
// Every transition is unconditional except the one leaving SAFETY, which
// Route decides. Stages run sequentially; there is no fan-out across
// candidates so findings aggregate deterministically.
type Executor struct {
	logger    *slog.Logger
	assembler profiles.Service
	retriever Retriever
	gate      *safety.Gate
	locator   stores.Locator
	synth     *Synthesizer
	metrics   *metrics.AppMetrics

	commands       map[Command]commandFunc
	retrievalLimit int
}

func NewExecutor(
	assembler profiles.Service,
	retriever Retriever,
	gate *safety.Gate,
	locator stores.Locator,
	synth *Synthesizer,
	appMetrics *metrics.AppMetrics,
	logger *slog.Logger,
) *Executor {
	e := &Executor{
		logger:         logger,
		assembler:      assembler,
		retriever:      retriever,
		gate:           gate,
		locator:        locator,
		synth:          synth,
		metrics:        appMetrics,
		retrievalLimit: defaultRetrievalLimit,
	}
	e.commands = e.buildCommandTable()
	return e
}

// SetRetrievalLimit overrides how many candidates retrieval asks for.
// Values below 1 are ignored.
func (e *Executor) SetRetrievalLimit(n int) {
	if n >= 1 {
		e.retrievalLimit = n
	}
}

// assertNotBlocked guards the one invariant this system exists to protect.
// Reaching a recommendation stage with a blocked verdict is a programming
// error in the orchestrator, not a recoverable condition.
func assertNotBlocked(state *types.SessionState, stage Stage) {
	if state.SafetyVerdict.Blocked {
		panic(fmt.Sprintf("safety invariant violation: reached stage %s with blocked verdict", stage))
	}
}

func retrievalFilters(userCtx types.UserContext) map[string]string {
	filters := map[string]string{}
	if userCtx.SkinType != "" && userCtx.SkinType != "unknown" {
		filters["skin_type"] = userCtx.SkinType
	}
	return filters
}

func (e *Executor) recordStage(ctx context.Context, stage Stage, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.PipelineStageDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage.String())))
}

// Run executes all stages to completion and returns the final session state.
func (e *Executor) Run(ctx context.Context, req Request) (*types.SessionState, error) {
	return e.run(ctx, req, nil)
}

// run is the shared state-machine loop. When emit is non-nil it is called
// after each stage that changed a user-observable field, before the next
// stage starts; a false return means the consumer is gone and execution
// stops.
func (e *Executor) run(ctx context.Context, req Request, emit func(types.StreamEvent) bool) (*types.SessionState, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user identity")
	}

	ctx, span := otel.Tracer("GraphExecutor").Start(ctx, "Run", trace.WithAttributes(
		attribute.String("user.id", req.UserID.String()),
	))
	defer span.End()

	if e.metrics != nil {
		e.metrics.PipelineRunsTotal.Add(ctx, 1)
	}

	state := newSession(req)
	stage := StageContext

	for stage != StageDone {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "Cancelled")
			return state, err
		}
		stageStart := time.Now()
		current := stage
		span.AddEvent("stage", trace.WithAttributes(attribute.String("stage", current.String())))

		switch stage {
		case StageContext:
			userCtx, err := e.assembler.Assemble(ctx, req.UserID)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "Context assembly failed")
				return state, fmt.Errorf("context assembly failed: %w", err)
			}
			applyUpdate(state, StageUpdate{UserContext: &userCtx})
			stage = StageRetrieve

		case StageRetrieve:
			out, err := e.Dispatch(ctx, CommandRetrieveProducts, CommandInput{
				Query:   state.Query,
				Filters: retrievalFilters(state.UserContext),
				Limit:   e.retrievalLimit,
			})
			if err != nil {
				// Retrieval degrades to an empty candidate list, it never
				// aborts the pipeline.
				e.logger.WarnContext(ctx, "Retrieval failed, continuing with no candidates", slog.Any("error", err))
				out.Products = nil
			}
			applyUpdate(state, StageUpdate{Candidates: out.Products})
			if emit != nil && !emit(types.StreamEvent{
				Type: types.EventTypeProducts,
				Data: state.Candidates,
			}) {
				return state, ctx.Err()
			}
			stage = StageSafety

		case StageSafety:
			verdict := e.gate.Check(ctx, state.Candidates, state.UserContext.ShelfIngredients)
			applyUpdate(state, StageUpdate{SafetyVerdict: &verdict})
			if e.metrics != nil && verdict.Blocked {
				e.metrics.SafetyBlocksTotal.Add(ctx, 1)
			}
			if emit != nil && !emit(types.StreamEvent{
				Type: types.EventTypeSafetyAlert,
				Data: types.SafetyAlertPayload{Severity: verdict.OverallSeverity, Conflicts: verdict.Conflicts},
			}) {
				return state, ctx.Err()
			}

			switch Route(verdict, state.Query) {
			case DecisionBlocked:
				stage = StageBlocked
			case DecisionStore:
				stage = StageStore
			default:
				stage = StageSynth
			}

		case StageBlocked:
			warning := e.synth.RenderWarning(state.SafetyVerdict)
			applyUpdate(state, StageUpdate{
				FinalText: &warning,
				Messages:  []types.SessionMessage{{Role: "assistant", Content: warning}},
			})
			if emit != nil {
				emit(types.StreamEvent{Type: types.EventTypeText, Data: warning, IsFinal: true})
			}
			stage = StageDone

		case StageStore:
			assertNotBlocked(state, stage)
			out, err := e.Dispatch(ctx, CommandLocateStore, CommandInput{
				Query:    storeQuery(state),
				Location: state.LocationHint,
			})
			if err != nil {
				e.logger.WarnContext(ctx, "Store lookup failed, continuing without stores", slog.Any("error", err))
			}
			applyUpdate(state, StageUpdate{StoreResults: out.Stores})
			stage = StageSynth

		case StageSynth:
			assertNotBlocked(state, stage)
			text, err := e.synthesize(ctx, state, emit)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "Synthesis failed")
				return state, err
			}
			applyUpdate(state, StageUpdate{
				FinalText: &text,
				Messages:  []types.SessionMessage{{Role: "assistant", Content: text}},
			})
			stage = StageDone
		}

		e.recordStage(ctx, current, stageStart)
	}

	span.SetStatus(codes.Ok, "Pipeline complete")
	return state, nil
}

// synthesize runs the allowed terminal path. In streaming mode it forwards
// each model delta as a text event; in batch mode it makes one invoke call.
// A cancellation that lands before the model call skips it entirely.
func (e *Executor) synthesize(ctx context.Context, state *types.SessionState, emit func(types.StreamEvent) bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if emit == nil {
		return e.synth.Synthesize(ctx, state)
	}

	seq, err := e.synth.SynthesizeStream(ctx, state)
	if err != nil {
		return "", fmt.Errorf("synthesis stream failed to start: %w", err)
	}
	var full []byte
	for delta, err := range seq {
		if err != nil {
			return "", fmt.Errorf("synthesis stream failed: %w", err)
		}
		full = append(full, delta...)
		if !emit(types.StreamEvent{Type: types.EventTypeText, Data: delta}) {
			break
		}
	}
	return string(full), nil
}

func storeQuery(state *types.SessionState) string {
	if len(state.Candidates) > 0 {
		return state.Candidates[0].Name + " skincare store"
	}
	return state.Query + " skincare store"
}

// StreamingResponse wraps the event channel of one streaming execution.
type StreamingResponse struct {
	SessionID uuid.UUID
	Stream    <-chan types.StreamEvent
	Cancel    context.CancelFunc
}

// sendEvent delivers an event unless the request context is already gone; it
// also gives up on a consumer that stays blocked, so one slow client cannot
// wedge the pipeline.
func (e *Executor) sendEvent(ctx context.Context, ch chan<- types.StreamEvent, event types.StreamEvent) bool {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-ctx.Done():
		e.logger.WarnContext(ctx, "Context cancelled, not sending stream event", slog.String("eventType", event.Type))
		return false
	default:
		select {
		case ch <- event:
			return true
		case <-ctx.Done():
			e.logger.WarnContext(ctx, "Context cancelled while sending stream event", slog.String("eventType", event.Type))
			return false
		case <-time.After(2 * time.Second):
			e.logger.WarnContext(ctx, "Dropped stream event due to slow consumer", slog.String("eventType", event.Type))
			return false
		}
	}
}

// RunStream executes the same stage order as Run but emits an incremental
// event after each stage that changes a user-observable field. A blocked
// verdict surfaces as soon as it is known, not at the end. Cancelling the
// returned Cancel stops further stages; a model call already in flight is
// allowed to finish but nothing runs after it.
func (e *Executor) RunStream(ctx context.Context, req Request) *StreamingResponse {
	ctx, cancel := context.WithCancel(ctx)
	eventCh := make(chan types.StreamEvent, 16)
	sessionID := uuid.New()

	go func() {
		defer close(eventCh)

		e.sendEvent(ctx, eventCh, types.StreamEvent{
			Type: types.EventTypeStart,
			Data: map[string]interface{}{"session_id": sessionID.String()},
		})

		emit := func(event types.StreamEvent) bool {
			return e.sendEvent(ctx, eventCh, event)
		}

		if _, err := e.run(ctx, req, emit); err != nil {
			if ctx.Err() == nil {
				e.sendEvent(ctx, eventCh, types.StreamEvent{
					Type:  types.EventTypeError,
					Error: err.Error(),
				})
			}
			return
		}

		e.sendEvent(ctx, eventCh, types.StreamEvent{Type: types.EventTypeComplete, IsFinal: true})
	}()

	return &StreamingResponse{
		SessionID: sessionID,
		Stream:    eventCh,
		Cancel:    cancel,
	}
}
