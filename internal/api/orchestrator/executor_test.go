package orchestrator

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skinsage/skinsage/internal/api/safety"
	"github.com/skinsage/skinsage/internal/types"
)

// --- Mocks for Dependencies ---

type MockAssembler struct {
	mock.Mock
}

func (m *MockAssembler) Assemble(ctx context.Context, userID uuid.UUID) (types.UserContext, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.UserContext), args.Error(1)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Search(ctx context.Context, queryText string, filters map[string]string, limit int) []types.Product {
	args := m.Called(ctx, queryText, filters, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]types.Product)
}

type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Locate(ctx context.Context, query, location string) []types.StoreResult {
	args := m.Called(ctx, query, location)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]types.StoreResult)
}

type MockLanguageModel struct {
	mock.Mock
}

func (m *MockLanguageModel) Invoke(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockLanguageModel) Stream(ctx context.Context, prompt string) (iter.Seq2[string, error], error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(iter.Seq2[string, error]), args.Error(1)
}

func deltaSeq(deltas ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, d := range deltas {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type executorFixture struct {
	executor  *Executor
	assembler *MockAssembler
	retriever *MockRetriever
	locator   *MockLocator
	llm       *MockLanguageModel
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	assembler := new(MockAssembler)
	retriever := new(MockRetriever)
	locator := new(MockLocator)
	llm := new(MockLanguageModel)

	logger := testLogger()
	gate := safety.NewGate(safety.NewEngine(safety.ConflictRules), nil, logger)
	synth := NewSynthesizer(llm, logger)

	return &executorFixture{
		executor:  NewExecutor(assembler, retriever, gate, locator, synth, nil, logger),
		assembler: assembler,
		retriever: retriever,
		locator:   locator,
		llm:       llm,
	}
}

func userContextWithShelf(userID uuid.UUID, shelf ...string) types.UserContext {
	return types.UserContext{
		UserID:           userID,
		SkinType:         "oily",
		ShelfIngredients: shelf,
	}
}

func TestRun_SafePathSynthesizes(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	candidates := []types.Product{{ID: uuid.New(), Name: "Gentle Cleanser", Ingredients: []string{"Water", "Glycerin"}}}

	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID, "Squalane"), nil).Once()
	f.retriever.On("Search", mock.Anything, "recommend a gentle cleanser", map[string]string{"skin_type": "oily"}, 5).Return(candidates, nil).Once()
	f.llm.On("Invoke", mock.Anything, mock.AnythingOfType("string")).Return("Try the Gentle Cleanser.", nil).Once()

	state, err := f.executor.Run(ctx, Request{Query: "recommend a gentle cleanser", UserID: userID})

	require.NoError(t, err)
	assert.False(t, state.SafetyVerdict.Blocked)
	assert.Equal(t, "Try the Gentle Cleanser.", state.FinalText)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "assistant", state.Messages[0].Role)
	f.locator.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything, mock.Anything)
	f.llm.AssertExpectations(t)
}

func TestRun_BlockedPathSkipsModel(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	candidates := []types.Product{{ID: uuid.New(), Name: "Retinol Serum", Ingredients: []string{"Retinol"}}}

	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID, "Glycolic Acid"), nil).Once()
	f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil).Once()

	state, err := f.executor.Run(ctx, Request{Query: "where can I buy a retinol serum", UserID: userID})

	require.NoError(t, err)
	assert.True(t, state.SafetyVerdict.Blocked)
	assert.Contains(t, state.FinalText, "SAFETY ALERT")
	assert.Contains(t, state.FinalText, "RETINOL")
	// Purchase intent in the query must not reach the store path when blocked.
	f.locator.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything, mock.Anything)
	f.llm.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
	f.llm.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestRun_StorePathLocatesThenSynthesizes(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	candidates := []types.Product{{ID: uuid.New(), Name: "CeraVe Cleanser", Ingredients: []string{"Ceramide NP"}}}
	storeHits := []types.StoreResult{{Name: "Downtown Pharmacy", Address: "1 Main St"}}

	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID), nil).Once()
	f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil).Once()
	f.locator.On("Locate", mock.Anything, "CeraVe Cleanser skincare store", "Berlin").Return(storeHits, nil).Once()
	f.llm.On("Invoke", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Downtown Pharmacy")
	})).Return("You can buy it at Downtown Pharmacy.", nil).Once()

	state, err := f.executor.Run(ctx, Request{
		Query:        "where can I buy a ceramide cleanser",
		UserID:       userID,
		LocationHint: "Berlin",
	})

	require.NoError(t, err)
	assert.Equal(t, storeHits, state.StoreResults)
	assert.Equal(t, "You can buy it at Downtown Pharmacy.", state.FinalText)
	f.locator.AssertExpectations(t)
	f.llm.AssertExpectations(t)
}

func TestRun_RetrievalFailureDegradesToEmpty(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID), nil).Once()
	f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()

	state, err := f.executor.Run(ctx, Request{Query: "recommend something", UserID: userID})

	require.NoError(t, err)
	assert.Empty(t, state.Candidates)
	assert.False(t, state.SafetyVerdict.Blocked)
	// No candidates means the canned no-results answer, no model call.
	assert.Contains(t, state.FinalText, "couldn't find any products")
	f.llm.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestRun_ContextAssemblyFailureAborts(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.assembler.On("Assemble", mock.Anything, userID).Return(types.UserContext{}, errors.New("db down")).Once()

	_, err := f.executor.Run(ctx, Request{Query: "anything", UserID: userID})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "context assembly failed")
	f.retriever.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_MissingUserIdentityRejected(t *testing.T) {
	f := newExecutorFixture(t)

	_, err := f.executor.Run(context.Background(), Request{Query: "anything"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing user identity")
	f.assembler.AssertNotCalled(t, "Assemble", mock.Anything, mock.Anything)
}

func TestRunStream_EventOrdering(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	candidates := []types.Product{{ID: uuid.New(), Name: "Gentle Cleanser", Ingredients: []string{"Water"}}}

	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID), nil).Once()
	f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil).Once()
	f.llm.On("Stream", mock.Anything, mock.AnythingOfType("string")).Return(deltaSeq("Try ", "this."), nil).Once()

	resp := f.executor.RunStream(ctx, Request{Query: "recommend a cleanser", UserID: userID})
	defer resp.Cancel()

	var eventTypes []string
	var textParts []string
	for event := range resp.Stream {
		eventTypes = append(eventTypes, event.Type)
		if event.Type == types.EventTypeText {
			textParts = append(textParts, event.Data.(string))
		}
		assert.NotEmpty(t, event.EventID)
		assert.False(t, event.Timestamp.IsZero())
	}

	assert.Equal(t, []string{
		types.EventTypeStart,
		types.EventTypeProducts,
		types.EventTypeSafetyAlert,
		types.EventTypeText,
		types.EventTypeText,
		types.EventTypeComplete,
	}, eventTypes)
	assert.Equal(t, "Try this.", strings.Join(textParts, ""))
}

func TestRunStream_BlockedSurfacesEarly(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	candidates := []types.Product{{ID: uuid.New(), Name: "Retinol Serum", Ingredients: []string{"Retinol"}}}

	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID, "Glycolic Acid"), nil).Once()
	f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil).Once()

	resp := f.executor.RunStream(ctx, Request{Query: "recommend a retinol", UserID: userID})
	defer resp.Cancel()

	var events []types.StreamEvent
	for event := range resp.Stream {
		events = append(events, event)
	}

	require.GreaterOrEqual(t, len(events), 4)
	var alert *types.StreamEvent
	var finalText *types.StreamEvent
	for i := range events {
		switch events[i].Type {
		case types.EventTypeSafetyAlert:
			alert = &events[i]
		case types.EventTypeText:
			finalText = &events[i]
		}
	}
	require.NotNil(t, alert)
	payload := alert.Data.(types.SafetyAlertPayload)
	assert.Equal(t, types.SeverityCritical, payload.Severity)
	require.NotNil(t, finalText)
	assert.True(t, finalText.IsFinal)
	assert.Contains(t, finalText.Data.(string), "SAFETY ALERT")
	f.llm.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestRunStream_CancelBeforeSynthesisSkipsModel(t *testing.T) {
	f := newExecutorFixture(t)
	userID := uuid.New()

	candidates := []types.Product{{ID: uuid.New(), Name: "Gentle Cleanser", Ingredients: []string{"Water"}}}

	ctx, cancel := context.WithCancel(context.Background())
	f.assembler.On("Assemble", mock.Anything, userID).Return(userContextWithShelf(userID), nil).Once()
	f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return(candidates, nil).Once()

	resp := f.executor.RunStream(ctx, Request{Query: "recommend a cleanser", UserID: userID})
	defer resp.Cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, open := <-resp.Stream:
			if !open {
				f.llm.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
				f.llm.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestRun_PanicsWhenBlockedReachesRecommendationStage(t *testing.T) {
	state := &types.SessionState{
		SafetyVerdict: types.SafetyVerdict{
			OverallSeverity: types.SeverityCritical,
			Blocked:         true,
		},
	}
	assert.Panics(t, func() { assertNotBlocked(state, StageSynth) })
	assert.NotPanics(t, func() {
		assertNotBlocked(&types.SessionState{}, StageSynth)
	})
}

func TestDispatch_CheckIngredient(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	t.Run("allergen present", func(t *testing.T) {
		out, err := f.executor.Dispatch(ctx, CommandCheckIngredient, CommandInput{
			Ingredients: []string{"Water", "Cocamidopropyl Betaine"},
			Allergen:    "betaine",
		})
		require.NoError(t, err)
		assert.Equal(t, "WARNING: Contains betaine!", out.Verdict)
	})

	t.Run("allergen absent", func(t *testing.T) {
		out, err := f.executor.Dispatch(ctx, CommandCheckIngredient, CommandInput{
			Ingredients: []string{"Water"},
			Allergen:    "fragrance",
		})
		require.NoError(t, err)
		assert.Equal(t, "Safe.", out.Verdict)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := f.executor.Dispatch(ctx, Command(99), CommandInput{})
		require.Error(t, err)
	})
}
