package profiles

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skinsage/skinsage/internal/types"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserProfile), args.Error(1)
}

func (m *MockRepository) GetActiveInventory(ctx context.Context, userID uuid.UUID) ([]types.InventoryItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.InventoryItem), args.Error(1)
}

func (m *MockRepository) GetRecentJournal(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAssemble_FullContext(t *testing.T) {
	repo := new(MockRepository)
	service := NewServiceImpl(repo, testLogger())
	userID := uuid.New()

	repo.On("GetProfile", mock.Anything, userID).Return(&types.UserProfile{
		UserID:   userID,
		SkinType: "sensitive",
		Concerns: "redness, texture",
	}, nil).Once()
	repo.On("GetActiveInventory", mock.Anything, userID).Return([]types.InventoryItem{
		{Name: "Glycolic Toner", IngredientAnnotation: "Ingredients: Glycolic Acid, Water"},
		{Name: "Plain Moisturizer"},
	}, nil).Once()
	repo.On("GetRecentJournal", mock.Anything, userID, recentJournalLimit).
		Return([]string{"cheeks red after new toner"}, nil).Once()

	userCtx, err := service.Assemble(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, "sensitive", userCtx.SkinType)
	assert.Equal(t, "redness, texture", userCtx.Concerns)
	assert.Len(t, userCtx.ActiveInventory, 2)
	assert.Equal(t, []string{"Glycolic Acid", "Water"}, userCtx.ShelfIngredients)
	assert.Equal(t, []string{"Glycolic Toner", "Plain Moisturizer"}, userCtx.InventoryNames())
	assert.Equal(t, []string{"cheeks red after new toner"}, userCtx.JournalNotes)
	repo.AssertExpectations(t)
}

func TestAssemble_MissingProfileDefaults(t *testing.T) {
	repo := new(MockRepository)
	service := NewServiceImpl(repo, testLogger())
	userID := uuid.New()

	repo.On("GetProfile", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("GetActiveInventory", mock.Anything, userID).Return([]types.InventoryItem{}, nil).Once()
	repo.On("GetRecentJournal", mock.Anything, userID, recentJournalLimit).Return([]string{}, nil).Once()

	userCtx, err := service.Assemble(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, "unknown", userCtx.SkinType)
	assert.Empty(t, userCtx.ShelfIngredients)
	assert.NotNil(t, userCtx.BlacklistIngredients)
	repo.AssertExpectations(t)
}

func TestAssemble_RepositoryErrorSurfaces(t *testing.T) {
	repo := new(MockRepository)
	service := NewServiceImpl(repo, testLogger())
	userID := uuid.New()

	repo.On("GetProfile", mock.Anything, userID).Return(nil, errors.New("connection refused")).Once()

	_, err := service.Assemble(context.Background(), userID)

	require.Error(t, err)
	repo.AssertNotCalled(t, "GetActiveInventory", mock.Anything, mock.Anything)
}

func TestAssemble_JournalFailureDegrades(t *testing.T) {
	repo := new(MockRepository)
	service := NewServiceImpl(repo, testLogger())
	userID := uuid.New()

	repo.On("GetProfile", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("GetActiveInventory", mock.Anything, userID).Return([]types.InventoryItem{}, nil).Once()
	repo.On("GetRecentJournal", mock.Anything, userID, recentJournalLimit).
		Return(nil, errors.New("relation missing")).Once()

	userCtx, err := service.Assemble(context.Background(), userID)

	require.NoError(t, err)
	assert.Empty(t, userCtx.JournalNotes)
	repo.AssertExpectations(t)
}

func TestDeriveShelfIngredients(t *testing.T) {
	t.Run("parses annotated items only", func(t *testing.T) {
		out := deriveShelfIngredients([]types.InventoryItem{
			{Name: "Serum", IngredientAnnotation: "Ingredients: Niacinamide, Zinc PCA"},
			{Name: "Mystery", IngredientAnnotation: "smells nice"},
			{Name: "Bare"},
		})
		assert.Equal(t, []string{"Niacinamide", "Zinc PCA"}, out)
	})

	t.Run("dedupes case-insensitively preserving first casing", func(t *testing.T) {
		out := deriveShelfIngredients([]types.InventoryItem{
			{IngredientAnnotation: "Ingredients: Retinol, Squalane"},
			{IngredientAnnotation: "Ingredients: RETINOL, Ceramide NP"},
		})
		assert.Equal(t, []string{"Retinol", "Squalane", "Ceramide NP"}, out)
	})

	t.Run("skips empty entries", func(t *testing.T) {
		out := deriveShelfIngredients([]types.InventoryItem{
			{IngredientAnnotation: "Ingredients: , Water,  , Glycerin,"},
		})
		assert.Equal(t, []string{"Water", "Glycerin"}, out)
	})

	t.Run("empty inventory", func(t *testing.T) {
		assert.Empty(t, deriveShelfIngredients(nil))
	})
}
