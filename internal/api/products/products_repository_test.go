package products

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "brand", "description", "ingredients_text", "metadata"})
}

func TestRepository_SemanticMatch(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool, testLogger())
	productID := uuid.New()

	mockPool.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mockPool.ExpectQuery("SELECT id, name, brand, description, ingredients_text, metadata").
		WithArgs("[0.500000,0.250000]", 5).
		WillReturnRows(productRows().AddRow(
			productID, "Retinol Serum", "Lab", "A night serum", "Retinol, Squalane",
			map[string]string{"skin_type": "oily"},
		))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	results, err := repo.SemanticMatch(context.Background(), []float32{0.5, 0.25}, nil, 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, productID, results[0].ID)
	assert.Equal(t, "Retinol Serum", results[0].Name)
	assert.Equal(t, []string{"Retinol", "Squalane"}, results[0].Ingredients)
	assert.Equal(t, "oily", results[0].Metadata["skin_type"])
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_SemanticMatch_QueryFailureRollsBack(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool, testLogger())

	mockPool.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mockPool.ExpectQuery("SELECT id, name, brand").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New(`type "vector" does not exist`))
	mockPool.ExpectRollback()

	_, err = repo.SemanticMatch(context.Background(), []float32{0.1}, nil, 5)

	require.Error(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_KeywordMatch_AppliesFilters(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool, testLogger())

	mockPool.ExpectQuery("name ILIKE \\$1 OR brand ILIKE \\$1 OR description ILIKE \\$1").
		WithArgs("%toner%", "skin_type", "dry", 3).
		WillReturnRows(productRows().AddRow(
			uuid.New(), "Hydrating Toner", "Lab", "clinical trial tested", "Water, Glycerin",
			map[string]string{"skin_type": "dry"},
		))

	results, err := repo.KeywordMatch(context.Background(), "toner", map[string]string{"skin_type": "dry"}, 3)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Hydrating Toner", results[0].Name)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_GetProductByName_NotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool, testLogger())

	mockPool.ExpectQuery("WHERE name ILIKE \\$1 LIMIT 1").
		WithArgs("%Ghost Cream%").
		WillReturnRows(productRows())

	product, err := repo.GetProductByName(context.Background(), "Ghost Cream")

	require.NoError(t, err)
	assert.Nil(t, product)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_UpdateProductEmbedding(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool, testLogger())
	productID := uuid.New().String()

	t.Run("updates existing product", func(t *testing.T) {
		mockPool.ExpectExec("UPDATE products SET embedding").
			WithArgs("[1.000000]", productID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateProductEmbedding(context.Background(), productID, []float32{1})
		require.NoError(t, err)
	})

	t.Run("missing product surfaces error", func(t *testing.T) {
		mockPool.ExpectExec("UPDATE products SET embedding").
			WithArgs("[1.000000]", productID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateProductEmbedding(context.Background(), productID, []float32{1})
		require.Error(t, err)
	})

	require.NoError(t, mockPool.ExpectationsWereMet())
}
