package products

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skinsage/skinsage/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the product catalog boundary. Both match methods return rows
// with at least name, brand, description and the parsed ingredient list.
type Repository interface {
	// SemanticMatch ranks the catalog by cosine similarity against the query
	// embedding, constrained by exact-match metadata filters. May fail (no
	// embeddings, bad vector, connection loss); callers must catch and fall
	// back.
	SemanticMatch(ctx context.Context, queryEmbedding []float32, filters map[string]string, limit int) ([]types.Product, error)
	// KeywordMatch matches text case-insensitively as a substring of name,
	// brand or description.
	KeywordMatch(ctx context.Context, text string, filters map[string]string, limit int) ([]types.Product, error)
	GetProductByName(ctx context.Context, name string) (*types.Product, error)

	// Embedding backfill support.
	GetProductsWithoutEmbeddings(ctx context.Context, limit int) ([]types.Product, error)
	UpdateProductEmbedding(ctx context.Context, productID string, embedding []float32) error
}

// PGXPool is the slice of pgxpool.Pool the repository uses. Narrowed to an
// interface so tests can substitute a mock pool.
type PGXPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ PGXPool = (*pgxpool.Pool)(nil)

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewRepository(pgpool PGXPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

const productColumns = `id, name, brand, description, ingredients_text, metadata`

// formatEmbedding renders a []float32 in pgvector literal form.
func formatEmbedding(embedding []float32) string {
	strs := make([]string, len(embedding))
	for i, v := range embedding {
		strs[i] = fmt.Sprintf("%f", v)
	}
	return fmt.Sprintf("[%s]", strings.Join(strs, ","))
}

// filterClauses appends one JSONB containment predicate per metadata filter.
func filterClauses(filters map[string]string, args []interface{}) (string, []interface{}) {
	var sb strings.Builder
	for key, value := range filters {
		args = append(args, key, value)
		fmt.Fprintf(&sb, " AND metadata->>$%d = $%d", len(args)-1, len(args))
	}
	return sb.String(), args
}

func scanProducts(rows pgx.Rows) ([]types.Product, error) {
	var out []types.Product
	for rows.Next() {
		var p types.Product
		var brand, description, ingredientsText sql.NullString
		var metadata map[string]string
		if err := rows.Scan(&p.ID, &p.Name, &brand, &description, &ingredientsText, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		p.Brand = brand.String
		p.Description = description.String
		p.Metadata = metadata
		if ingredientsText.Valid && ingredientsText.String != "" {
			for _, ing := range strings.Split(ingredientsText.String, ",") {
				if trimmed := strings.TrimSpace(ing); trimmed != "" {
					p.Ingredients = append(p.Ingredients, trimmed)
				}
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return out, nil
}

// SemanticMatch runs inside a transaction so that a failed vector query is
// rolled back cleanly before the keyword tier reuses the connection.
func (r *RepositoryImpl) SemanticMatch(ctx context.Context, queryEmbedding []float32, filters map[string]string, limit int) ([]types.Product, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "SemanticMatch", trace.WithAttributes(
		attribute.Int("embedding.dimension", len(queryEmbedding)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SemanticMatch"))

	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to begin transaction")
		return nil, fmt.Errorf("failed to begin semantic search transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	args := []interface{}{formatEmbedding(queryEmbedding)}
	where, args := filterClauses(filters, args)
	args = append(args, limit)

	query := fmt.Sprintf(`
        SELECT %s
        FROM products
        WHERE embedding IS NOT NULL%s
        ORDER BY embedding <=> $1::vector
        LIMIT $%d
    `, productColumns, where, len(args))

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		l.WarnContext(ctx, "Semantic search query failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to run semantic search: %w", err)
	}
	defer rows.Close()

	results, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit semantic search transaction: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "Semantic match complete")
	return results, nil
}

func (r *RepositoryImpl) KeywordMatch(ctx context.Context, text string, filters map[string]string, limit int) ([]types.Product, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "KeywordMatch", trace.WithAttributes(
		attribute.String("query.text", text),
		attribute.Int("limit", limit),
	))
	defer span.End()

	args := []interface{}{"%" + text + "%"}
	where, args := filterClauses(filters, args)
	args = append(args, limit)

	query := fmt.Sprintf(`
        SELECT %s
        FROM products
        WHERE (name ILIKE $1 OR brand ILIKE $1 OR description ILIKE $1)%s
        ORDER BY name
        LIMIT $%d
    `, productColumns, where, len(args))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Keyword search query failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	results, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "Keyword match complete")
	return results, nil
}

func (r *RepositoryImpl) GetProductByName(ctx context.Context, name string) (*types.Product, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetProductByName")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM products WHERE name ILIKE $1 LIMIT 1`, productColumns)
	rows, err := r.pgpool.Query(ctx, query, "%"+name+"%")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to look up product by name: %w", err)
	}
	defer rows.Close()

	results, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(results) == 0 {
		span.SetStatus(codes.Ok, "No product found")
		return nil, nil
	}
	span.SetStatus(codes.Ok, "Product found")
	return &results[0], nil
}

func (r *RepositoryImpl) GetProductsWithoutEmbeddings(ctx context.Context, limit int) ([]types.Product, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetProductsWithoutEmbeddings", trace.WithAttributes(
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM products WHERE embedding IS NULL ORDER BY created_at LIMIT $1`, productColumns)
	rows, err := r.pgpool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to list products without embeddings: %w", err)
	}
	defer rows.Close()

	results, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "Products listed")
	return results, nil
}

func (r *RepositoryImpl) UpdateProductEmbedding(ctx context.Context, productID string, embedding []float32) error {
	ctx, span := otel.Tracer("Repository").Start(ctx, "UpdateProductEmbedding", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("embedding.dimension", len(embedding)),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE products SET embedding = $1::vector, updated_at = now() WHERE id = $2`,
		formatEmbedding(embedding), productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return fmt.Errorf("failed to update product embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no product with id %s", productID)
	}
	span.SetStatus(codes.Ok, "Embedding updated")
	return nil
}
