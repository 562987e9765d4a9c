package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skinsage/skinsage/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the profile/inventory store boundary. Reads only; the CRUD
// surface that writes these tables lives outside this service.
type Repository interface {
	// GetProfile returns nil (not an error) when the user has no profile yet.
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
	GetActiveInventory(ctx context.Context, userID uuid.UUID) ([]types.InventoryItem, error)
	// GetRecentJournal returns the newest journal notes first.
	GetRecentJournal(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewRepository(pgpool *pgxpool.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

func (r *RepositoryImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT user_id, name, skin_type, concerns
        FROM user_profiles
        WHERE user_id = $1
    `
	var profile types.UserProfile
	var name, skinType, concerns sql.NullString
	err := r.pgpool.QueryRow(ctx, query, userID).Scan(&profile.UserID, &name, &skinType, &concerns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "No profile")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	profile.Name = name.String
	profile.SkinType = skinType.String
	profile.Concerns = concerns.String

	span.SetStatus(codes.Ok, "Profile fetched")
	return &profile, nil
}

func (r *RepositoryImpl) GetActiveInventory(ctx context.Context, userID uuid.UUID) ([]types.InventoryItem, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetActiveInventory", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT id, product_name, brand, category, notes, created_at
        FROM user_products
        WHERE user_id = $1 AND status = 'active'
        ORDER BY created_at
    `
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query active inventory", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to fetch active inventory: %w", err)
	}
	defer rows.Close()

	var items []types.InventoryItem
	for rows.Next() {
		var item types.InventoryItem
		var brand, category, notes sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &brand, &category, &notes, &item.AddedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		item.Brand = brand.String
		item.Category = category.String
		item.IngredientAnnotation = notes.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating inventory rows: %w", err)
	}

	span.SetAttributes(attribute.Int("items.count", len(items)))
	span.SetStatus(codes.Ok, "Inventory fetched")
	return items, nil
}

func (r *RepositoryImpl) GetRecentJournal(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	ctx, span := otel.Tracer("Repository").Start(ctx, "GetRecentJournal", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := `
        SELECT note
        FROM journal_entries
        WHERE user_id = $1
        ORDER BY logged_at DESC
        LIMIT $2
    `
	rows, err := r.pgpool.Query(ctx, query, userID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to fetch journal entries: %w", err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}

	span.SetAttributes(attribute.Int("notes.count", len(notes)))
	span.SetStatus(codes.Ok, "Journal fetched")
	return notes, nil
}
