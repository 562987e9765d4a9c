package products

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/skinsage/skinsage/internal/api/generative_ai"
	"github.com/skinsage/skinsage/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the hybrid retriever: semantic ranking when the embedding
// backend is reachable, keyword and token fallbacks otherwise. Search never
// returns an error for collaborator failures; it degrades tier by tier and
// at worst returns an empty list.
type Service interface {
	Search(ctx context.Context, queryText string, filters map[string]string, limit int) []types.Product
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	embedder generativeAI.Embedder // nil when no semantic backend is configured
	cache    *cache.Cache
}

func NewServiceImpl(repo Repository, embedder generativeAI.Embedder, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		embedder: embedder,
		cache:    cache.New(5*time.Minute, 10*time.Minute),
	}
}

func searchCacheKey(queryText string, filters map[string]string, limit int) string {
	keys := make([]string, 0, len(filters))
	for k, v := range filters {
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)
	return fmt.Sprintf("search:%s|%s|%d", strings.ToLower(queryText), strings.Join(keys, ","), limit)
}

// Search resolves a free-text query plus metadata filters into at most limit
// candidates, relevance-descending.
//
// Tier 1: embed the query and rank by cosine similarity. Any failure in the
// embedding call or the vector query falls through without surfacing.
// Tier 2: case-insensitive substring match on name/brand/description.
// Tier 3: when the semantic tier produced results but fewer than limit,
// top them up with keyword matches not already present, semantic first.
// Tier 4: when neither tier found anything, retry keyword matching per
// whitespace token of at least 3 characters; the first token with any
// result wins.
func (s *ServiceImpl) Search(ctx context.Context, queryText string, filters map[string]string, limit int) []types.Product {
	ctx, span := otel.Tracer("HybridRetriever").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("query.text", queryText),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Search"), slog.String("query", queryText))

	cacheKey := searchCacheKey(queryText, filters, limit)
	if cached, found := s.cache.Get(cacheKey); found {
		if products, ok := cached.([]types.Product); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return products
		}
	}

	var semantic []types.Product
	semanticAvailable := false
	if s.embedder != nil {
		embedding, err := s.embedder.GenerateQueryEmbedding(ctx, queryText)
		if err != nil {
			l.WarnContext(ctx, "Query embedding failed, falling back to keyword search", slog.Any("error", err))
			span.AddEvent("semantic tier aborted: embedding failure")
		} else {
			semantic, err = s.repo.SemanticMatch(ctx, embedding, filters, limit)
			if err != nil {
				l.WarnContext(ctx, "Semantic search failed, falling back to keyword search", slog.Any("error", err))
				span.AddEvent("semantic tier aborted: query failure")
				semantic = nil
			} else {
				semanticAvailable = true
			}
		}
	}

	if len(semantic) >= limit {
		results := s.grade(truncate(semantic, limit))
		s.cache.Set(cacheKey, results, cache.DefaultExpiration)
		span.SetAttributes(attribute.String("tier", "semantic"), attribute.Int("results.count", len(results)))
		span.SetStatus(codes.Ok, "Semantic tier served")
		return results
	}

	keyword, err := s.repo.KeywordMatch(ctx, queryText, filters, limit)
	if err != nil {
		l.ErrorContext(ctx, "Keyword search failed", slog.Any("error", err))
		span.RecordError(err)
		keyword = nil
	}

	// A short but non-empty semantic set keeps its ranking; keyword hits
	// only top it up.
	if semanticAvailable && len(semantic) > 0 {
		results := s.grade(truncate(backfill(semantic, keyword, limit), limit))
		s.cache.Set(cacheKey, results, cache.DefaultExpiration)
		span.SetAttributes(attribute.String("tier", "semantic+keyword"), attribute.Int("results.count", len(results)))
		span.SetStatus(codes.Ok, "Semantic tier served with keyword backfill")
		return results
	}

	if len(keyword) == 0 {
		results := s.grade(s.tokenFallback(ctx, queryText, filters, limit))
		s.cache.Set(cacheKey, results, cache.DefaultExpiration)
		span.SetAttributes(attribute.String("tier", "token"), attribute.Int("results.count", len(results)))
		span.SetStatus(codes.Ok, "Token tier served")
		return results
	}

	results := s.grade(truncate(keyword, limit))
	s.cache.Set(cacheKey, results, cache.DefaultExpiration)
	span.SetAttributes(attribute.String("tier", "keyword"), attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "Keyword tier served")
	return results
}

// tokenFallback retries the keyword match per query token; tokens shorter
// than 3 characters are noise and get skipped.
func (s *ServiceImpl) tokenFallback(ctx context.Context, queryText string, filters map[string]string, limit int) []types.Product {
	for _, token := range strings.Fields(queryText) {
		if len(token) < 3 {
			continue
		}
		results, err := s.repo.KeywordMatch(ctx, token, filters, limit)
		if err != nil {
			s.logger.WarnContext(ctx, "Token fallback query failed", slog.String("token", token), slog.Any("error", err))
			continue
		}
		if len(results) > 0 {
			return truncate(results, limit)
		}
	}
	return nil
}

// backfill appends extra results absent from the primary set, preserving
// primary order, up to limit.
func backfill(primary, extra []types.Product, limit int) []types.Product {
	seen := make(map[string]struct{}, len(primary))
	for _, p := range primary {
		seen[p.ID.String()] = struct{}{}
	}
	for _, p := range extra {
		if len(primary) >= limit {
			break
		}
		if _, dup := seen[p.ID.String()]; dup {
			continue
		}
		primary = append(primary, p)
		seen[p.ID.String()] = struct{}{}
	}
	return primary
}

func truncate(products []types.Product, limit int) []types.Product {
	if limit > 0 && len(products) > limit {
		return products[:limit]
	}
	return products
}

// grade stamps an evidence grade on each candidate: clinical wording in the
// description outranks consensus, review-sourced metadata downgrades to
// anecdotal.
func (s *ServiceImpl) grade(products []types.Product) []types.Product {
	for i := range products {
		if products[i].EvidenceGrade != "" {
			continue
		}
		switch {
		case strings.Contains(strings.ToLower(products[i].Description), "clinical"):
			products[i].EvidenceGrade = types.EvidenceClinical
		case metadataMentionsReviews(products[i].Metadata):
			products[i].EvidenceGrade = types.EvidenceAnecdotal
		default:
			products[i].EvidenceGrade = types.EvidenceConsensus
		}
	}
	return products
}

func metadataMentionsReviews(metadata map[string]string) bool {
	for k, v := range metadata {
		if strings.Contains(strings.ToLower(k), "review") || strings.Contains(strings.ToLower(v), "review") {
			return true
		}
	}
	return false
}
