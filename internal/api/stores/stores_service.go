package stores

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skinsage/skinsage/internal/types"
)

const locateTimeout = 3 * time.Second

// Locator resolves "where can I buy this" against a Places-style text search
// API. Failures of any kind return an empty list, never an error: a missing
// store lookup degrades the answer, it must not break the pipeline.
type Locator interface {
	Locate(ctx context.Context, query, location string) []types.StoreResult
}

var _ Locator = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewServiceImpl reads STORE_LOCATOR_API_KEY from the environment. An empty
// endpoint disables lookups (Locate returns nil).
func NewServiceImpl(endpoint string, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		client:   &http.Client{Timeout: locateTimeout},
		endpoint: endpoint,
		apiKey:   os.Getenv("STORE_LOCATOR_API_KEY"),
	}
}

type placesResponse struct {
	Results []struct {
		Name     string  `json:"name"`
		Address  string  `json:"formatted_address"`
		Distance float64 `json:"distance,omitempty"`
		InStock  bool    `json:"in_stock,omitempty"`
	} `json:"results"`
}

func (s *ServiceImpl) Locate(ctx context.Context, query, location string) []types.StoreResult {
	ctx, span := otel.Tracer("StoreLocator").Start(ctx, "Locate", trace.WithAttributes(
		attribute.String("query", query),
		attribute.String("location", location),
	))
	defer span.End()

	if s.endpoint == "" {
		span.SetStatus(codes.Ok, "Locator not configured")
		return nil
	}

	params := url.Values{}
	params.Set("query", query+" "+location)
	params.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to build store locator request", slog.Any("error", err))
		span.RecordError(err)
		return nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "Store locator request failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.WarnContext(ctx, "Store locator returned non-200", slog.Int("status", resp.StatusCode))
		span.SetStatus(codes.Error, "Non-200 response")
		return nil
	}

	var parsed placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.logger.WarnContext(ctx, "Failed to decode store locator response", slog.Any("error", err))
		span.RecordError(err)
		return nil
	}

	results := make([]types.StoreResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, types.StoreResult{
			Name:     r.Name,
			Address:  r.Address,
			Distance: r.Distance,
			InStock:  r.InStock,
		})
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "Stores located")
	return results
}
