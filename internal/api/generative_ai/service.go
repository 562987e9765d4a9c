package generativeAI

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
)

// LanguageModel is the synthesis boundary contract. The orchestrator works
// against any implementation that honors it, including the deterministic stub
// used in tests.
type LanguageModel interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (iter.Seq2[string, error], error)
}

// Embedder produces query embeddings for the semantic retrieval tier.
type Embedder interface {
	GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error)
}

// AIClient wraps the Gemini API for both generation and embeddings.
type AIClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	logger         *slog.Logger
}

var _ LanguageModel = (*AIClient)(nil)
var _ Embedder = (*AIClient)(nil)

// NewAIClient builds a client from GOOGLE_GEMINI_API_KEY. Model names may be
// empty, in which case the defaults apply.
func NewAIClient(ctx context.Context, model, embeddingModel string, logger *slog.Logger) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &AIClient{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		logger:         logger,
	}, nil
}

// Invoke sends a single prompt and returns the full response text.
func (ai *AIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Invoke", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	span.SetStatus(codes.Ok, "Content generated")
	return result.Text(), nil
}

// Stream initiates a streaming generation and yields text deltas.
func (ai *AIClient) Stream(ctx context.Context, prompt string) (iter.Seq2[string, error], error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Stream", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	chat, err := ai.client.Chats.Create(ctx, ai.model, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create chat for stream")
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	inner := chat.SendMessageStream(ctx, genai.Part{Text: prompt})
	span.SetStatus(codes.Ok, "Content stream initiated")

	return func(yield func(string, error) bool) {
		for resp, err := range inner {
			if err != nil {
				yield("", err)
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}, nil
}

// GenerateQueryEmbedding embeds a search query for similarity ranking.
func (ai *AIClient) GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateQueryEmbedding", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
		attribute.String("model", ai.embeddingModel),
	))
	defer span.End()

	resp, err := ai.client.Models.EmbedContent(ctx, ai.embeddingModel, genai.Text(text), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding failed")
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		err := fmt.Errorf("embedding response contained no values")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty embedding")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Embedding generated")
	return resp.Embeddings[0].Values, nil
}
