package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interviewer/internal/logger"
)

type embedModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder returns one vector per input text using the embedding model.
type Embedder struct {
	models embedModels
	model  string
	logger *zap.Logger
}

func NewEmbedder(client *genai.Client, model string, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{
		models: client.Models,
		model:  model,
		logger: logger.WithCommonFields(log, Provider, model),
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embed content: expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, emb.Values)
	}

	e.logger.Debug("gemini embeddings", zap.Int("texts", len(texts)), zap.Int("dimensions", len(vectors[0])))
	return vectors, nil
}
