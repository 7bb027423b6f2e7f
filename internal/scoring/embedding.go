package scoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/requirements"
)

// Embedding scores an answer by its semantic distance to the question enriched
// with the posting's requirements.
type Embedding struct {
	embedder  ai.Embedder
	extractor *requirements.Extractor
	logger    *zap.Logger
}

func NewEmbedding(embedder ai.Embedder, extractor *requirements.Extractor, log *zap.Logger) *Embedding {
	if extractor == nil {
		extractor = requirements.Default()
	}
	return &Embedding{embedder: embedder, extractor: extractor, logger: logger.OrNop(log)}
}

func (e *Embedding) Name() string { return "embedding" }

func (e *Embedding) Score(ctx context.Context, in Input) (*Result, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}

	reqs := e.extractor.Extract(in.JobTitle, in.JobDescription)
	target := ComparisonText(in.Question, reqs)

	vectors, err := e.embedder.Embed(ctx, in.Answer, target)
	if err != nil {
		return nil, fmt.Errorf("embed answer and requirements: %w", err)
	}
	if len(vectors) != 2 {
		return nil, fmt.Errorf("%w: expected 2 embeddings, got %d", ai.ErrMalformedResponse, len(vectors))
	}

	score := MinScore
	similarity := 0.0
	if IsZero(vectors[0]) || IsZero(vectors[1]) {
		e.logger.Warn("zero magnitude embedding, scoring as unrelated")
	} else {
		similarity = Cosine(vectors[0], vectors[1])
		score = Rescale(similarity)
	}

	e.logger.Debug("embedding similarity",
		zap.Float64("similarity", similarity),
		zap.Int("score", score),
		zap.Strings("skills", reqs.Skills),
		zap.Int("responsibilities", len(reqs.Responsibilities)),
	)

	result := Feedback(score)
	result.Justification = fmt.Sprintf("Cosine similarity %.3f between the answer and the question with job requirements.", similarity)
	return result, nil
}

// ComparisonText is the reference text an answer is embedded against.
func ComparisonText(question string, reqs requirements.Requirements) string {
	var b strings.Builder
	b.WriteString("Interview Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nJob Requirements:\nSkills: ")
	b.WriteString(strings.Join(reqs.Skills, ", "))
	b.WriteString("\nResponsibilities: ")
	b.WriteString(strings.Join(reqs.Responsibilities, " | "))
	b.WriteString("\n")
	return b.String()
}
