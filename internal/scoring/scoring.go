// Package scoring turns a free-text answer into a bounded relevancy score with
// qualitative feedback.
package scoring

import (
	"context"
	"fmt"

	"github.com/spigell/interviewer/internal/ai"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Input is everything a strategy may use to score one answer.
type Input struct {
	ai.Posting
	Question string
	Answer   string
}

// Result is the shared output contract of every strategy.
type Result struct {
	RelevancyScore  int      `json:"relevancy_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	ImprovementTips []string `json:"improvement_tips"`
	Justification   string   `json:"justification"`
}

type Scorer interface {
	Name() string
	Score(ctx context.Context, in Input) (*Result, error)
}

// Judgment delegates scoring to an external evaluation gateway.
type Judgment struct {
	judge ai.Judge
}

func NewJudgment(judge ai.Judge) *Judgment {
	return &Judgment{judge: judge}
}

func (j *Judgment) Name() string { return "judgment" }

func (j *Judgment) Score(ctx context.Context, in Input) (*Result, error) {
	if j.judge == nil {
		return nil, fmt.Errorf("evaluation gateway is not configured")
	}

	judgment, err := j.judge.Judge(ctx, ai.JudgeRequest{
		Posting:  in.Posting,
		Question: in.Question,
		Answer:   in.Answer,
	})
	if err != nil {
		return nil, err
	}
	if judgment == nil {
		return nil, fmt.Errorf("%w: empty judgment", ai.ErrMalformedResponse)
	}
	if judgment.RelevancyScore < MinScore || judgment.RelevancyScore > MaxScore {
		return nil, fmt.Errorf("%w: relevancy_score %d is outside [%d, %d]",
			ai.ErrMalformedResponse, judgment.RelevancyScore, MinScore, MaxScore)
	}

	return &Result{
		RelevancyScore:  judgment.RelevancyScore,
		Strengths:       orEmpty(judgment.Strengths),
		Weaknesses:      orEmpty(judgment.Weaknesses),
		ImprovementTips: orEmpty(judgment.ImprovementTips),
		Justification:   judgment.Justification,
	}, nil
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
