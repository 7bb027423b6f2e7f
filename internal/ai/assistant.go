package ai

import (
	"context"
	"errors"
)

// ErrMalformedResponse marks a gateway answer that does not match its contracted shape.
var ErrMalformedResponse = errors.New("malformed gateway response")

// Question is a single interview question as produced by a gateway.
type Question struct {
	ID   string `json:"id" mapstructure:"id"`
	Text string `json:"text" mapstructure:"text"`
}

// Exchange is one question/answer pair of the conversation so far.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Posting bundles the immutable job and candidate context of a session.
type Posting struct {
	JobTitle       string
	JobDescription string
	ResumeText     string
}

// FollowupRequest is the input of the follow-up gateway.
type FollowupRequest struct {
	OriginalQuestion string
	CandidateAnswer  string
	FollowupNumber   int
	History          []Exchange
}

// JudgeRequest is the input of the evaluation gateway.
type JudgeRequest struct {
	Posting
	Question string
	Answer   string
}

// Judgment is a validated evaluation gateway answer.
type Judgment struct {
	RelevancyScore  int
	Strengths       []string
	Weaknesses      []string
	ImprovementTips []string
	Justification   string
}

// QuestionGenerator produces the ordered main questions of a session.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, posting Posting) ([]Question, error)
}

// FollowupGenerator produces one follow-up question. The returned id is advisory.
type FollowupGenerator interface {
	GenerateFollowup(ctx context.Context, req FollowupRequest) (*Question, error)
}

// AnswerGenerator plays the candidate in simulated mode.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, posting Posting, question string) (string, error)
}

// Judge scores an answer through an external model.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (*Judgment, error)
}

// Embedder turns texts into embedding vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}
