package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/utils"
)

type textGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	GenerateJSON(ctx context.Context, system, message string) (string, error)
}

//go:embed prompts/questions.md
var questionsPrompt string

//go:embed prompts/followup.md
var followupPrompt string

//go:embed prompts/answer.md
var answerPrompt string

//go:embed prompts/evaluation.md
var evaluationPrompt string

const defaultMaxLogLength = 200

// Interviewer implements the question, follow-up, answer and evaluation
// gateways on top of a Gemini generator.
type Interviewer struct {
	generator textGenerator
	logger    *zap.Logger
	maxLogLen int
}

var (
	_ ai.QuestionGenerator = (*Interviewer)(nil)
	_ ai.FollowupGenerator = (*Interviewer)(nil)
	_ ai.AnswerGenerator   = (*Interviewer)(nil)
	_ ai.Judge             = (*Interviewer)(nil)
)

func NewInterviewer(generator textGenerator, log *zap.Logger, maxLogLength int) *Interviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Interviewer{generator: generator, logger: log, maxLogLen: maxLogLength}
}

func (i *Interviewer) GenerateQuestions(ctx context.Context, posting ai.Posting) ([]ai.Question, error) {
	raw, err := i.call(ctx, "questions", true, questionsPrompt, map[string]any{
		"job_title":       posting.JobTitle,
		"job_description": posting.JobDescription,
		"resume":          posting.ResumeText,
		"instruction":     "Analyze both the job title and job description together to identify relevant role dimensions, then generate 1-3 behavioral questions for each dimension.",
	})
	if err != nil {
		return nil, err
	}

	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}
	i.logger.Debug("questions generated", zap.Int("count", len(questions)))
	return questions, nil
}

func (i *Interviewer) GenerateFollowup(ctx context.Context, req ai.FollowupRequest) (*ai.Question, error) {
	raw, err := i.call(ctx, "followup", true, followupPrompt, map[string]any{
		"conversation_so_far": formatHistory(req.History),
		"last_question":       req.OriginalQuestion,
		"candidate_answer":    req.CandidateAnswer,
		"followup_number":     req.FollowupNumber,
		"instruction":         "Generate ONE follow-up question based specifically on what the candidate just said.",
	})
	if err != nil {
		return nil, err
	}
	return parseFollowup(raw)
}

func (i *Interviewer) GenerateAnswer(ctx context.Context, posting ai.Posting, question string) (string, error) {
	raw, err := i.call(ctx, "answer", false, answerPrompt, map[string]any{
		"question":        question,
		"job_title":       posting.JobTitle,
		"job_description": posting.JobDescription,
		"resume":          posting.ResumeText,
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", ai.ErrMalformedResponse)
	}
	return answer, nil
}

func (i *Interviewer) Judge(ctx context.Context, req ai.JudgeRequest) (*ai.Judgment, error) {
	raw, err := i.call(ctx, "evaluation", true, evaluationPrompt, map[string]any{
		"question":        req.Question,
		"answer":          req.Answer,
		"job_title":       req.JobTitle,
		"job_description": req.JobDescription,
		"resume":          req.ResumeText,
	})
	if err != nil {
		return nil, err
	}
	return parseJudgment(raw)
}

func (i *Interviewer) call(ctx context.Context, kind string, asJSON bool, system string, payload map[string]any) (string, error) {
	message, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	i.logger.Debug("gemini generate content request",
		zap.String("kind", kind),
		zap.Int("prompt_length", utf8.RuneCount(message)),
		zap.String("prompt_preview", utils.TruncateForLog(string(message), i.maxLogLen)),
	)

	var raw string
	if asJSON {
		raw, err = i.generator.GenerateJSON(ctx, system, string(message))
	} else {
		raw, err = i.generator.GenerateContent(ctx, system, string(message))
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", kind, err)
	}

	i.logger.Debug("gemini generate content response",
		zap.String("kind", kind),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, i.maxLogLen)),
	)
	return raw, nil
}

func formatHistory(history []ai.Exchange) string {
	var b strings.Builder
	for n, turn := range history {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", n+1, turn.Question, n+1, turn.Answer)
	}
	return b.String()
}
