// Package interview runs behavioral interview sessions: it asks the generated
// main questions, inserts one follow-up after each eligible main question and
// scores the transcript once the candidate is done.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/report"
	"github.com/spigell/interviewer/internal/scoring"
)

const (
	DefaultMaxQuestions   = 10
	DefaultGatewayTimeout = 60 * time.Second
)

type Config struct {
	MaxQuestions     int
	FollowupEligible []int
	// GatewayTimeout bounds every external call. Zero selects the default, negative disables it.
	GatewayTimeout time.Duration
}

type Deps struct {
	Store     Store
	Questions ai.QuestionGenerator
	Followups ai.FollowupGenerator
	// Answers is only required for simulated candidates.
	Answers ai.AnswerGenerator
	Scorer  scoring.Scorer
	Logger  *zap.Logger
}

type Service struct {
	store     Store
	questions ai.QuestionGenerator
	followups ai.FollowupGenerator
	answers   ai.AnswerGenerator
	scorer    scoring.Scorer
	logger    *zap.Logger

	policy       Policy
	maxQuestions int
	timeout      time.Duration
	locks        *sessionLocks
	now          func() time.Time
	newID        func() string
}

// Step describes what the candidate has to answer next.
type Step struct {
	SessionID         string   `json:"session_id"`
	QuestionNumber    int      `json:"question_number"`
	TotalQuestions    int      `json:"total_questions"`
	Question          Question `json:"question"`
	IsFollowup        bool     `json:"is_followup"`
	InterviewComplete bool     `json:"interview_complete"`
	Message           string   `json:"message"`
}

// FinishResult is the outcome of scoring a session.
type FinishResult struct {
	SessionID   string       `json:"session_id"`
	Evaluations []Evaluation `json:"evaluations"`
	ReportText  string       `json:"report_text"`
	// Partial is set when the interview was finished before every question was answered.
	Partial bool `json:"partial"`
}

func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Questions == nil {
		return nil, errors.New("question generator is required")
	}
	if deps.Followups == nil {
		return nil, errors.New("follow-up generator is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("scorer is required")
	}

	eligible := cfg.FollowupEligible
	if eligible == nil {
		eligible = DefaultFollowupEligible
	}
	maxQuestions := cfg.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	timeout := cfg.GatewayTimeout
	if timeout == 0 {
		timeout = DefaultGatewayTimeout
	}

	return &Service{
		store:        deps.Store,
		questions:    deps.Questions,
		followups:    deps.Followups,
		answers:      deps.Answers,
		scorer:       deps.Scorer,
		logger:       logger.OrNop(deps.Logger),
		policy:       NewPolicy(eligible),
		maxQuestions: maxQuestions,
		timeout:      timeout,
		locks:        newSessionLocks(),
		now:          time.Now,
		newID:        newSessionID,
	}, nil
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CreateSession generates the main questions and persists a new session in
// its initial state. Nothing is persisted on failure.
func (s *Service) CreateSession(ctx context.Context, posting ai.Posting) (*Session, Step, error) {
	if strings.TrimSpace(posting.ResumeText) == "" {
		return nil, Step{}, ErrEmptyResumeText
	}

	callCtx, cancel := s.callContext(ctx)
	generated, err := s.questions.GenerateQuestions(callCtx, posting)
	cancel()
	if err != nil {
		return nil, Step{}, fmt.Errorf("generate questions: %w", err)
	}

	questions := normalizeQuestions(generated, s.maxQuestions)
	if len(questions) == 0 {
		return nil, Step{}, ErrNoQuestionsGenerated
	}

	now := s.now().UTC()
	session := &Session{
		ID:                  s.newID(),
		JobTitle:            posting.JobTitle,
		JobDescription:      posting.JobDescription,
		ResumeText:          posting.ResumeText,
		MainQuestions:       questions,
		State:               AwaitingAnswer(0),
		ConversationHistory: []Turn{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, Step{}, fmt.Errorf("save session: %w", err)
	}

	logger.WithSession(s.logger, session.ID).Info("interview started",
		zap.String("job_title", posting.JobTitle),
		zap.Int("questions", len(questions)),
		zap.Ints("followup_eligible", s.policy.Indices()),
	)

	step := s.step(session)
	step.Message = s.startMessage(len(questions))
	return session, step, nil
}

// Session returns the persisted session.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Current returns the step the session is waiting on.
func (s *Service) Current(ctx context.Context, id string) (Step, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}
	return s.step(session), nil
}

// SubmitAnswer records answer for questionID and moves the session on.
func (s *Service) SubmitAnswer(ctx context.Context, id, questionID, answer string) (Step, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}

	return s.submit(ctx, session, questionID, answer)
}

// SimulateAnswer lets the answer gateway play the candidate for the current
// question and submits the generated answer.
func (s *Service) SimulateAnswer(ctx context.Context, id string) (string, Step, error) {
	if s.answers == nil {
		return "", Step{}, errors.New("answer generator is not configured")
	}

	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return "", Step{}, err
	}

	if session.Finished() {
		return "", Step{}, ErrInterviewFinished
	}
	question, ok := session.CurrentQuestion()
	if !ok {
		return "", Step{}, ErrInterviewComplete
	}

	callCtx, cancel := s.callContext(ctx)
	answer, err := s.answers.GenerateAnswer(callCtx, session.Posting(), question.Text)
	cancel()
	if err != nil {
		return "", Step{}, fmt.Errorf("generate answer: %w", err)
	}

	step, err := s.submit(ctx, session, question.ID, answer)
	if err != nil {
		return "", Step{}, err
	}
	return answer, step, nil
}

func (s *Service) submit(ctx context.Context, session *Session, questionID, answer string) (Step, error) {
	log := logger.WithSession(s.logger, session.ID)

	if session.Finished() {
		return Step{}, ErrInterviewFinished
	}

	t, err := session.Plan(s.policy, questionID, answer)
	if err != nil {
		return Step{}, err
	}

	if !t.KnownQuestion {
		log.Warn("answer submitted for unknown question id, using the id as question text",
			zap.String(logger.FieldQuestion, questionID),
		)
	} else if current, ok := session.CurrentQuestion(); ok && current.ID != questionID {
		log.Warn("answer submitted for a question other than the current one",
			zap.String(logger.FieldQuestion, questionID),
			zap.String("current_question_id", current.ID),
		)
	}

	var followup *Question
	if t.NeedsFollowup {
		main := session.MainQuestions[t.Prev.MainIndex]
		history := append(session.history(), ai.Exchange{Question: t.From.QuestionText, Answer: answer})

		callCtx, cancel := s.callContext(ctx)
		generated, err := s.followups.GenerateFollowup(callCtx, ai.FollowupRequest{
			OriginalQuestion: main.Text,
			CandidateAnswer:  answer,
			FollowupNumber:   session.FollowupCounter + 1,
			History:          history,
		})
		cancel()
		if err != nil {
			return Step{}, fmt.Errorf("generate follow-up: %w", err)
		}
		if generated == nil || strings.TrimSpace(generated.Text) == "" {
			return Step{}, fmt.Errorf("generate follow-up: %w: empty question", ai.ErrMalformedResponse)
		}
		followup = &Question{ID: generated.ID, Text: strings.TrimSpace(generated.Text)}
	}

	if err := session.Apply(t, followup); err != nil {
		return Step{}, err
	}
	session.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, session); err != nil {
		return Step{}, fmt.Errorf("save session: %w", err)
	}

	log.Info("answer recorded",
		zap.String(logger.FieldQuestion, questionID),
		zap.Bool("is_followup", t.From.IsFollowup),
		zap.Stringer("state", session.State),
		zap.Int("turns", len(session.ConversationHistory)),
	)

	return s.step(session), nil
}

// Finish scores every recorded turn in transcript order and renders the
// report. Finishing before the interview is complete is allowed and yields a
// partial report. A turn that cannot be scored keeps an Evaluation with Error set.
func (s *Service) Finish(ctx context.Context, id string) (*FinishResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	log := logger.WithSession(s.logger, session.ID).With(zap.String("strategy", s.scorer.Name()))
	if !session.Complete() {
		log.Warn("finishing an incomplete interview", zap.Stringer("state", session.State))
	}

	evaluations := make([]Evaluation, 0, len(session.ConversationHistory))
	for _, turn := range session.ConversationHistory {
		callCtx, cancel := s.callContext(ctx)
		res, err := s.scorer.Score(callCtx, scoring.Input{
			Posting:  session.Posting(),
			Question: turn.QuestionText,
			Answer:   turn.AnswerText,
		})
		cancel()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("score answers: %w", ctxErr)
			}
			log.Warn("answer evaluation failed",
				zap.String(logger.FieldQuestion, turn.QuestionID),
				zap.Error(err),
			)
			evaluations = append(evaluations, Evaluation{
				QuestionID:      turn.QuestionID,
				ResponseText:    turn.AnswerText,
				Strengths:       []string{},
				Weaknesses:      []string{},
				ImprovementTips: []string{},
				Error:           err.Error(),
			})
			continue
		}

		evaluations = append(evaluations, Evaluation{
			QuestionID:      turn.QuestionID,
			ResponseText:    turn.AnswerText,
			RelevancyScore:  res.RelevancyScore,
			Strengths:       res.Strengths,
			Weaknesses:      res.Weaknesses,
			ImprovementTips: res.ImprovementTips,
			Justification:   res.Justification,
		})
	}

	text := renderReport(session, evaluations)

	finishedAt := s.now().UTC()
	session.Evaluations = evaluations
	session.Report = text
	session.FinishedAt = &finishedAt
	session.UpdatedAt = finishedAt

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	log.Info("interview finished",
		zap.Int("evaluations", len(evaluations)),
		zap.Bool("partial", !session.Complete()),
	)

	return &FinishResult{
		SessionID:   session.ID,
		Evaluations: evaluations,
		ReportText:  text,
		Partial:     !session.Complete(),
	}, nil
}

// Report returns the rendered report of a finished session.
func (s *Service) Report(ctx context.Context, id string) (string, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !session.Finished() {
		return "", ErrReportNotReady
	}
	return session.Report, nil
}

func (s *Service) step(session *Session) Step {
	total := len(session.MainQuestions)
	step := Step{
		SessionID:      session.ID,
		TotalQuestions: total,
	}

	switch session.State.Phase {
	case PhaseComplete:
		step.QuestionNumber = total
		step.Question = Done
		step.InterviewComplete = true
		step.Message = "All questions answered! Finish the interview to get your results."
	case PhaseAwaitingFollowup:
		step.QuestionNumber = session.State.MainIndex + 1
		step.Question, _ = session.CurrentQuestion()
		step.IsFollowup = true
		step.Message = "Follow-up question based on your answer."
	default:
		step.QuestionNumber = session.State.MainIndex + 1
		step.Question, _ = session.CurrentQuestion()
		step.Message = fmt.Sprintf("Question %d of %d.", step.QuestionNumber, total)
	}

	return step
}

func (s *Service) startMessage(total int) string {
	numbers := make([]string, 0)
	for _, i := range s.policy.Indices() {
		if i < total {
			numbers = append(numbers, fmt.Sprint(i+1))
		}
	}

	switch len(numbers) {
	case 0:
		return "Interview started!"
	case 1:
		return fmt.Sprintf("Interview started! Question %s will have a follow-up based on your answer.", numbers[0])
	default:
		last := len(numbers) - 1
		return fmt.Sprintf("Interview started! Questions %s and %s will have follow-ups based on your answers.",
			strings.Join(numbers[:last], ", "), numbers[last])
	}
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// normalizeQuestions trims texts, drops empty questions, replaces empty or
// duplicate ids with q<n> and keeps at most limit questions.
func normalizeQuestions(generated []ai.Question, limit int) []Question {
	out := make([]Question, 0, limit)
	seen := make(map[string]struct{})

	for _, q := range generated {
		if len(out) == limit {
			break
		}
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		id := strings.TrimSpace(q.ID)
		if _, dup := seen[id]; dup || reservedID(id) {
			id = uniqueID(seen, len(out)+1)
		}
		seen[id] = struct{}{}
		out = append(out, Question{ID: id, Text: text})
	}

	return out
}

func reservedID(id string) bool {
	return id == "" || id == DoneQuestionID || strings.HasPrefix(id, FollowupIDPrefix)
}

func uniqueID(seen map[string]struct{}, n int) string {
	for {
		id := fmt.Sprintf("q%d", n)
		if _, ok := seen[id]; !ok {
			return id
		}
		n++
	}
}

func renderReport(session *Session, evaluations []Evaluation) string {
	questions := make([]report.Question, 0, len(session.ConversationHistory))
	for _, t := range session.ConversationHistory {
		questions = append(questions, report.Question{ID: t.QuestionID, Text: t.QuestionText})
	}

	evals := make([]report.Evaluation, 0, len(evaluations))
	for _, e := range evaluations {
		evals = append(evals, report.Evaluation{
			QuestionID:      e.QuestionID,
			ResponseText:    e.ResponseText,
			RelevancyScore:  e.RelevancyScore,
			Strengths:       e.Strengths,
			Weaknesses:      e.Weaknesses,
			ImprovementTips: e.ImprovementTips,
			Justification:   e.Justification,
			Error:           e.Error,
		})
	}

	return report.Render(session.JobTitle, questions, evals)
}
