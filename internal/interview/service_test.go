package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/scoring"
)

type memStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memStore) Save(_ context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = raw
	m.saves++
	return nil
}

type questionsStub struct {
	questions []ai.Question
	err       error
}

func (q *questionsStub) GenerateQuestions(context.Context, ai.Posting) ([]ai.Question, error) {
	return q.questions, q.err
}

type followupStub struct {
	mu       sync.Mutex
	requests []ai.FollowupRequest
	err      error
}

func (f *followupStub) GenerateFollowup(_ context.Context, req ai.FollowupRequest) (*ai.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Question{ID: "model_id", Text: fmt.Sprintf("  Can you expand on %q?  ", req.OriginalQuestion)}, nil
}

type answersStub struct{}

func (answersStub) GenerateAnswer(_ context.Context, _ ai.Posting, question string) (string, error) {
	return "simulated answer to " + question, nil
}

type scorerStub struct {
	failOn string
	calls  []scoring.Input
}

func (s *scorerStub) Name() string { return "stub" }

func (s *scorerStub) Score(_ context.Context, in scoring.Input) (*scoring.Result, error) {
	s.calls = append(s.calls, in)
	if s.failOn != "" && in.Question == s.failOn {
		return nil, fmt.Errorf("%w: relevancy_score 150 is outside [0, 100]", ai.ErrMalformedResponse)
	}
	return &scoring.Result{
		RelevancyScore:  10 * len(s.calls),
		Strengths:       []string{"clear"},
		Weaknesses:      []string{},
		ImprovementTips: []string{"quantify"},
		Justification:   "ok",
	}, nil
}

type fixture struct {
	svc       *Service
	store     *memStore
	followups *followupStub
	scorer    *scorerStub
}

func newFixture(t *testing.T, n int, log *zap.Logger) *fixture {
	t.Helper()
	qs := make([]ai.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, ai.Question{ID: fmt.Sprintf("q%d", i), Text: fmt.Sprintf("Main question %d", i)})
	}

	f := &fixture{store: newMemStore(), followups: &followupStub{}, scorer: &scorerStub{}}
	svc, err := New(Config{}, Deps{
		Store:     f.store,
		Questions: &questionsStub{questions: qs},
		Followups: f.followups,
		Answers:   answersStub{},
		Scorer:    f.scorer,
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("sess%08d", seq)
	}
	f.svc = svc
	return f
}

var testPosting = ai.Posting{JobTitle: "ML Engineer", JobDescription: "You will build ML pipelines.", ResumeText: "Python, AWS"}

func TestScenarioFullInterview(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()

	session, step, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if step.Question.ID != "q1" || step.QuestionNumber != 1 || step.TotalQuestions != 3 {
		t.Fatalf("unexpected first step: %+v", step)
	}
	if step.Message != "Interview started! Questions 1 and 2 will have follow-ups based on your answers." {
		t.Fatalf("unexpected start message %q", step.Message)
	}

	expect := []struct {
		id       string
		followup bool
		complete bool
		number   int
		message  string
	}{
		{"followup_q1", true, false, 1, "Follow-up question based on your answer."},
		{"q2", false, false, 2, "Question 2 of 3."},
		{"followup_q2", true, false, 2, "Follow-up question based on your answer."},
		{"q3", false, false, 3, "Question 3 of 3."},
		{DoneQuestionID, false, true, 3, "All questions answered! Finish the interview to get your results."},
	}

	current := step.Question
	for i, want := range expect {
		next, err := f.svc.SubmitAnswer(ctx, session.ID, current.ID, fmt.Sprintf("answer %d", i))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if next.Question.ID != want.id || next.IsFollowup != want.followup ||
			next.InterviewComplete != want.complete || next.QuestionNumber != want.number || next.Message != want.message {
			t.Fatalf("step %d: got %+v, want %+v", i, next, want)
		}
		current = next.Question
	}

	if current.Text != "Interview complete." {
		t.Fatalf("unexpected sentinel %+v", current)
	}
	if got := f.followups.requests[0].OriginalQuestion; got != "Main question 1" {
		t.Fatalf("unexpected original question %q", got)
	}
	if got := f.followups.requests[1].FollowupNumber; got != 2 {
		t.Fatalf("expected second follow-up number 2, got %d", got)
	}
	if hist := f.followups.requests[1].History; len(hist) != 3 || hist[2].Answer != "answer 2" {
		t.Fatalf("unexpected follow-up history %+v", hist)
	}

	stored, err := f.svc.Session(ctx, session.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if !stored.Complete() || len(stored.ConversationHistory) != 5 {
		t.Fatalf("unexpected stored session: %s, %d turns", stored.State, len(stored.ConversationHistory))
	}
	if stored.ConversationHistory[1].QuestionText != `Can you expand on "Main question 1"?` {
		t.Fatalf("follow-up text not resolved: %+v", stored.ConversationHistory[1])
	}

	if _, err := f.svc.SubmitAnswer(ctx, session.ID, "q1", "late"); !errors.Is(err, ErrInterviewComplete) {
		t.Fatalf("expected ErrInterviewComplete, got %v", err)
	}

	res, err := f.svc.Finish(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.Partial {
		t.Fatalf("complete interview reported as partial")
	}
	if len(res.Evaluations) != 5 {
		t.Fatalf("expected 5 evaluations, got %d", len(res.Evaluations))
	}
	for i, e := range res.Evaluations {
		if e.QuestionID != stored.ConversationHistory[i].QuestionID {
			t.Fatalf("evaluation %d out of order: %s", i, e.QuestionID)
		}
		if f.scorer.calls[i].Answer != stored.ConversationHistory[i].AnswerText {
			t.Fatalf("scorer call %d received wrong answer", i)
		}
	}
	if !strings.Contains(res.ReportText, "Average Relevancy Score: 30/100") {
		t.Fatalf("unexpected report:\n%s", res.ReportText)
	}

	text, err := f.svc.Report(ctx, session.ID)
	if err != nil || text != res.ReportText {
		t.Fatalf("report mismatch: %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()

	if _, err := f.svc.SubmitAnswer(ctx, "nope", "q1", "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("submit: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.svc.Finish(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("finish: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.svc.Report(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("report: expected ErrSessionNotFound, got %v", err)
	}
	if _, _, err := f.svc.SimulateAnswer(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("simulate: expected ErrSessionNotFound, got %v", err)
	}
}

func TestFinishEmptyTranscript(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()

	session, _, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Report(ctx, session.ID); !errors.Is(err, ErrReportNotReady) {
		t.Fatalf("expected ErrReportNotReady, got %v", err)
	}

	res, err := f.svc.Finish(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(res.Evaluations) != 0 || !res.Partial {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.ReportText, "Average Relevancy Score: 0/100") {
		t.Fatalf("unexpected report:\n%s", res.ReportText)
	}
}

func TestFinishedSessionRejectsAnswers(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()

	session, step, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, session.ID, step.Question.ID, "answer 1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, err := f.svc.Finish(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	saves := f.store.saves

	current, err := f.svc.Current(ctx, session.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, session.ID, current.Question.ID, "late answer"); !errors.Is(err, ErrInterviewFinished) {
		t.Fatalf("expected ErrInterviewFinished on submit, got %v", err)
	}
	if _, _, err := f.svc.SimulateAnswer(ctx, session.ID); !errors.Is(err, ErrInterviewFinished) {
		t.Fatalf("expected ErrInterviewFinished on simulate, got %v", err)
	}
	if f.store.saves != saves {
		t.Fatalf("rejected answers must not be persisted")
	}

	report, err := f.svc.Report(ctx, session.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report != res.ReportText {
		t.Fatalf("report changed after rejected answers")
	}
	stored, _ := f.svc.Session(ctx, session.ID)
	if len(stored.ConversationHistory) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(stored.ConversationHistory))
	}
}

func TestFinishKeepsFailedEvaluations(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, 3, zap.New(core))
	f.scorer.failOn = "Main question 2"
	ctx := context.Background()

	session, step, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	current := step.Question
	for !step.InterviewComplete {
		step, err = f.svc.SubmitAnswer(ctx, session.ID, current.ID, "answer")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		current = step.Question
	}

	res, err := f.svc.Finish(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(res.Evaluations) != 5 {
		t.Fatalf("expected one evaluation per turn, got %d", len(res.Evaluations))
	}
	failed := res.Evaluations[2]
	if failed.QuestionID != "q2" || failed.Error == "" || !strings.Contains(failed.Error, "150") {
		t.Fatalf("expected failed evaluation for q2, got %+v", failed)
	}
	if !strings.Contains(res.ReportText, "(not available)") {
		t.Fatalf("expected unavailable marker in report:\n%s", res.ReportText)
	}
	if logs.FilterMessage("answer evaluation failed").Len() != 1 {
		t.Fatalf("expected one evaluation warning, got %v", logs.All())
	}
}

func TestFinishAbortsOnCancel(t *testing.T) {
	f := newFixture(t, 1, nil)
	session, step, err := f.svc.CreateSession(context.Background(), testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(context.Background(), session.ID, step.Question.ID, "a"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.scorer.failOn = "Main question 1"
	if _, err := f.svc.Finish(ctx, session.ID); err == nil {
		t.Fatalf("expected finish to fail on cancelled context")
	}
}

func TestFollowupFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()

	session, _, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	saves := f.store.saves

	f.followups.err = errors.New("gateway down")
	if _, err := f.svc.SubmitAnswer(ctx, session.ID, "q1", "answer"); err == nil {
		t.Fatalf("expected follow-up failure")
	}
	if f.store.saves != saves {
		t.Fatalf("failed submit must not save")
	}

	stored, _ := f.svc.Session(ctx, session.ID)
	if stored.State != AwaitingAnswer(0) || len(stored.ConversationHistory) != 0 {
		t.Fatalf("session changed after failure: %s, %d turns", stored.State, len(stored.ConversationHistory))
	}

	f.followups.err = nil
	step, err := f.svc.SubmitAnswer(ctx, session.ID, "q1", "answer")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if step.Question.ID != "followup_q1" {
		t.Fatalf("retry must produce the first follow-up, got %+v", step.Question)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, 2, nil)
	if _, _, err := f.svc.CreateSession(ctx, ai.Posting{JobTitle: "x", ResumeText: "   "}); !errors.Is(err, ErrEmptyResumeText) {
		t.Fatalf("expected ErrEmptyResumeText, got %v", err)
	}

	f = newFixture(t, 0, nil)
	if _, _, err := f.svc.CreateSession(ctx, testPosting); !errors.Is(err, ErrNoQuestionsGenerated) {
		t.Fatalf("expected ErrNoQuestionsGenerated, got %v", err)
	}
	if f.store.saves != 0 {
		t.Fatalf("failed create must not save")
	}
}

func TestNormalizeQuestions(t *testing.T) {
	got := normalizeQuestions([]ai.Question{
		{ID: "q1", Text: " first "},
		{ID: "", Text: "second"},
		{ID: "q1", Text: "third"},
		{ID: "x", Text: "   "},
		{ID: "done", Text: "fourth"},
		{ID: "followup_q7", Text: "fifth"},
		{ID: "q9", Text: "sixth"},
	}, 5)

	want := []Question{
		{ID: "q1", Text: "first"},
		{ID: "q2", Text: "second"},
		{ID: "q3", Text: "third"},
		{ID: "q4", Text: "fourth"},
		{ID: "q5", Text: "fifth"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d questions, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("question %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFollowupIDsDoNotCollideWithMainIDs(t *testing.T) {
	f := newFixture(t, 1, nil)
	ctx := context.Background()
	svc, err := New(Config{FollowupEligible: []int{0}}, Deps{
		Store:     f.store,
		Questions: &questionsStub{questions: []ai.Question{{ID: "followup_q1", Text: "Main one"}, {ID: "b", Text: "Main two"}}},
		Followups: f.followups,
		Scorer:    f.scorer,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	session, first, err := svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Question.ID != "q1" {
		t.Fatalf("expected reserved id to be renamed to q1, got %q", first.Question.ID)
	}

	step, err := svc.SubmitAnswer(ctx, session.ID, first.Question.ID, "answer 1")
	if err != nil {
		t.Fatalf("submit main: %v", err)
	}
	if step.Question.ID != "followup_q1" {
		t.Fatalf("expected follow-up step, got %+v", step)
	}
	if _, err := svc.SubmitAnswer(ctx, session.ID, step.Question.ID, "answer 2"); err != nil {
		t.Fatalf("submit follow-up: %v", err)
	}

	stored, _ := svc.Session(ctx, session.ID)
	turn := stored.ConversationHistory[1]
	if !turn.IsFollowup || turn.QuestionText != `Can you expand on "Main one"?` {
		t.Fatalf("follow-up turn recorded with wrong text: %+v", turn)
	}
	for _, q := range stored.MainQuestions {
		if q.ID == turn.QuestionID {
			t.Fatalf("follow-up id %q shadows a main question", q.ID)
		}
	}
}

func TestSimulateAnswer(t *testing.T) {
	f := newFixture(t, 1, nil)
	ctx := context.Background()

	session, _, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	answer, step, err := f.svc.SimulateAnswer(ctx, session.ID)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if answer != "simulated answer to Main question 1" || step.Question.ID != "followup_q1" {
		t.Fatalf("unexpected simulate result %q %+v", answer, step)
	}

	if _, step, err = f.svc.SimulateAnswer(ctx, session.ID); err != nil || !step.InterviewComplete {
		t.Fatalf("expected completion, got %+v %v", step, err)
	}
	if _, _, err := f.svc.SimulateAnswer(ctx, session.ID); !errors.Is(err, ErrInterviewComplete) {
		t.Fatalf("expected ErrInterviewComplete, got %v", err)
	}
}

func TestUnknownQuestionIDWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, 3, zap.New(core))
	ctx := context.Background()

	session, _, err := f.svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, session.ID, "ghost", "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	stored, _ := f.svc.Session(ctx, session.ID)
	if stored.ConversationHistory[0].QuestionText != "ghost" {
		t.Fatalf("expected raw id as question text, got %+v", stored.ConversationHistory[0])
	}
	if logs.FilterMessageSnippet("unknown question id").Len() != 1 {
		t.Fatalf("expected warning, got %v", logs.All())
	}
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()
	svc, err := New(Config{FollowupEligible: []int{}}, Deps{
		Store:     f.store,
		Questions: &questionsStub{questions: []ai.Question{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"}}},
		Followups: f.followups,
		Scorer:    f.scorer,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	session, _, err := svc.CreateSession(ctx, testPosting)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SubmitAnswer(ctx, session.ID, "a", "x"); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := svc.Session(ctx, session.ID)
	if len(stored.ConversationHistory) != 4 || !stored.Complete() {
		t.Fatalf("expected 4 serialized turns, got %d in %s", len(stored.ConversationHistory), stored.State)
	}
	if svc.locks.len() != 0 {
		t.Fatalf("expected lock table to drain, got %d", svc.locks.len())
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
