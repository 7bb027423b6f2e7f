package interview

import (
	"fmt"
	"sort"
)

type Phase string

const (
	PhaseAwaitingAnswer   Phase = "awaiting_answer"
	PhaseAwaitingFollowup Phase = "awaiting_followup_answer"
	PhaseComplete         Phase = "complete"
)

// State is the tagged interview state. MainIndex is the main question the
// state refers to; for PhaseComplete it equals the number of main questions.
type State struct {
	Phase     Phase `json:"phase"`
	MainIndex int   `json:"main_index"`
}

func AwaitingAnswer(i int) State         { return State{Phase: PhaseAwaitingAnswer, MainIndex: i} }
func AwaitingFollowupAnswer(i int) State { return State{Phase: PhaseAwaitingFollowup, MainIndex: i} }
func Completed(total int) State          { return State{Phase: PhaseComplete, MainIndex: total} }

func (s State) String() string {
	if s.Phase == PhaseComplete {
		return string(s.Phase)
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.MainIndex)
}

// Policy holds the static set of main question indices that get one follow-up.
type Policy struct {
	eligible map[int]struct{}
}

// DefaultFollowupEligible are the first two main questions.
var DefaultFollowupEligible = []int{0, 1}

func NewPolicy(eligible []int) Policy {
	p := Policy{eligible: make(map[int]struct{}, len(eligible))}
	for _, i := range eligible {
		if i >= 0 {
			p.eligible[i] = struct{}{}
		}
	}
	return p
}

func (p Policy) Eligible(i int) bool {
	_, ok := p.eligible[i]
	return ok
}

// Indices returns the eligible indices in ascending order.
func (p Policy) Indices() []int {
	out := make([]int, 0, len(p.eligible))
	for i := range p.eligible {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Transition is the staged effect of one submitted answer. Nothing is applied
// to a session until Apply is called.
type Transition struct {
	From Turn
	Prev State
	Next State
	// NeedsFollowup means a follow-up question must be generated before Apply.
	NeedsFollowup bool
	// KnownQuestion is false when the submitted id matched no question.
	KnownQuestion bool
}

// Plan computes the transition for answering questionID with answer.
func (s *Session) Plan(p Policy, questionID, answer string) (Transition, error) {
	if s.Complete() {
		return Transition{}, ErrInterviewComplete
	}
	if len(s.MainQuestions) == 0 {
		return Transition{}, ErrNoQuestionsGenerated
	}

	text, known := s.questionText(questionID)
	i := s.State.MainIndex
	t := Transition{
		From: Turn{
			QuestionID:   questionID,
			QuestionText: text,
			AnswerText:   answer,
			IsFollowup:   s.AwaitingFollowup(),
		},
		Prev:          s.State,
		KnownQuestion: known,
	}

	switch s.State.Phase {
	case PhaseAwaitingFollowup:
		t.Next = s.advance(i)
	case PhaseAwaitingAnswer:
		if p.Eligible(i) {
			t.Next = AwaitingFollowupAnswer(i)
			t.NeedsFollowup = true
		} else {
			t.Next = s.advance(i)
		}
	default:
		return Transition{}, fmt.Errorf("unknown interview state %q", s.State.Phase)
	}

	return t, nil
}

func (s *Session) advance(i int) State {
	if j := i + 1; j < len(s.MainQuestions) {
		return AwaitingAnswer(j)
	}
	return Completed(len(s.MainQuestions))
}

// Apply commits t. followup must carry the generated question text when
// t.NeedsFollowup is set; its id is replaced by the locally numbered one.
func (s *Session) Apply(t Transition, followup *Question) error {
	if s.State != t.Prev {
		return fmt.Errorf("stale transition: session is %s, transition planned from %s", s.State, t.Prev)
	}
	if t.NeedsFollowup && followup == nil {
		return fmt.Errorf("transition to %s requires a follow-up question", t.Next)
	}

	s.ConversationHistory = append(s.ConversationHistory, t.From)
	s.State = t.Next

	if t.NeedsFollowup {
		s.FollowupCounter++
		s.PendingFollowup = &Question{
			ID:   FollowupID(s.FollowupCounter),
			Text: followup.Text,
		}
		return nil
	}

	s.PendingFollowup = nil
	return nil
}

// FollowupIDPrefix prefixes every synthesized follow-up id. Main question
// ids never carry it.
const FollowupIDPrefix = "followup_q"

// FollowupID is the synthesized id of the n-th follow-up of a session.
func FollowupID(n int) string {
	return fmt.Sprintf("%s%d", FollowupIDPrefix, n)
}
