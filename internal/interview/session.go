package interview

import (
	"time"

	"github.com/spigell/interviewer/internal/ai"
)

// DoneQuestionID is the id of the terminal sentinel question.
const DoneQuestionID = "done"

// Done is emitted once every main question has been answered.
var Done = Question{ID: DoneQuestionID, Text: "Interview complete."}

type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Turn is one answered question of the transcript. Turns are never modified after append.
type Turn struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	AnswerText   string `json:"answer_text"`
	IsFollowup   bool   `json:"is_followup"`
}

// Evaluation is one scored turn. Error is set when the turn could not be scored.
type Evaluation struct {
	QuestionID      string   `json:"question_id"`
	ResponseText    string   `json:"response_text"`
	RelevancyScore  int      `json:"relevancy_score"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	ImprovementTips []string `json:"improvement_tips"`
	Justification   string   `json:"justification"`
	Error           string   `json:"error,omitempty"`
}

// Session is the persisted unit of one interview attempt.
type Session struct {
	ID             string `json:"session_id"`
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text"`

	MainQuestions []Question `json:"main_questions"`
	State         State      `json:"state"`

	FollowupCounter int `json:"followup_counter"`
	// PendingFollowup is the follow-up being waited for in PhaseAwaitingFollowup.
	PendingFollowup *Question `json:"pending_followup,omitempty"`

	ConversationHistory []Turn `json:"conversation_history"`

	Evaluations []Evaluation `json:"evaluations,omitempty"`
	Report      string       `json:"report,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (s *Session) Posting() ai.Posting {
	return ai.Posting{
		JobTitle:       s.JobTitle,
		JobDescription: s.JobDescription,
		ResumeText:     s.ResumeText,
	}
}

// CurrentMainIndex is the cursor into MainQuestions. It equals
// len(MainQuestions) once the interview is complete.
func (s *Session) CurrentMainIndex() int { return s.State.MainIndex }

func (s *Session) AwaitingFollowup() bool { return s.State.Phase == PhaseAwaitingFollowup }

func (s *Session) Complete() bool { return s.State.Phase == PhaseComplete }

func (s *Session) Finished() bool { return s.FinishedAt != nil }

// CurrentQuestion returns the question the next answer replies to.
func (s *Session) CurrentQuestion() (Question, bool) {
	switch s.State.Phase {
	case PhaseAwaitingAnswer:
		if s.State.MainIndex < len(s.MainQuestions) {
			return s.MainQuestions[s.State.MainIndex], true
		}
	case PhaseAwaitingFollowup:
		if s.PendingFollowup != nil {
			return *s.PendingFollowup, true
		}
	}
	return Question{}, false
}

// questionText resolves id against the pending follow-up and the main
// questions, falling back to the raw id.
func (s *Session) questionText(id string) (string, bool) {
	if s.State.Phase == PhaseAwaitingFollowup && s.PendingFollowup != nil && s.PendingFollowup.ID == id {
		return s.PendingFollowup.Text, true
	}
	for _, q := range s.MainQuestions {
		if q.ID == id {
			return q.Text, true
		}
	}
	return id, false
}

func (s *Session) history() []ai.Exchange {
	out := make([]ai.Exchange, 0, len(s.ConversationHistory))
	for _, t := range s.ConversationHistory {
		out = append(out, ai.Exchange{Question: t.QuestionText, Answer: t.AnswerText})
	}
	return out
}
