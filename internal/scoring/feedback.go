package scoring

const (
	StrongThreshold   = 75
	ModerateThreshold = 55
)

const (
	strongAlignment   = "Answer is strongly aligned with the question and job requirements (semantic match)."
	moderateAlignment = "Answer is moderately aligned with the question and job requirements."
	looselyTied       = "Answer could be more directly tied to the job's key responsibilities/skills."
	weakAlignment     = "Answer is weakly aligned with the question/job requirements (semantic mismatch)."
)

// ImprovementTips are shared by every band below StrongThreshold.
var ImprovementTips = []string{
	"Explicitly connect your answer to 2-3 job requirements (skills/responsibilities).",
	"Use STAR (Situation, Task, Action, Result) to make the answer more focused.",
	"Add one measurable impact (latency, accuracy, cost, time saved, etc.).",
}

// Feedback builds the threshold-driven result for score. A score on a threshold
// belongs to the higher band.
func Feedback(score int) *Result {
	r := &Result{
		RelevancyScore:  score,
		Strengths:       []string{},
		Weaknesses:      []string{},
		ImprovementTips: []string{},
	}

	switch {
	case score >= StrongThreshold:
		r.Strengths = append(r.Strengths, strongAlignment)
	case score >= ModerateThreshold:
		r.Strengths = append(r.Strengths, moderateAlignment)
		r.Weaknesses = append(r.Weaknesses, looselyTied)
	default:
		r.Weaknesses = append(r.Weaknesses, weakAlignment)
	}

	if score < StrongThreshold {
		r.ImprovementTips = append(r.ImprovementTips, ImprovementTips...)
	}

	return r
}
