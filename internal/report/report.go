// Package report renders the human-readable interview report.
package report

import (
	"fmt"
	"math"
	"strings"
)

const width = 70

// Question is a question as it was asked.
type Question struct {
	ID   string
	Text string
}

// Evaluation is a scored answer. A non-empty Error means no score is available.
type Evaluation struct {
	QuestionID      string
	ResponseText    string
	RelevancyScore  int
	Strengths       []string
	Weaknesses      []string
	ImprovementTips []string
	Justification   string
	Error           string
}

// Render produces the report. Evaluations are matched to questions by id, in
// order, so repeated ids pair with successive evaluations.
func Render(jobTitle string, questions []Question, evaluations []Evaluation) string {
	rule := strings.Repeat("=", width)
	byID := make(map[string][]Evaluation)
	for _, e := range evaluations {
		byID[e.QuestionID] = append(byID[e.QuestionID], e)
	}

	lines := []string{rule, "INTERVIEW REPORT", rule, "Role: " + jobTitle, rule, ""}
	scores := make([]int, 0, len(evaluations))

	for idx, q := range questions {
		lines = append(lines,
			"\n"+rule,
			fmt.Sprintf("QUESTION %d: %s", idx+1, strings.ToUpper(q.ID)),
			rule,
			"\n"+q.Text,
		)

		queue := byID[q.ID]
		if len(queue) == 0 {
			lines = append(lines, "\nEvaluation: (not available)", strings.Repeat("-", width))
			continue
		}
		e := queue[0]
		byID[q.ID] = queue[1:]

		lines = append(lines, "\nCandidate Answer:\n"+e.ResponseText)

		if e.Error != "" {
			lines = append(lines,
				"\nEvaluation: (not available)",
				"  reason: "+e.Error,
				strings.Repeat("-", width),
			)
			continue
		}

		scores = append(scores, e.RelevancyScore)
		lines = append(lines, fmt.Sprintf("\nRelevancy Score: %d/100", e.RelevancyScore))
		lines = append(lines, "\nStrengths:")
		lines = append(lines, bullets(e.Strengths)...)
		lines = append(lines, "\nWeaknesses:")
		lines = append(lines, bullets(e.Weaknesses)...)
		lines = append(lines, "\nImprovement Tips:")
		lines = append(lines, bullets(e.ImprovementTips)...)

		if e.Justification != "" {
			lines = append(lines, "\nJustification:\n"+e.Justification)
		}
	}

	summary := Summarize(scores)
	lines = append(lines,
		"\n"+rule,
		"OVERALL SUMMARY",
		rule,
		fmt.Sprintf("\nTotal Questions: %d", len(questions)),
		fmt.Sprintf("Average Relevancy Score: %d/100", summary.Average),
	)
	if summary.Count > 0 {
		lines = append(lines,
			fmt.Sprintf("Highest Score: %d/100", summary.Highest),
			fmt.Sprintf("Lowest Score: %d/100", summary.Lowest),
		)
	}
	lines = append(lines, "\n"+rule)

	return strings.Join(lines, "\n")
}

// Summary aggregates the available scores.
type Summary struct {
	Count   int
	Average int
	Highest int
	Lowest  int
}

// Summarize computes the rounded average and extremes. The average of nothing is 0.
func Summarize(scores []int) Summary {
	s := Summary{Count: len(scores)}
	if s.Count == 0 {
		return s
	}

	total := 0
	s.Highest, s.Lowest = scores[0], scores[0]
	for _, score := range scores {
		total += score
		if score > s.Highest {
			s.Highest = score
		}
		if score < s.Lowest {
			s.Lowest = score
		}
	}
	// ties round to even
	s.Average = int(math.RoundToEven(float64(total) / float64(s.Count)))
	return s
}

func bullets(items []string) []string {
	if len(items) == 0 {
		return []string{"  - (none)"}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, "  - "+item)
	}
	return out
}
