package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/scoring"
)

// parseQuestions accepts a flat list, a {"questions": [...]} wrapper or an
// object of dimension name to question list. Dimension order is preserved.
func parseQuestions(raw string) ([]ai.Question, error) {
	cleaned := []byte(extractJSON(raw))

	var groups [][]any
	switch first := firstByte(cleaned); first {
	case '[':
		var list []any
		if err := json.Unmarshal(cleaned, &list); err != nil {
			return nil, fmt.Errorf("%w: questions: %v", ai.ErrMalformedResponse, err)
		}
		groups = append(groups, list)
	case '{':
		ordered, err := orderedLists(cleaned)
		if err != nil {
			return nil, fmt.Errorf("%w: questions: %v", ai.ErrMalformedResponse, err)
		}
		groups = ordered
	default:
		return nil, fmt.Errorf("%w: questions: expected a JSON object or list", ai.ErrMalformedResponse)
	}

	questions := make([]ai.Question, 0)
	for _, group := range groups {
		for _, item := range group {
			q, ok := decodeQuestion(item)
			if !ok {
				continue
			}
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// orderedLists returns the list values of a JSON object in document order.
// Non-list values are skipped.
func orderedLists(data []byte) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var out [][]any
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if list, ok := value.([]any); ok {
			out = append(out, list)
		}
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func decodeQuestion(item any) (ai.Question, bool) {
	switch v := item.(type) {
	case string:
		return ai.Question{Text: strings.TrimSpace(v)}, strings.TrimSpace(v) != ""
	case map[string]any:
		var q ai.Question
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &q,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return ai.Question{}, false
		}
		if err := decoder.Decode(v); err != nil {
			return ai.Question{}, false
		}
		q.ID = strings.TrimSpace(q.ID)
		q.Text = strings.TrimSpace(q.Text)
		return q, q.Text != ""
	default:
		return ai.Question{}, false
	}
}

func parseFollowup(raw string) (*ai.Question, error) {
	data, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: follow-up: %v", ai.ErrMalformedResponse, err)
	}

	text := coerceString(data["text"])
	if text == "" {
		text = coerceString(data["question"])
	}
	if text == "" {
		return nil, fmt.Errorf("%w: follow-up: missing text", ai.ErrMalformedResponse)
	}

	return &ai.Question{ID: coerceString(data["id"]), Text: text}, nil
}

// parseJudgment validates an evaluation. The score must be an integer in
// [scoring.MinScore, scoring.MaxScore]; integral floats and numeric strings are accepted.
func parseJudgment(raw string) (*ai.Judgment, error) {
	data, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: evaluation: %v", ai.ErrMalformedResponse, err)
	}

	value, ok := data["relevancy_score"]
	if !ok {
		return nil, fmt.Errorf("%w: evaluation: missing relevancy_score", ai.ErrMalformedResponse)
	}
	score := coerceFloat(value)
	switch {
	case math.IsNaN(score) || math.IsInf(score, 0):
		return nil, fmt.Errorf("%w: evaluation: relevancy_score %v is not a number", ai.ErrMalformedResponse, value)
	case score != math.Trunc(score):
		return nil, fmt.Errorf("%w: evaluation: relevancy_score %v is not an integer", ai.ErrMalformedResponse, value)
	case score < scoring.MinScore || score > scoring.MaxScore:
		return nil, fmt.Errorf("%w: evaluation: relevancy_score %v is outside [%d, %d]",
			ai.ErrMalformedResponse, value, scoring.MinScore, scoring.MaxScore)
	}

	return &ai.Judgment{
		RelevancyScore:  int(score),
		Strengths:       coerceStrings(data["strengths"]),
		Weaknesses:      coerceStrings(data["weaknesses"]),
		ImprovementTips: coerceStrings(data["improvement_tips"]),
		Justification:   coerceString(data["justification"]),
	}, nil
}

func parseObject(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return data, nil
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a list of strings or a single string.
func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
