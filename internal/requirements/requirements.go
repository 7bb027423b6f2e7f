// Package requirements derives the skill and responsibility requirements of a
// job posting with a closed-vocabulary heuristic. There is no stemming and no
// synonym expansion.
package requirements

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spigell/interviewer/internal/utils"
)

const (
	DefaultMaxResponsibilities = 12
	DefaultMaxLineLength       = 220
	minLineLength              = 10
)

var (
	// DefaultSkills is the recognised skill vocabulary.
	DefaultSkills = []string{
		"python", "sql", "aws", "gcp", "azure", "docker", "kubernetes", "fastapi",
		"ml", "nlp", "pytorch", "tensorflow", "spark", "airflow", "dbt",
	}
	// DefaultCues are substrings that mark a description line as a responsibility.
	DefaultCues = []string{"responsib", "you will", "build", "design", "deploy", "develop", "own"}
)

// Requirements is the structured view of a posting used as the scoring reference.
type Requirements struct {
	Skills           []string `json:"skills"`
	Responsibilities []string `json:"responsibilities"`
}

// Config overrides the vocabulary and limits. Zero values select defaults.
type Config struct {
	Skills              []string `mapstructure:"skills"`
	Cues                []string `mapstructure:"cues"`
	MaxResponsibilities int      `mapstructure:"max-responsibilities"`
	MaxLineLength       int      `mapstructure:"max-line-length"`
}

type Extractor struct {
	skills   *regexp.Regexp
	cues     []string
	maxResps int
	maxLine  int
}

// New compiles an extractor for cfg.
func New(cfg Config) *Extractor {
	skills := normalize(cfg.Skills)
	if len(skills) == 0 {
		skills = DefaultSkills
	}
	cues := normalize(cfg.Cues)
	if len(cues) == 0 {
		cues = DefaultCues
	}

	quoted := make([]string, 0, len(skills))
	for _, s := range skills {
		quoted = append(quoted, regexp.QuoteMeta(s))
	}

	e := &Extractor{
		skills:   regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`),
		cues:     cues,
		maxResps: cfg.MaxResponsibilities,
		maxLine:  cfg.MaxLineLength,
	}
	if e.maxResps <= 0 {
		e.maxResps = DefaultMaxResponsibilities
	}
	if e.maxLine <= 0 {
		e.maxLine = DefaultMaxLineLength
	}
	return e
}

// Default returns an extractor with the built-in vocabulary.
func Default() *Extractor {
	return New(Config{})
}

// Extract returns the sorted skill set found in title and description, and the
// responsibility lines of the description in their original order.
func (e *Extractor) Extract(jobTitle, jobDescription string) Requirements {
	text := strings.ToLower(jobTitle + "\n" + jobDescription)

	seen := make(map[string]struct{})
	skills := make([]string, 0)
	for _, m := range e.skills.FindAllString(text, -1) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		skills = append(skills, m)
	}
	sort.Strings(skills)

	resps := make([]string, 0)
	for _, line := range strings.Split(jobDescription, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minLineLength || !e.hasCue(line) {
			continue
		}
		resps = append(resps, utils.TruncateRunes(line, e.maxLine, ""))
		if len(resps) == e.maxResps {
			break
		}
	}

	return Requirements{Skills: skills, Responsibilities: resps}
}

func (e *Extractor) hasCue(line string) bool {
	lower := strings.ToLower(line)
	for _, cue := range e.cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func normalize(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
