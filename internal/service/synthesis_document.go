package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lshigami/PlacementPrep/internal/apperr"
)

var (
	answerLabels = map[string]bool{"A": true, "B": true, "C": true, "D": true}
	difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}
)

const optionsPerQuestion = 4

type SynthesizedQuestion struct {
	ID                  int      `json:"id"`
	QuestionText        string   `json:"question_text"`
	Options             []string `json:"options"`
	CorrectAnswer       string   `json:"correct_answer"`
	Explanation         string   `json:"explanation"`
	Difficulty          string   `json:"difficulty"`
	Topic               string   `json:"topic,omitempty"`
	TimeEstimateSeconds int      `json:"time_estimate_seconds,omitempty"`
}

type SynthesizedSection struct {
	Name             string                `json:"section_name"`
	TimeLimitMinutes int                   `json:"time_limit_minutes"`
	Questions        []SynthesizedQuestion `json:"questions"`
}

// The wire shapes use pointers and raw messages so a missing field can be
// told apart from a zero value.
type synthesisDoc struct {
	Company        *string           `json:"company"`
	Year           json.RawMessage   `json:"year"`
	TotalQuestions json.RawMessage   `json:"total_questions"`
	Sections       []synthesisSecDoc `json:"sections"`
}

type synthesisSecDoc struct {
	SectionName      *string           `json:"section_name"`
	TimeLimitMinutes *float64          `json:"time_limit_minutes"`
	Questions        []synthesisQstDoc `json:"questions"`
}

type synthesisQstDoc struct {
	QuestionText        *string  `json:"question_text"`
	Options             []string `json:"options"`
	CorrectAnswer       *string  `json:"correct_answer"`
	Explanation         *string  `json:"explanation"`
	Difficulty          *string  `json:"difficulty"`
	Topic               *string  `json:"topic"`
	TimeEstimateSeconds *float64 `json:"time_estimate_seconds"`
}

// stripCodeFences removes a surrounding ```json ... ``` wrapper.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. "json"
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseSynthesis decodes and validates a model response. Validation fails
// closed: nothing is repaired, the first violation is reported.
func parseSynthesis(raw string) ([]SynthesizedSection, error) {
	body := stripCodeFences(raw)
	if body == "" {
		return nil, apperr.Structural("response", "empty response body")
	}

	var doc synthesisDoc
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&doc); err != nil {
		return nil, &apperr.Error{
			Kind:  apperr.KindStructuralValidation,
			Code:  apperr.CodeMalformedOutput,
			Field: "response",
			Msg:   "response is not valid JSON",
			Err:   err,
		}
	}

	if doc.Company == nil {
		return nil, apperr.Structural("company", "missing required field")
	}
	if isAbsent(doc.Year) {
		return nil, apperr.Structural("year", "missing required field")
	}
	if isAbsent(doc.TotalQuestions) {
		return nil, apperr.Structural("total_questions", "missing required field")
	}
	if doc.Sections == nil {
		return nil, apperr.Structural("sections", "missing required field")
	}
	if len(doc.Sections) == 0 {
		return nil, apperr.Structural("sections", "no sections returned")
	}

	sections := make([]SynthesizedSection, 0, len(doc.Sections))
	for si, sec := range doc.Sections {
		prefix := fmt.Sprintf("sections[%d]", si)
		if sec.SectionName == nil || strings.TrimSpace(*sec.SectionName) == "" {
			return nil, apperr.Structural(prefix+".section_name", "missing required field")
		}
		if sec.TimeLimitMinutes == nil {
			return nil, apperr.Structural(prefix+".time_limit_minutes", "missing required field")
		}
		if len(sec.Questions) == 0 {
			return nil, apperr.Structural(prefix+".questions", "section has no questions")
		}

		out := SynthesizedSection{
			Name:             strings.TrimSpace(*sec.SectionName),
			TimeLimitMinutes: int(*sec.TimeLimitMinutes),
			Questions:        make([]SynthesizedQuestion, 0, len(sec.Questions)),
		}
		for qi, q := range sec.Questions {
			question, err := validateQuestion(fmt.Sprintf("%s.questions[%d]", prefix, qi), q)
			if err != nil {
				return nil, err
			}
			out.Questions = append(out.Questions, question)
		}
		sections = append(sections, out)
	}
	return sections, nil
}

func validateQuestion(field string, q synthesisQstDoc) (SynthesizedQuestion, error) {
	required := []struct {
		name  string
		value *string
	}{
		{"question_text", q.QuestionText},
		{"correct_answer", q.CorrectAnswer},
		{"explanation", q.Explanation},
		{"difficulty", q.Difficulty},
	}
	for _, r := range required {
		if r.value == nil || strings.TrimSpace(*r.value) == "" {
			return SynthesizedQuestion{}, apperr.Structural(field+"."+r.name, "missing required field")
		}
	}
	if q.Options == nil {
		return SynthesizedQuestion{}, apperr.Structural(field+".options", "missing required field")
	}
	if len(q.Options) != optionsPerQuestion {
		return SynthesizedQuestion{}, apperr.Structural(field+".options",
			fmt.Sprintf("expected %d options, got %d", optionsPerQuestion, len(q.Options)))
	}
	if !answerLabels[*q.CorrectAnswer] {
		return SynthesizedQuestion{}, apperr.Structural(field+".correct_answer",
			fmt.Sprintf("%q is not one of A, B, C, D", *q.CorrectAnswer))
	}
	if !difficulties[*q.Difficulty] {
		return SynthesizedQuestion{}, apperr.Structural(field+".difficulty",
			fmt.Sprintf("%q is not one of easy, medium, hard", *q.Difficulty))
	}

	out := SynthesizedQuestion{
		QuestionText:  strings.TrimSpace(*q.QuestionText),
		Options:       q.Options,
		CorrectAnswer: *q.CorrectAnswer,
		Explanation:   strings.TrimSpace(*q.Explanation),
		Difficulty:    *q.Difficulty,
	}
	if q.Topic != nil {
		out.Topic = strings.TrimSpace(*q.Topic)
	}
	if q.TimeEstimateSeconds != nil {
		out.TimeEstimateSeconds = int(*q.TimeEstimateSeconds)
	}
	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// mergeSections folds chunk results together. Sections with the same name
// (case-insensitive, trimmed) become one entry that keeps the first chunk's
// display name and time limit; questions are appended in chunk order and
// section order follows first appearance.
func mergeSections(chunks ...[]SynthesizedSection) []SynthesizedSection {
	var merged []SynthesizedSection
	index := make(map[string]int)
	for _, chunk := range chunks {
		for _, sec := range chunk {
			key := strings.ToLower(strings.TrimSpace(sec.Name))
			if i, ok := index[key]; ok {
				merged[i].Questions = append(merged[i].Questions, sec.Questions...)
				continue
			}
			index[key] = len(merged)
			merged = append(merged, SynthesizedSection{
				Name:             sec.Name,
				TimeLimitMinutes: sec.TimeLimitMinutes,
				Questions:        append([]SynthesizedQuestion(nil), sec.Questions...),
			})
		}
	}
	renumberQuestions(merged)
	return merged
}

func renumberQuestions(sections []SynthesizedSection) {
	n := 0
	for si := range sections {
		for qi := range sections[si].Questions {
			n++
			sections[si].Questions[qi].ID = n
		}
	}
}

func countQuestions(sections []SynthesizedSection) int {
	total := 0
	for _, s := range sections {
		total += len(s.Questions)
	}
	return total
}

type questionStatistics struct {
	Total      int
	Difficulty map[string]int
	Sections   map[string]int
	Topics     map[string]int
}

func computeQuestionStatistics(sections []SynthesizedSection) questionStatistics {
	stats := questionStatistics{
		Difficulty: make(map[string]int),
		Sections:   make(map[string]int),
		Topics:     make(map[string]int),
	}
	for _, s := range sections {
		stats.Sections[s.Name] += len(s.Questions)
		for _, q := range s.Questions {
			stats.Total++
			stats.Difficulty[q.Difficulty]++
			if q.Topic != "" {
				stats.Topics[q.Topic]++
			}
		}
	}
	return stats
}
