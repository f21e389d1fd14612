package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// ErrShape means the model answered with something other than a JSON array
// of question objects.
var ErrShape = errors.New("response is not a question array")

// AnalyzeSystemPrompt provides strict directions and schema for JSON output.
func AnalyzeSystemPrompt(subjects []string) string {
	hint := ""
	if len(subjects) > 0 {
		hint = "\nPrefer one of these subjects when it fits: " + strings.Join(subjects, ", ") + "."
	}
	return `You analyze exam question papers. You must produce one valid JSON array only (no markdown, no commentary). Do not include code fences.

Requirements:
- One element per distinct question found in the text.
- "question" is the full question text without numbering or marks.
- "year" is the exam year if it is printed on the paper, otherwise an empty string.
- "subject" is the academic subject of the question.
- "topics" are 1-3 short syllabus topics, lowercase.
- "keywords" are 2-5 lowercase terms from the question.` + hint + `

Schema (example with empty values):
[
  {
    "question": "<string>",
    "year": "<string>",
    "subject": "<string>",
    "topics": ["<string>"],
    "keywords": ["<string>"]
  }
]`
}

// AnalyzeUserPrompt builds the user message around the paper text.
func AnalyzeUserPrompt(text string) string {
	return fmt.Sprintf("Extract and classify every question in this paper. Respond with the JSON array per schema.\n\n%s", text)
}

// ParseCandidates validates the model response shape and decodes it.
// Code fences and chatter around the array are tolerated, a bare object or
// string is not.
func ParseCandidates(resp string) ([]questions.Candidate, error) {
	body := stripFences(strings.TrimSpace(resp))
	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return nil, ErrShape
	}
	if obj := strings.Index(body, "{"); obj >= 0 && obj < start {
		// top-level object that happens to contain an array
		return nil, ErrShape
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}

	out := make([]questions.Candidate, 0, len(raw))
	bad := 0
	for _, item := range raw {
		var c candidate
		if err := json.Unmarshal(item, &c); err != nil {
			// strings, numbers or malformed objects: drop only this element
			bad++
			continue
		}
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out = append(out, questions.Candidate{
			Text:     text,
			Year:     strings.TrimSpace(string(c.Year)),
			Subject:  strings.TrimSpace(c.Subject),
			Topics:   []string(c.Topics),
			Keywords: []string(c.Keywords),
		})
	}
	if len(raw) > 0 && bad == len(raw) {
		return nil, fmt.Errorf("%w: no element is a question object", ErrShape)
	}
	return out, nil
}

// candidate is the wire form of one array element. Models are loose with
// types, so year may be a number and topics a single string.
type candidate struct {
	Text     string     `json:"question"`
	Year     flexString `json:"year"`
	Subject  string     `json:"subject"`
	Topics   flexList   `json:"topics"`
	Keywords flexList   `json:"keywords"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("year: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexList accepts an array of strings or one string.
type flexList []string

func (f *flexList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s = strings.TrimSpace(s); s != "" {
		*f = flexList{s}
	}
	return nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop language tag
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
