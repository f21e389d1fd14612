// Package heuristic is the local question extractor used when the remote
// classifier returns nothing usable. It only needs the raw text.
package heuristic

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/bryanwahyu/pyq-analyzer/internal/config"
	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

const (
	minQuestionLen  = 15
	maxKeywords     = 5
	maxTopics       = 3
	minKeywordLen   = 4
	defaultSubject  = "General"
	maxQuestionsOut = 200
)

var (
	// "1. ...", "Q1) ...", "Q.2 ...", "(a) ..."
	rxNumbered = regexp.MustCompile(`(?m)^\s*(?:Q(?:uestion)?\.?\s*)?(?:\d{1,3}|\([a-z]\))\s*[.):-]?\s+(.+)$`)
	// imperative / interrogative sentences ending with a question mark
	rxPrompt = regexp.MustCompile(`(?i)\b(?:explain|describe|define|discuss|differentiate|distinguish|compare|what|why|how|write|state|derive|prove|list)\b[^?\n]*\?`)
	rxMarks  = regexp.MustCompile(`(?i)[\[(]\s*\d+\s*(?:marks?|m)?\s*[\])]\s*$`)
	rxYear   = regexp.MustCompile(`\b(20\d{2})\b`)
)

var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "also": true, "been": true,
	"before": true, "being": true, "below": true, "between": true, "both": true, "briefly": true,
	"compare": true, "could": true, "define": true, "derive": true, "describe": true, "detail": true,
	"diagram": true, "difference": true, "differentiate": true, "discuss": true, "distinguish": true,
	"does": true, "each": true, "example": true, "examples": true, "explain": true, "following": true,
	"from": true, "give": true, "have": true, "into": true, "list": true, "marks": true, "more": true,
	"most": true, "neat": true, "only": true, "other": true, "over": true, "prove": true,
	"question": true, "shall": true, "should": true, "show": true, "some": true, "state": true,
	"such": true, "suitable": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true, "those": true,
	"through": true, "under": true, "using": true, "various": true, "very": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "with": true, "write": true,
	"would": true, "your": true, "short": true, "note": true, "notes": true, "answer": true,
}

// Classifier extracts question candidates with regexes and scores a
// subject against a keyword vocabulary.
type Classifier struct {
	subjects []config.Subject
}

// New builds a classifier over the given subject vocabulary.
func New(subjects []config.Subject) *Classifier {
	return &Classifier{subjects: subjects}
}

// Classify never fails; an empty slice means nothing looked like a question.
func (c *Classifier) Classify(_ context.Context, text string) ([]domain.Candidate, error) {
	sentences := ExtractQuestions(text)
	year := ""
	if m := rxYear.FindStringSubmatch(text); m != nil {
		year = m[1]
	}

	out := make([]domain.Candidate, 0, len(sentences))
	for _, s := range sentences {
		keywords := Keywords(s, maxKeywords)
		subject, topics := c.Subject(s)
		out = append(out, domain.Candidate{
			Text:     s,
			Year:     year,
			Subject:  subject,
			Topics:   topics,
			Keywords: keywords,
		})
	}
	return out, nil
}

// ExtractQuestions returns the distinct question-like sentences of text in
// order of appearance.
func ExtractQuestions(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(rxMarks.ReplaceAllString(strings.TrimSpace(s), ""))
		if len([]rune(s)) <= minQuestionLen {
			return
		}
		key := strings.ToLower(s)
		if seen[key] || len(out) >= maxQuestionsOut {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, m := range rxNumbered.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range rxPrompt.FindAllString(text, -1) {
		// skip prompts already covered by a numbered line
		covered := false
		for _, s := range out {
			if strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(m))) {
				covered = true
				break
			}
		}
		if !covered {
			add(m)
		}
	}
	return out
}

// Keywords returns up to n stop-word-filtered words ordered by frequency,
// ties broken by first appearance.
func Keywords(text string, n int) []string {
	freq := map[string]int{}
	first := map[string]int{}
	for i, w := range tokenize(text) {
		if len([]rune(w)) < minKeywordLen || stopWords[w] || isNumber(w) {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = i
		}
		freq[w]++
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// Subject scores each vocabulary entry by keyword overlap and returns the
// best one with the matched vocabulary terms as topics.
func (c *Classifier) Subject(text string) (string, []string) {
	lower := strings.ToLower(text)
	tokens := map[string]bool{}
	for _, t := range tokenize(text) {
		tokens[t] = true
	}

	best, bestScore := defaultSubject, 0
	var bestTopics []string
	for _, s := range c.subjects {
		score := 0
		var matched []string
		for _, kw := range s.Keywords {
			kw = strings.ToLower(kw)
			var hit bool
			if strings.ContainsAny(kw, " -") {
				hit = strings.Contains(lower, kw)
			} else {
				hit = tokens[kw]
			}
			if hit {
				score++
				matched = append(matched, kw)
			}
		}
		if score > bestScore {
			best, bestScore, bestTopics = s.Name, score, matched
		}
	}
	if len(bestTopics) > maxTopics {
		bestTopics = bestTopics[:maxTopics]
	}
	return best, bestTopics
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
