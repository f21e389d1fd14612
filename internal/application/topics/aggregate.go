// Package topics derives the ranked "common topics" list from question metadata.
package topics

import (
	"sort"
	"strings"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// DefaultLimit jumlah maksimum topik yang dikembalikan
const DefaultLimit = 10

// Aggregate counts, per name, the questions that carry it. Explicit topics
// are used when a question has any, keywords otherwise. Names seen on a
// single question are dropped; the rest is ranked and truncated to limit.
func Aggregate(qs []domain.Question, limit int) []domain.QuestionTopic {
	counts := map[string]*domain.QuestionTopic{}
	var order []string

	for _, q := range qs {
		names := q.Topics
		if len(names) == 0 {
			names = q.Keywords
		}
		seen := map[string]bool{}
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			t, ok := counts[n]
			if !ok {
				t = &domain.QuestionTopic{Name: n}
				counts[n] = t
				order = append(order, n)
			}
			t.Count++
			t.QuestionIDs = append(t.QuestionIDs, q.ID)
		}
	}

	out := make([]domain.QuestionTopic, 0, len(order))
	for _, n := range order {
		out = append(out, *counts[n])
	}
	return rank(out, limit)
}

// Merge combines per-file topic lists: counts are summed and question id
// lists unioned, then the result is filtered and ranked like Aggregate.
func Merge(limit int, lists ...[]domain.QuestionTopic) []domain.QuestionTopic {
	merged := map[string]*domain.QuestionTopic{}
	ids := map[string]map[domain.QuestionID]bool{}
	var order []string

	for _, list := range lists {
		for _, t := range list {
			m, ok := merged[t.Name]
			if !ok {
				m = &domain.QuestionTopic{Name: t.Name}
				merged[t.Name] = m
				ids[t.Name] = map[domain.QuestionID]bool{}
				order = append(order, t.Name)
			}
			m.Count += t.Count
			for _, id := range t.QuestionIDs {
				if ids[t.Name][id] {
					continue
				}
				ids[t.Name][id] = true
				m.QuestionIDs = append(m.QuestionIDs, id)
			}
		}
	}

	out := make([]domain.QuestionTopic, 0, len(order))
	for _, n := range order {
		out = append(out, *merged[n])
	}
	return rank(out, limit)
}

func rank(ts []domain.QuestionTopic, limit int) []domain.QuestionTopic {
	if limit <= 0 {
		limit = DefaultLimit
	}
	kept := ts[:0]
	for _, t := range ts {
		if t.Count > 1 {
			kept = append(kept, t)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Count != kept[j].Count {
			return kept[i].Count > kept[j].Count
		}
		return kept[i].Name < kept[j].Name
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
