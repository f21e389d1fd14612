package topics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

func q(id string, topics, keywords []string) domain.Question {
	return domain.Question{ID: domain.QuestionID(id), Topics: topics, Keywords: keywords}
}

func TestAggregateCountsMatchQuestions(t *testing.T) {
	qs := []domain.Question{
		q("1", []string{"graphs", "trees"}, nil),
		q("2", []string{"graphs"}, []string{"ignored"}),
		q("3", nil, []string{"graphs", "sorting"}),
		q("4", nil, []string{"sorting", "hashing"}),
		q("5", []string{"trees", "trees"}, nil),
	}

	got := Aggregate(qs, DefaultLimit)

	require.Len(t, got, 3)
	for _, topic := range got {
		assert.Greater(t, topic.Count, 1)
		want := 0
		for _, question := range qs {
			names := question.Topics
			if len(names) == 0 {
				names = question.Keywords
			}
			for _, n := range names {
				if n == topic.Name {
					want++
					break
				}
			}
		}
		assert.Equal(t, want, topic.Count, topic.Name)
		assert.Len(t, topic.QuestionIDs, topic.Count)
	}
	assert.Equal(t, "graphs", got[0].Name)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, []domain.QuestionID{"1", "2", "3"}, got[0].QuestionIDs)
}

func TestAggregateDropsSingletons(t *testing.T) {
	got := Aggregate([]domain.Question{
		q("1", []string{"alpha"}, nil),
		q("2", []string{"beta"}, nil),
	}, DefaultLimit)
	assert.Empty(t, got)
}

func TestAggregateTruncatesToLimit(t *testing.T) {
	var qs []domain.Question
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("topic-%02d", i)
		for j := 0; j <= i+1; j++ {
			qs = append(qs, q(fmt.Sprintf("%d-%d", i, j), []string{name}, nil))
		}
	}

	got := Aggregate(qs, DefaultLimit)

	require.Len(t, got, 10)
	assert.Equal(t, "topic-14", got[0].Name)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Count, got[i].Count)
	}
}

func TestMergeSumsCountsAndUnionsIDs(t *testing.T) {
	fileA := []domain.QuestionTopic{
		{Name: "graphs", Count: 2, QuestionIDs: []domain.QuestionID{"a1", "a2"}},
		{Name: "trees", Count: 2, QuestionIDs: []domain.QuestionID{"a1", "a3"}},
	}
	fileB := []domain.QuestionTopic{
		{Name: "graphs", Count: 3, QuestionIDs: []domain.QuestionID{"b1", "b2", "a2"}},
		{Name: "queues", Count: 2, QuestionIDs: []domain.QuestionID{"b1", "b3"}},
	}

	got := Merge(DefaultLimit, fileA, fileB)

	require.Len(t, got, 3)
	assert.Equal(t, "graphs", got[0].Name)
	assert.Equal(t, 5, got[0].Count)
	assert.Equal(t, []domain.QuestionID{"a1", "a2", "b1", "b2"}, got[0].QuestionIDs)
	assert.Equal(t, "queues", got[1].Name)
	assert.Equal(t, "trees", got[2].Name)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(DefaultLimit))
}
