package heuristic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pyq-analyzer/internal/config"
)

func testSubjects() []config.Subject {
	return []config.Subject{
		{Name: "Data Structures", Keywords: []string{"stack", "queue", "graph", "graphs", "binary tree", "linked list"}},
		{Name: "Operating Systems", Keywords: []string{"process", "deadlock", "semaphore", "paging"}},
	}
}

func TestClassifyExplainSentence(t *testing.T) {
	c := New(testSubjects())

	got, err := c.Classify(context.Background(), "Some header text Explain the use of a stack in expression evaluation? more noise")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Explain the use of a stack in expression evaluation?", got[0].Text)
	assert.Equal(t, "Data Structures", got[0].Subject)
	assert.Equal(t, []string{"stack"}, got[0].Topics)
	assert.Contains(t, got[0].Keywords, "stack")
}

func TestClassifyNumberedLines(t *testing.T) {
	text := `B.Tech Examination 2021-22
1. Explain deadlock prevention with a semaphore example? (5 marks)
2) What is paging and why does a process need it?
Q3. Define a binary tree and list its traversals
4. ok`

	got, err := New(testSubjects()).Classify(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Explain deadlock prevention with a semaphore example?", got[0].Text)
	assert.Equal(t, "Operating Systems", got[0].Subject)
	assert.Equal(t, "2021", got[0].Year)
	assert.Equal(t, "Data Structures", got[2].Subject)
	assert.Equal(t, []string{"binary tree"}, got[2].Topics)
}

func TestClassifyDeduplicates(t *testing.T) {
	text := "Explain the working of a queue?\nExplain the working of a queue?"
	got, err := New(testSubjects()).Classify(context.Background(), text)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestClassifyShortSentencesIgnored(t *testing.T) {
	got, err := New(testSubjects()).Classify(context.Background(), "Explain it?")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSubjectDefaultsToGeneral(t *testing.T) {
	subject, topics := New(testSubjects()).Subject("Discuss the causes of the French revolution")
	assert.Equal(t, "General", subject)
	assert.Empty(t, topics)
}

func TestKeywordsFrequencyOrder(t *testing.T) {
	got := Keywords("Explain graph traversal. Compare graph coloring and graph traversal methods", 3)
	assert.Equal(t, []string{"graph", "traversal", "coloring"}, got)
}
