package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

func TestResolveRecentID(t *testing.T) {
	list := []questions.RecentResult{{ID: "abc123"}, {ID: "abd456"}, {ID: "xyz"}}

	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"abc123", "abc123", false},
		{"abc", "abc123", false},
		{"x", "xyz", false},
		{"ab", "", true},
		{"nope", "", true},
	}
	for _, tt := range tests {
		got, err := resolveRecentID(list, tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "Paper.PDF")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o600))

	files, err := readFiles([]string{p})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Paper.PDF", files[0].Name)
	assert.Equal(t, "application/pdf", files[0].ContentType)

	_, err = readFiles([]string{filepath.Join(dir, "missing.pdf")})
	assert.Error(t, err)
}

func TestFormatQuestion(t *testing.T) {
	out := formatQuestion(3, questions.Question{
		Text: "Define momentum.", Year: "2021", Subject: "Physics",
		Topics: []string{"Mechanics"},
		Videos: []questions.Video{{ID: "v1", Title: "Momentum"}},
	})
	assert.Contains(t, out, "  3. [2021] Physics: Define momentum.")
	assert.Contains(t, out, "topics: Mechanics")
	assert.Contains(t, out, "watch?v=v1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
