package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/memory"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newService() (*Service, *memory.Store) {
	store := memory.New()
	return NewService(store, &stepClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}, nil), store
}

func result(firstID string, n int) questions.AnalysisResult {
	res := questions.AnalysisResult{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", firstID, i)
		res.Questions = append(res.Questions, questions.Question{
			ID: questions.QuestionID(id), Text: "Question " + id, Year: "2022",
			Subject: "Physics", Topics: []string{"optics"},
		})
	}
	return res
}

func TestSaveResultSetsCurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	res := result("a", 2)
	res.Topics = []questions.QuestionTopic{{Name: "optics", Count: 2, QuestionIDs: []questions.QuestionID{"a-0", "a-1"}}}

	require.NoError(t, svc.SaveResult(ctx, "t1", "Physics 2022", res))

	cur := svc.CurrentResult(ctx, "t1")
	assert.Len(t, cur.Questions, 2)
	assert.Equal(t, res.Topics, svc.Topics(ctx, "t1"))

	recent := svc.RecentResults(ctx, "t1")
	require.Len(t, recent, 1)
	assert.Equal(t, "Physics 2022", recent[0].Name)

	// other tenant sees nothing
	assert.Empty(t, svc.CurrentResult(ctx, "t2").Questions)
}

func TestRecentLedgerCap(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	for i := 0; i < 11; i++ {
		require.NoError(t, svc.SaveResult(ctx, "t1", fmt.Sprintf("run %d", i), result(fmt.Sprintf("r%d", i), 1)))
	}

	recent := svc.RecentResults(ctx, "t1")
	require.Len(t, recent, lib.MaxRecentResults)
	assert.Equal(t, "run 10", recent[0].Name)
	assert.Equal(t, "run 1", recent[len(recent)-1].Name)
	for _, r := range recent {
		assert.NotEqual(t, "run 0", r.Name)
	}
}

func TestRecentDedupMovesToFront(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	require.NoError(t, svc.SaveResult(ctx, "t1", "first", result("a", 2)))
	require.NoError(t, svc.SaveResult(ctx, "t1", "second", result("b", 2)))
	require.NoError(t, svc.SaveResult(ctx, "t1", "first again", result("a", 2)))

	recent := svc.RecentResults(ctx, "t1")
	require.Len(t, recent, 2)
	assert.Equal(t, "first again", recent[0].Name)
	assert.Equal(t, "second", recent[1].Name)
}

func TestLoadRecentRestoresCurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	require.NoError(t, svc.SaveResult(ctx, "t1", "old", result("a", 1)))
	require.NoError(t, svc.SaveResult(ctx, "t1", "new", result("b", 3)))

	old := svc.RecentResults(ctx, "t1")[1]
	got, err := svc.LoadRecent(ctx, "t1", old.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", got.Name)
	assert.Len(t, svc.CurrentResult(ctx, "t1").Questions, 1)

	_, err = svc.LoadRecent(ctx, "t1", "nope")
	assert.ErrorIs(t, err, lib.ErrNotFound)
}

func TestCorruptValueReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()
	require.NoError(t, store.Set(ctx, "t1:"+lib.KeyRecentResults, "{not json"))

	assert.Empty(t, svc.RecentResults(ctx, "t1"))
	require.NoError(t, svc.SaveResult(ctx, "t1", "fresh", result("a", 1)))
	assert.Len(t, svc.RecentResults(ctx, "t1"), 1)
}

func TestQuestionsFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	res := questions.AnalysisResult{Questions: []questions.Question{
		{ID: "1", Text: "Explain Snell's law", Year: "2021", Subject: "Physics", Topics: []string{"optics"}},
		{ID: "2", Text: "Define enthalpy", Year: "2022", Subject: "Chemistry", Keywords: []string{"enthalpy"}},
		{ID: "3", Text: "Explain total internal reflection", Year: "2022", Subject: "Physics", Topics: []string{"optics"}},
	}}
	require.NoError(t, svc.SaveResult(ctx, "t1", "", res))

	assert.Len(t, svc.Questions(ctx, "t1", questions.Filter{}), 3)
	assert.Len(t, svc.Questions(ctx, "t1", questions.Filter{Subject: "physics"}), 2)
	assert.Len(t, svc.Questions(ctx, "t1", questions.Filter{Year: "2022", Topic: "Optics"}), 1)
	assert.Len(t, svc.Questions(ctx, "t1", questions.Filter{Topic: "enthalpy"}), 1)
	assert.Len(t, svc.Questions(ctx, "t1", questions.Filter{Query: "explain"}), 2)

	require.NoError(t, svc.ClearResult(ctx, "t1"))
	assert.Empty(t, svc.Questions(ctx, "t1", questions.Filter{}))
	assert.Len(t, svc.RecentResults(ctx, "t1"), 1)
}

func TestNotes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.SaveNote(ctx, "t1", lib.SavedNote{Title: "x"})
	assert.ErrorIs(t, err, lib.ErrInvalid)

	n1, err := svc.SaveNote(ctx, "t1", lib.SavedNote{Title: "Optics notes", URL: "https://example.com/optics.pdf"})
	require.NoError(t, err)
	_, err = svc.SaveNote(ctx, "t1", lib.SavedNote{Title: "Thermo", URL: "https://example.com/thermo.pdf"})
	require.NoError(t, err)
	again, err := svc.SaveNote(ctx, "t1", lib.SavedNote{Title: "Optics v2", URL: "https://example.com/optics.pdf"})
	require.NoError(t, err)
	assert.Equal(t, n1.ID, again.ID)

	notes := svc.Notes(ctx, "t1")
	require.Len(t, notes, 2)
	assert.Equal(t, "Optics v2", notes[0].Title)

	require.NoError(t, svc.DeleteNote(ctx, "t1", n1.ID))
	assert.Len(t, svc.Notes(ctx, "t1"), 1)
	assert.ErrorIs(t, svc.DeleteNote(ctx, "t1", n1.ID), lib.ErrNotFound)
}

func TestChatsCapAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	svc.ChatLimit = 3

	var first lib.ChatSession
	for i := 0; i < 3; i++ {
		c, err := svc.CreateChat(ctx, "t1", fmt.Sprintf("chat %d", i))
		require.NoError(t, err)
		if i == 0 {
			first = c
		}
	}
	updated, err := svc.AppendMessage(ctx, "t1", first.ID, "user", "What is optics?")
	require.NoError(t, err)
	assert.Len(t, updated.Messages, 1)
	assert.Equal(t, "chat 0", svc.Chats(ctx, "t1")[0].Title)

	_, err = svc.CreateChat(ctx, "t1", "chat 3")
	require.NoError(t, err)
	chats := svc.Chats(ctx, "t1")
	require.Len(t, chats, 3)
	assert.Equal(t, "chat 3", chats[0].Title)
	assert.Equal(t, "chat 0", chats[1].Title)

	_, err = svc.AppendMessage(ctx, "t1", first.ID, "robot", "hi")
	assert.ErrorIs(t, err, lib.ErrInvalid)
	_, err = svc.AppendMessage(ctx, "t1", "missing", "user", "hi")
	assert.ErrorIs(t, err, lib.ErrNotFound)
}

func TestUsersAndSessions(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	u, err := svc.Register(ctx, "t1", "Ana", "Ana@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Empty(t, u.PasswordHash)

	raw, err := store.Get(ctx, "t1:"+lib.KeyUsers)
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret1")

	_, err = svc.Register(ctx, "t1", "Ana", "ana@example.com", "secret2")
	assert.ErrorIs(t, err, lib.ErrUserExists)
	_, err = svc.Register(ctx, "t1", "Bo", "not-an-email", "secret2")
	assert.ErrorIs(t, err, lib.ErrInvalid)

	_, err = svc.Login(ctx, "t1", "ana@example.com", "wrong")
	assert.ErrorIs(t, err, lib.ErrInvalidCredentials)
	_, err = svc.CurrentUser(ctx, "t1")
	assert.ErrorIs(t, err, lib.ErrNotFound)

	_, err = svc.Login(ctx, "t1", "ANA@example.com", "secret1")
	require.NoError(t, err)
	cur, err := svc.CurrentUser(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, cur.ID)

	_, err = svc.SaveAnalysisSession(ctx, "t1", u.ID, "empty", nil)
	assert.ErrorIs(t, err, questions.ErrNoQuestions)

	require.NoError(t, svc.SaveResult(ctx, "t1", "run", result("a", 2)))
	sess, err := svc.SaveAnalysisSession(ctx, "t1", u.ID, "", nil)
	require.NoError(t, err)
	assert.Len(t, sess.Result.Questions, 2)
	assert.Len(t, svc.AnalysisSessions(ctx, "t1", u.ID), 1)

	_, err = svc.SaveAnalysisSession(ctx, "t1", "ghost", "x", nil)
	assert.ErrorIs(t, err, lib.ErrNotFound)

	require.NoError(t, svc.Logout(ctx, "t1"))
	_, err = svc.CurrentUser(ctx, "t1")
	assert.ErrorIs(t, err, lib.ErrNotFound)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	assert.Empty(t, svc.APIKey(ctx, "t1", "openai"))
	require.NoError(t, svc.SetAPIKey(ctx, "t1", "openai", " sk-test "))
	assert.Equal(t, "sk-test", svc.APIKey(ctx, "t1", "openai"))

	assert.False(t, svc.Flag(ctx, "t1", "enhance"))
	require.NoError(t, svc.SetFlag(ctx, "t1", "enhance", true))
	assert.True(t, svc.Flag(ctx, "t1", "enhance"))
	raw, err := store.Get(ctx, "t1:flag:enhance")
	require.NoError(t, err)
	assert.Equal(t, "true", raw)

	require.NoError(t, svc.SetAPIKey(ctx, "t1", "openai", ""))
	assert.Empty(t, svc.APIKey(ctx, "t1", "openai"))
}

// slowStore widens the read-modify-write window of every ledger update.
type slowStore struct {
	*memory.Store
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context, key string) (string, error) {
	time.Sleep(s.delay)
	return s.Store.Get(ctx, key)
}

func TestConcurrentSavesKeepEveryRecentEntry(t *testing.T) {
	svc := NewService(slowStore{Store: memory.New(), delay: 5 * time.Millisecond}, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.SaveResult(ctx, "t1", fmt.Sprintf("run %d", i), result(fmt.Sprintf("r%d", i), 2)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, svc.RecentResults(ctx, "t1"), 8)
}

func TestConcurrentRegisterSameEmail(t *testing.T) {
	svc := NewService(slowStore{Store: memory.New(), delay: 5 * time.Millisecond}, nil, nil)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dupe int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "t1", "Ana", "ana@example.com", "secret1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, lib.ErrUserExists):
				dupe++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 5, dupe)
	assert.Len(t, svc.Users(ctx, "t1"), 1)
}
