// Package library owns the per-tenant key schema on top of a kv.Store:
// the current result, the recent-results ledger, notes, chats, users and
// their saved analysis sessions.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/pyq-analyzer/internal/application"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/kv"
	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
)

type Service struct {
	store kv.Store
	clock application.Clock
	log   *zap.Logger

	RecentLimit int
	ChatLimit   int

	// one mutex per tenant; every read-modify-write of a ledger holds it
	locks sync.Map
}

func NewService(store kv.Store, clock application.Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{
		store:       store,
		clock:       clock,
		log:         logging.OrNop(log).Named("library"),
		RecentLimit: lib.MaxRecentResults,
		ChatLimit:   lib.MaxChatSessions,
	}
}

func key(tenant, k string) string { return tenant + ":" + k }

// lock serializes writers of one tenant. Usage: defer s.lock(tenant)()
func (s *Service) lock(tenant string) func() {
	m, _ := s.locks.LoadOrStore(tenant, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// load decodes the value at k into v. Misses and corrupt values leave v
// untouched; corrupt values are logged.
func (s *Service) load(ctx context.Context, tenant, k string, v any) bool {
	raw, err := s.store.Get(ctx, key(tenant, k))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error("reading key", zap.String("tenant", tenant), zap.String("key", k), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Warn("ignoring corrupt value", zap.String("tenant", tenant), zap.String("key", k), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) save(ctx context.Context, tenant, k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	if err := s.store.Set(ctx, key(tenant, k), string(b)); err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	return nil
}

// plain string values (current user, api keys, flags) are stored raw
func (s *Service) loadString(ctx context.Context, tenant, k string) string {
	raw, err := s.store.Get(ctx, key(tenant, k))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error("reading key", zap.String("tenant", tenant), zap.String("key", k), zap.Error(err))
		}
		return ""
	}
	return raw
}

func (s *Service) saveString(ctx context.Context, tenant, k, v string) error {
	if err := s.store.Set(ctx, key(tenant, k), v); err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, tenant, k string) error {
	if err := s.store.Delete(ctx, key(tenant, k)); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", k, err)
	}
	return nil
}

// ---- current result ----

// SaveResult stores res as the current result and records it in the recent
// ledger under name.
func (s *Service) SaveResult(ctx context.Context, tenant, name string, res questions.AnalysisResult) error {
	defer s.lock(tenant)()
	if err := s.setCurrent(ctx, tenant, res); err != nil {
		return err
	}
	return s.pushRecent(ctx, tenant, name, res)
}

func (s *Service) setCurrent(ctx context.Context, tenant string, res questions.AnalysisResult) error {
	if err := s.save(ctx, tenant, lib.KeyQuestions, nonNilQuestions(res.Questions)); err != nil {
		return err
	}
	return s.save(ctx, tenant, lib.KeyTopics, nonNilTopics(res.Topics))
}

// CurrentResult returns the stored result; empty when nothing was saved.
func (s *Service) CurrentResult(ctx context.Context, tenant string) questions.AnalysisResult {
	var res questions.AnalysisResult
	s.load(ctx, tenant, lib.KeyQuestions, &res.Questions)
	s.load(ctx, tenant, lib.KeyTopics, &res.Topics)
	res.Questions = nonNilQuestions(res.Questions)
	res.Topics = nonNilTopics(res.Topics)
	return res
}

// Questions filters the current questions. Empty filter fields match all.
func (s *Service) Questions(ctx context.Context, tenant string, f questions.Filter) []questions.Question {
	all := s.CurrentResult(ctx, tenant).Questions
	out := make([]questions.Question, 0, len(all))
	for _, q := range all {
		if Match(q, f) {
			out = append(out, q)
		}
	}
	return out
}

// Match reports whether q passes every non-empty filter field.
func Match(q questions.Question, f questions.Filter) bool {
	if f.Subject != "" && !strings.EqualFold(q.Subject, f.Subject) {
		return false
	}
	if f.Year != "" && q.Year != f.Year {
		return false
	}
	if f.Topic != "" && !containsFold(q.Topics, f.Topic) && !containsFold(q.Keywords, f.Topic) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(q.Text), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

func (s *Service) Topics(ctx context.Context, tenant string) []questions.QuestionTopic {
	return s.CurrentResult(ctx, tenant).Topics
}

// ClearResult drops the current questions and topics. The recent ledger
// is kept.
func (s *Service) ClearResult(ctx context.Context, tenant string) error {
	defer s.lock(tenant)()
	if err := s.remove(ctx, tenant, lib.KeyQuestions); err != nil {
		return err
	}
	return s.remove(ctx, tenant, lib.KeyTopics)
}

// ---- recent results ----

func (s *Service) RecentResults(ctx context.Context, tenant string) []questions.RecentResult {
	var list []questions.RecentResult
	s.load(ctx, tenant, lib.KeyRecentResults, &list)
	if list == nil {
		list = []questions.RecentResult{}
	}
	return list
}

// pushRecent puts a snapshot at the front. An entry with the same question
// count and first question id is the same result: it is replaced.
func (s *Service) pushRecent(ctx context.Context, tenant, name string, res questions.AnalysisResult) error {
	list := s.RecentResults(ctx, tenant)
	entry := questions.RecentResult{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Timestamp: s.clock.Now(),
		Result:    res,
	}
	if entry.Name == "" {
		entry.Name = "Analysis " + entry.Timestamp.Format("2006-01-02 15:04")
	}

	kept := make([]questions.RecentResult, 0, len(list)+1)
	kept = append(kept, entry)
	for _, r := range list {
		if sameResult(r.Result, res) {
			continue
		}
		kept = append(kept, r)
	}
	limit := s.RecentLimit
	if limit <= 0 {
		limit = lib.MaxRecentResults
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return s.save(ctx, tenant, lib.KeyRecentResults, kept)
}

func sameResult(a, b questions.AnalysisResult) bool {
	if len(a.Questions) != len(b.Questions) {
		return false
	}
	if len(a.Questions) == 0 {
		return true
	}
	return a.Questions[0].ID == b.Questions[0].ID
}

// LoadRecent restores a ledger entry as the current result.
func (s *Service) LoadRecent(ctx context.Context, tenant, id string) (*questions.RecentResult, error) {
	defer s.lock(tenant)()
	for _, r := range s.RecentResults(ctx, tenant) {
		if r.ID == id {
			if err := s.setCurrent(ctx, tenant, r.Result); err != nil {
				return nil, err
			}
			return &r, nil
		}
	}
	return nil, fmt.Errorf("recent result %s: %w", id, lib.ErrNotFound)
}

// ---- saved notes ----

func (s *Service) Notes(ctx context.Context, tenant string) []lib.SavedNote {
	var notes []lib.SavedNote
	s.load(ctx, tenant, lib.KeySavedNotes, &notes)
	if notes == nil {
		notes = []lib.SavedNote{}
	}
	return notes
}

// SaveNote adds a note; saving the same URL again updates the entry.
func (s *Service) SaveNote(ctx context.Context, tenant string, n lib.SavedNote) (lib.SavedNote, error) {
	defer s.lock(tenant)()
	n.Title = strings.TrimSpace(n.Title)
	n.URL = strings.TrimSpace(n.URL)
	if n.URL == "" {
		return lib.SavedNote{}, fmt.Errorf("note url is required: %w", lib.ErrInvalid)
	}
	if n.Title == "" {
		n.Title = n.URL
	}
	n.SavedAt = s.clock.Now()

	notes := s.Notes(ctx, tenant)
	out := []lib.SavedNote{}
	for _, existing := range notes {
		if existing.URL == n.URL {
			n.ID = existing.ID
			continue
		}
		out = append(out, existing)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	out = append([]lib.SavedNote{n}, out...)
	if err := s.save(ctx, tenant, lib.KeySavedNotes, out); err != nil {
		return lib.SavedNote{}, err
	}
	return n, nil
}

func (s *Service) DeleteNote(ctx context.Context, tenant, id string) error {
	defer s.lock(tenant)()
	notes := s.Notes(ctx, tenant)
	out := make([]lib.SavedNote, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	if len(out) == len(notes) {
		return fmt.Errorf("note %s: %w", id, lib.ErrNotFound)
	}
	return s.save(ctx, tenant, lib.KeySavedNotes, out)
}

// ---- chat sessions ----

func (s *Service) Chats(ctx context.Context, tenant string) []lib.ChatSession {
	var chats []lib.ChatSession
	s.load(ctx, tenant, lib.KeyChatSessions, &chats)
	if chats == nil {
		chats = []lib.ChatSession{}
	}
	return chats
}

func (s *Service) CreateChat(ctx context.Context, tenant, title string) (lib.ChatSession, error) {
	defer s.lock(tenant)()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New chat"
	}
	chat := lib.ChatSession{ID: uuid.NewString(), Title: title, Messages: []lib.ChatMessage{}, UpdatedAt: s.clock.Now()}
	if err := s.saveChats(ctx, tenant, append([]lib.ChatSession{chat}, s.Chats(ctx, tenant)...)); err != nil {
		return lib.ChatSession{}, err
	}
	return chat, nil
}

// AppendMessage adds a message and moves the chat to the front.
func (s *Service) AppendMessage(ctx context.Context, tenant, chatID, role, content string) (lib.ChatSession, error) {
	defer s.lock(tenant)()
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "user" && role != "assistant" && role != "system" {
		return lib.ChatSession{}, fmt.Errorf("role %q: %w", role, lib.ErrInvalid)
	}
	if strings.TrimSpace(content) == "" {
		return lib.ChatSession{}, fmt.Errorf("message content is required: %w", lib.ErrInvalid)
	}

	chats := s.Chats(ctx, tenant)
	for i, c := range chats {
		if c.ID != chatID {
			continue
		}
		now := s.clock.Now()
		c.Messages = append(c.Messages, lib.ChatMessage{Role: role, Content: content, At: now})
		c.UpdatedAt = now
		rest := append(append([]lib.ChatSession{}, chats[:i]...), chats[i+1:]...)
		if err := s.saveChats(ctx, tenant, append([]lib.ChatSession{c}, rest...)); err != nil {
			return lib.ChatSession{}, err
		}
		return c, nil
	}
	return lib.ChatSession{}, fmt.Errorf("chat %s: %w", chatID, lib.ErrNotFound)
}

func (s *Service) saveChats(ctx context.Context, tenant string, chats []lib.ChatSession) error {
	limit := s.ChatLimit
	if limit <= 0 {
		limit = lib.MaxChatSessions
	}
	if len(chats) > limit {
		chats = chats[:limit]
	}
	return s.save(ctx, tenant, lib.KeyChatSessions, chats)
}

// ---- users ----

// Users returns accounts without password hashes.
func (s *Service) Users(ctx context.Context, tenant string) []lib.User {
	users := s.users(ctx, tenant)
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users
}

func (s *Service) users(ctx context.Context, tenant string) []lib.User {
	var users []lib.User
	s.load(ctx, tenant, lib.KeyUsers, &users)
	if users == nil {
		users = []lib.User{}
	}
	return users
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, tenant, name, email, password string) (lib.User, error) {
	defer s.lock(tenant)()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return lib.User{}, fmt.Errorf("email %q: %w", email, lib.ErrInvalid)
	}
	if len(password) < 6 {
		return lib.User{}, fmt.Errorf("password must have at least 6 characters: %w", lib.ErrInvalid)
	}

	users := s.users(ctx, tenant)
	for _, u := range users {
		if u.Email == email {
			return lib.User{}, fmt.Errorf("%s: %w", email, lib.ErrUserExists)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return lib.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := lib.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.save(ctx, tenant, lib.KeyUsers, append(users, u)); err != nil {
		return lib.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// Login checks credentials and marks the user as current.
func (s *Service) Login(ctx context.Context, tenant, email, password string) (lib.User, error) {
	defer s.lock(tenant)()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users(ctx, tenant) {
		if u.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			break
		}
		if err := s.saveString(ctx, tenant, lib.KeyCurrentUser, u.ID); err != nil {
			return lib.User{}, err
		}
		u.PasswordHash = ""
		return u, nil
	}
	return lib.User{}, lib.ErrInvalidCredentials
}

func (s *Service) Logout(ctx context.Context, tenant string) error {
	defer s.lock(tenant)()
	return s.remove(ctx, tenant, lib.KeyCurrentUser)
}

// CurrentUser returns the logged-in user.
func (s *Service) CurrentUser(ctx context.Context, tenant string) (lib.User, error) {
	id := s.loadString(ctx, tenant, lib.KeyCurrentUser)
	if id == "" {
		return lib.User{}, fmt.Errorf("current user: %w", lib.ErrNotFound)
	}
	return s.User(ctx, tenant, id)
}

func (s *Service) User(ctx context.Context, tenant, id string) (lib.User, error) {
	for _, u := range s.users(ctx, tenant) {
		if u.ID == id {
			u.PasswordHash = ""
			return u, nil
		}
	}
	return lib.User{}, fmt.Errorf("user %s: %w", id, lib.ErrNotFound)
}

// ---- analysis sessions per user ----

func (s *Service) AnalysisSessions(ctx context.Context, tenant, userID string) []lib.AnalysisSession {
	var list []lib.AnalysisSession
	s.load(ctx, tenant, lib.AnalysisSessionsKey(userID), &list)
	if list == nil {
		list = []lib.AnalysisSession{}
	}
	return list
}

// SaveAnalysisSession stores res under the user. An empty result is taken
// from the current one.
func (s *Service) SaveAnalysisSession(ctx context.Context, tenant, userID, name string, res *questions.AnalysisResult) (lib.AnalysisSession, error) {
	defer s.lock(tenant)()
	if _, err := s.User(ctx, tenant, userID); err != nil {
		return lib.AnalysisSession{}, err
	}
	if res.Empty() {
		cur := s.CurrentResult(ctx, tenant)
		res = &cur
	}
	if res.Empty() {
		return lib.AnalysisSession{}, fmt.Errorf("nothing to save: %w", questions.ErrNoQuestions)
	}
	sess := lib.AnalysisSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Result:    *res,
		CreatedAt: s.clock.Now(),
	}
	if sess.Name == "" {
		sess.Name = "Session " + sess.CreatedAt.Format("2006-01-02 15:04")
	}
	list := append([]lib.AnalysisSession{sess}, s.AnalysisSessions(ctx, tenant, userID)...)
	if err := s.save(ctx, tenant, lib.AnalysisSessionsKey(userID), list); err != nil {
		return lib.AnalysisSession{}, err
	}
	return sess, nil
}

// ---- settings ----

func (s *Service) APIKey(ctx context.Context, tenant, provider string) string {
	return s.loadString(ctx, tenant, lib.APIKeyKey(provider))
}

func (s *Service) SetAPIKey(ctx context.Context, tenant, provider, value string) error {
	defer s.lock(tenant)()
	if strings.TrimSpace(value) == "" {
		return s.remove(ctx, tenant, lib.APIKeyKey(provider))
	}
	return s.saveString(ctx, tenant, lib.APIKeyKey(provider), strings.TrimSpace(value))
}

// Flag reads a boolean setting stored as "true"/"false".
func (s *Service) Flag(ctx context.Context, tenant, name string) bool {
	b, _ := strconv.ParseBool(s.loadString(ctx, tenant, lib.FlagKey(name)))
	return b
}

func (s *Service) SetFlag(ctx context.Context, tenant, name string, on bool) error {
	defer s.lock(tenant)()
	return s.saveString(ctx, tenant, lib.FlagKey(name), strconv.FormatBool(on))
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func nonNilQuestions(qs []questions.Question) []questions.Question {
	if qs == nil {
		return []questions.Question{}
	}
	return qs
}

func nonNilTopics(ts []questions.QuestionTopic) []questions.QuestionTopic {
	if ts == nil {
		return []questions.QuestionTopic{}
	}
	return ts
}
