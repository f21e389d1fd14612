package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/middleware"
)

// GET /v1/{tenant}/questions?subject=&year=&topic=&q=
func (r *Router) handleQuestions(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	f := questions.Filter{
		Subject: q.Get("subject"),
		Year:    q.Get("year"),
		Topic:   q.Get("topic"),
		Query:   q.Get("q"),
	}
	return writeJSON(w, http.StatusOK, r.library.Questions(req.Context(), tenantOf(req), f))
}

// DELETE /v1/{tenant}/questions
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	if err := r.library.ClearResult(req.Context(), tenantOf(req)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/{tenant}/topics
func (r *Router) handleTopics(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.library.Topics(req.Context(), tenantOf(req)))
}

// GET /v1/{tenant}/recent
func (r *Router) handleRecent(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.library.RecentResults(req.Context(), tenantOf(req)))
}

// GET /v1/{tenant}/recent/{id}
func (r *Router) handleLoadRecent(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.library.LoadRecent(req.Context(), tenantOf(req), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

func (r *Router) handleNotes(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.library.Notes(req.Context(), tenantOf(req)))
}

// POST /v1/{tenant}/notes
// Body: {"title": "...", "url": "...", "subject": "..."}
func (r *Router) handleSaveNote(w http.ResponseWriter, req *http.Request) error {
	var body lib.SavedNote
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	body.Title = middleware.SanitizeString(body.Title)
	body.Subject = middleware.SanitizeString(body.Subject)
	n, err := r.library.SaveNote(req.Context(), tenantOf(req), body)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, n)
}

func (r *Router) handleDeleteNote(w http.ResponseWriter, req *http.Request) error {
	if err := r.library.DeleteNote(req.Context(), tenantOf(req), chi.URLParam(req, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (r *Router) handleChats(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.library.Chats(req.Context(), tenantOf(req)))
}

// POST /v1/{tenant}/chats
// Body: {"title": "..."}
func (r *Router) handleCreateChat(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	chat, err := r.library.CreateChat(req.Context(), tenantOf(req), middleware.SanitizeString(body.Title))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, chat)
}

// POST /v1/{tenant}/chats/{id}/messages
// Body: {"role": "user", "content": "..."}
func (r *Router) handleAppendMessage(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	chat, err := r.library.AppendMessage(req.Context(), tenantOf(req), chi.URLParam(req, "id"), body.Role, body.Content)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, chat)
}

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.library.Users(req.Context(), tenantOf(req)))
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /v1/{tenant}/users
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	var body credentials
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	u, err := r.library.Register(req.Context(), tenantOf(req), middleware.SanitizeString(body.Name), body.Email, body.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, u)
}

// PUT /v1/{tenant}/session
// Body: {"email": "...", "password": "..."}
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body credentials
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	u, err := r.library.Login(req.Context(), tenantOf(req), body.Email, body.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, u)
}

func (r *Router) handleCurrentUser(w http.ResponseWriter, req *http.Request) error {
	u, err := r.library.CurrentUser(req.Context(), tenantOf(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, u)
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) error {
	if err := r.library.Logout(req.Context(), tenantOf(req)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (r *Router) handleSessions(w http.ResponseWriter, req *http.Request) error {
	tenant, userID := tenantOf(req), chi.URLParam(req, "userID")
	if _, err := r.library.User(req.Context(), tenant, userID); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.library.AnalysisSessions(req.Context(), tenant, userID))
}

// POST /v1/{tenant}/users/{userID}/sessions
// Body: {"name": "...", "result": {...}}; without result the current one is saved.
func (r *Router) handleSaveSession(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name   string                    `json:"name"`
		Result *questions.AnalysisResult `json:"result"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	sess, err := r.library.SaveAnalysisSession(req.Context(), tenantOf(req), chi.URLParam(req, "userID"),
		middleware.SanitizeString(body.Name), body.Result)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, sess)
}

// PUT /v1/{tenant}/settings/api-keys/{provider}
// Body: {"value": "..."}; empty value removes the key.
func (r *Router) handleSetAPIKey(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	if err := r.library.SetAPIKey(req.Context(), tenantOf(req), chi.URLParam(req, "provider"), body.Value); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (r *Router) handleFlag(w http.ResponseWriter, req *http.Request) error {
	name := chi.URLParam(req, "name")
	return writeJSON(w, http.StatusOK, map[string]any{"name": name, "enabled": r.library.Flag(req.Context(), tenantOf(req), name)})
}

// PUT /v1/{tenant}/settings/flags/{name}?enabled=true
func (r *Router) handleSetFlag(w http.ResponseWriter, req *http.Request) error {
	name := chi.URLParam(req, "name")
	on, err := strconv.ParseBool(req.URL.Query().Get("enabled"))
	if err != nil {
		return invalid("enabled must be true or false")
	}
	if err := r.library.SetFlag(req.Context(), tenantOf(req), name, on); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"name": name, "enabled": on})
}
