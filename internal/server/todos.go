package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/mokuji/internal/models"
)

// todoList is an in-memory task list used by the demo frontend. State is
// per-process and resets on restart.
type todoList struct {
	mu     sync.Mutex
	items  []*models.Todo
	nextID int
}

func newTodoList() *todoList {
	return &todoList{
		items: []*models.Todo{
			{ID: 1, Title: "Set up course catalog", Completed: true},
			{ID: 2, Title: "Upload first SCORM package", Completed: false},
			{ID: 3, Title: "Review enrichment output", Completed: false},
		},
		nextID: 4,
	}
}

func (l *todoList) all() []*models.Todo {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Todo, len(l.items))
	copy(out, l.items)
	return out
}

func (l *todoList) get(id int) (*models.Todo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.items {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

func (l *todoList) create(title string) *models.Todo {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := &models.Todo{ID: l.nextID, Title: title}
	l.nextID++
	l.items = append(l.items, t)
	return t
}

func (l *todoList) update(id int, title *string, completed *bool) (*models.Todo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.items {
		if t.ID == id {
			if title != nil {
				t.Title = *title
			}
			if completed != nil {
				t.Completed = *completed
			}
			return t, true
		}
	}
	return nil, false
}

func (l *todoList) delete(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.items {
		if t.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"todos": s.todos.all()})
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid todo id")
		return
	}
	todo, ok := s.todos.get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "todo not found")
		return
	}
	s.respondJSON(w, http.StatusOK, todo)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	todo := s.todos.create(body.Title)
	s.respondJSON(w, http.StatusCreated, todo)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid todo id")
		return
	}
	var body struct {
		Title     *string `json:"title"`
		Completed *bool   `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	todo, ok := s.todos.update(id, body.Title, body.Completed)
	if !ok {
		s.respondError(w, http.StatusNotFound, "todo not found")
		return
	}
	s.respondJSON(w, http.StatusOK, todo)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid todo id")
		return
	}
	if !s.todos.delete(id) {
		s.respondError(w, http.StatusNotFound, "todo not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"result": true})
}
