package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/validation"
)

var (
	ErrConfirmationRequired = errors.New("deletion requires confirmation")
	ErrNotFound             = errors.New("task not found")
)

// ViewState is the per-user presentation state that survives between requests.
type ViewState struct {
	Filter   Filter   `json:"filter"`
	Search   string   `json:"search"`
	Sort     Sort     `json:"sort"`
	Mode     ViewMode `json:"mode"`
	Selected []uint   `json:"selected"`
}

// DefaultViewState shows every task, newest first, as a list.
func DefaultViewState() ViewState {
	return ViewState{Filter: FilterAll, Sort: SortNewest, Mode: ModeList}
}

// Normalize replaces unknown values with the defaults.
func (s ViewState) Normalize() ViewState {
	d := DefaultViewState()
	if !s.Filter.Valid() {
		s.Filter = d.Filter
	}
	if !s.Sort.Valid() {
		s.Sort = d.Sort
	}
	if !s.Mode.Valid() {
		s.Mode = d.Mode
	}
	return s
}

// Form is what the create/edit form submits.
type Form struct {
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	DueDate     *Date           `json:"due_date"`
	Priority    models.Priority `json:"priority"`
}

// Validate requires a title and a known priority.
func (f Form) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", f.Title, v)
	if !f.Priority.Valid() {
		v["priority"] = "invalid_choice"
	}
	return v
}

// Manager holds one user's tasks and view state for the duration of a request.
type Manager struct {
	store tablestore.Client
	gate  authgate.Gate
	memo  *Memo
	now   func() time.Time

	tasks     []Task
	version   uint64
	state     ViewState
	selection Selection
}

// NewManager builds a manager. memo may be nil, in which case nothing is cached.
func NewManager(store tablestore.Client, gate authgate.Gate, memo *Memo) *Manager {
	return &Manager{
		store:     store,
		gate:      gate,
		memo:      memo,
		now:       time.Now,
		state:     DefaultViewState(),
		selection: Selection{},
	}
}

// LoadTasks fetches the user's tasks, newest first. On failure the list is emptied.
func (m *Manager) LoadTasks(ctx context.Context, userID uint) ([]Task, error) {
	var rows []Task
	err := m.store.Select(ctx, models.TableTodos, &rows, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("user_id", userID)},
		Order:   "created_at desc",
	})
	if err != nil {
		m.setTasks(nil)
		return nil, fmt.Errorf("Error loading tasks: %w", err)
	}
	m.setTasks(rows)
	m.selection.Retain(m.View())
	return rows, nil
}

func (m *Manager) setTasks(tasks []Task) {
	m.tasks = tasks
	m.version = Version(tasks)
}

// Tasks returns the full in-memory list.
func (m *Manager) Tasks() []Task { return m.tasks }

// Version identifies the current list contents.
func (m *Manager) Version() uint64 { return m.version }

// State returns the current view state with the selection folded in.
func (m *Manager) State() ViewState {
	s := m.state
	s.Selected = m.Selected()
	return s
}

// SetState replaces the view state, typically restored from a viewstate.Store.
func (m *Manager) SetState(s ViewState) {
	s = s.Normalize()
	m.selection = NewSelection(s.Selected...)
	s.Selected = nil
	m.state = s
	if m.tasks != nil {
		m.selection.Retain(m.View())
	}
}

// SetView changes filter, search and sort. Empty values keep the current ones.
// Selected tasks that drop out of the new view are deselected.
func (m *Manager) SetView(filter Filter, search *string, sort Sort) {
	if filter.Valid() {
		m.state.Filter = filter
	}
	if search != nil {
		m.state.Search = *search
	}
	if sort.Valid() {
		m.state.Sort = sort
	}
	m.selection.Retain(m.View())
}

// SetMode switches between list and calendar.
func (m *Manager) SetMode(mode ViewMode) {
	if mode.Valid() {
		m.state.Mode = mode
	}
}

// ToggleMode flips the view mode.
func (m *Manager) ToggleMode() ViewMode {
	m.state.Mode = m.state.Mode.Toggle()
	return m.state.Mode
}

// View is the filtered, searched and sorted list.
func (m *Manager) View() []Task {
	if m.memo == nil {
		return DeriveView(m.tasks, m.state.Filter, m.state.Search, m.state.Sort)
	}
	return m.memo.View(m.version, m.tasks, m.state.Filter, m.state.Search, m.state.Sort)
}

// Stats summarises the full list.
func (m *Manager) Stats() Stats {
	if m.memo == nil {
		return ComputeStats(m.tasks, m.now())
	}
	return m.memo.Stats(m.version, m.tasks, m.now())
}

// Calendar is the current view laid out by due day.
func (m *Manager) Calendar() []CalendarDay { return Calendar(m.View()) }

// Selected returns the selected ids of the current view in ascending order.
// A selected task that left the view, say by being completed under the active
// filter, is not reported.
func (m *Manager) Selected() []uint {
	visible := NewSelection(IDs(m.View())...)
	ids := make([]uint, 0, len(m.selection))
	for _, id := range m.selection.IDs() {
		if visible.Has(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ToggleSelect flips one task of the current view in the selection. Ids the
// view does not show give ErrNotFound.
func (m *Manager) ToggleSelect(id uint) error {
	if !slices.ContainsFunc(m.View(), func(t Task) bool { return t.ID == id }) {
		return ErrNotFound
	}
	m.selection.ToggleSelect(id)
	return nil
}

// SelectAll toggles every task of the current view.
func (m *Manager) SelectAll() { m.selection.SelectAll(m.View()) }

func (m *Manager) requireUser(ctx context.Context) (uint, error) {
	user, err := m.gate.CurrentUser(ctx)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, auth.ErrSessionExpired
	}
	return user.ID, nil
}

func (m *Manager) indexOf(id uint) int {
	for i, t := range m.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ToggleCompletion flips a task's completed flag with a single row update.
func (m *Manager) ToggleCompletion(ctx context.Context, id uint) (Task, error) {
	i := m.indexOf(id)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	userID, err := m.requireUser(ctx)
	if err != nil {
		return Task{}, err
	}
	t := m.tasks[i]
	t.Completed = !t.Completed
	t.UpdatedAt = m.now()
	n, err := m.store.Update(ctx, models.TableTodos,
		map[string]any{"completed": t.Completed, "updated_at": t.UpdatedAt},
		tablestore.Eq("id", id), tablestore.Eq("user_id", userID))
	if err != nil {
		return Task{}, fmt.Errorf("Error updating task: %w", err)
	}
	if n == 0 {
		return Task{}, ErrNotFound
	}
	m.replace(i, t)
	return t, nil
}

// CreateOrUpdateTask updates the task with id editing, or creates a task when
// editing is nil. The user is resolved again at submit time. Nothing changes
// locally when the write fails.
func (m *Manager) CreateOrUpdateTask(ctx context.Context, form Form, editing *uint) (Task, error) {
	form.Title = strings.TrimSpace(form.Title)
	if form.Description != nil && strings.TrimSpace(*form.Description) == "" {
		form.Description = nil
	}
	if err := form.Validate().Err(); err != nil {
		return Task{}, err
	}
	userID, err := m.requireUser(ctx)
	if err != nil {
		return Task{}, err
	}

	if editing != nil {
		i := m.indexOf(*editing)
		if i < 0 {
			return Task{}, ErrNotFound
		}
		t := m.tasks[i]
		t.Title, t.Description, t.DueDate, t.Priority = form.Title, form.Description, form.DueDate.Ptr(), form.Priority
		t.UpdatedAt = m.now()
		n, err := m.store.Update(ctx, models.TableTodos, map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"due_date":    t.DueDate,
			"priority":    t.Priority,
			"updated_at":  t.UpdatedAt,
		}, tablestore.Eq("id", t.ID), tablestore.Eq("user_id", userID))
		if err != nil {
			return Task{}, fmt.Errorf("Error updating task: %w", err)
		}
		if n == 0 {
			return Task{}, ErrNotFound
		}
		m.replace(i, t)
		return t, nil
	}

	t := Task{
		UserID:      userID,
		Title:       form.Title,
		Description: form.Description,
		DueDate:     form.DueDate.Ptr(),
		Priority:    form.Priority,
	}
	if err := m.store.Insert(ctx, models.TableTodos, &t); err != nil {
		return Task{}, fmt.Errorf("Error creating task: %w", err)
	}
	m.setTasks(append([]Task{t}, m.tasks...))
	return t, nil
}

func (m *Manager) replace(i int, t Task) {
	next := append([]Task(nil), m.tasks...)
	next[i] = t
	m.setTasks(next)
}

// DeleteTask removes one task after confirmation.
func (m *Manager) DeleteTask(ctx context.Context, id uint, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	userID, err := m.requireUser(ctx)
	if err != nil {
		return err
	}
	_, err = m.store.Delete(ctx, models.TableTodos, &Task{}, tablestore.Eq("id", id), tablestore.Eq("user_id", userID))
	if errors.Is(err, tablestore.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("Error deleting task: %w", err)
	}
	m.removeAll(NewSelection(id))
	return nil
}

// BulkComplete marks every id complete in one write, reconciles the list in
// one pass and clears the selection. An empty id list is a no-op.
func (m *Manager) BulkComplete(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	userID, err := m.requireUser(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	_, err = m.store.Update(ctx, models.TableTodos,
		map[string]any{"completed": true, "updated_at": now},
		tablestore.Eq("user_id", userID), tablestore.In("id", ids))
	if err != nil {
		return fmt.Errorf("Error updating tasks: %w", err)
	}

	set := NewSelection(ids...)
	next := make([]Task, len(m.tasks))
	for i, t := range m.tasks {
		if set.Has(t.ID) {
			t.Completed = true
			t.UpdatedAt = now
		}
		next[i] = t
	}
	m.setTasks(next)
	m.selection.Clear()
	return nil
}

// BulkDelete removes every id in one write after confirmation, then clears the
// selection. An empty id list is a no-op.
func (m *Manager) BulkDelete(ctx context.Context, ids []uint, confirmed bool) error {
	if len(ids) == 0 {
		return nil
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	userID, err := m.requireUser(ctx)
	if err != nil {
		return err
	}
	_, err = m.store.Delete(ctx, models.TableTodos, &Task{},
		tablestore.Eq("user_id", userID), tablestore.In("id", ids))
	if err != nil && !errors.Is(err, tablestore.ErrNoRows) {
		return fmt.Errorf("Error deleting tasks: %w", err)
	}
	m.removeAll(NewSelection(ids...))
	m.selection.Clear()
	return nil
}

func (m *Manager) removeAll(ids Selection) {
	next := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !ids.Has(t.ID) {
			next = append(next, t)
		}
	}
	m.setTasks(next)
	for id := range ids {
		delete(m.selection, id)
	}
}
