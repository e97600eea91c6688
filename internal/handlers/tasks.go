package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/notice"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/internal/tasks"
	"github.com/diewo77/go-backoffice/internal/viewstate"
	"github.com/diewo77/go-backoffice/view"
)

const taskStateName = "tasks"

// TaskHandler serves the task manager. Each request loads the user's tasks and
// the persisted view state into a fresh Manager.
type TaskHandler struct {
	store  tablestore.Client
	gate   authgate.Gate
	memo   *tasks.Memo
	states viewstate.Store
	now    func() time.Time
}

func NewTaskHandler(store tablestore.Client, gate authgate.Gate, memo *tasks.Memo, states viewstate.Store) *TaskHandler {
	return &TaskHandler{store: store, gate: gate, memo: memo, states: states, now: time.Now}
}

type taskPage struct {
	Tasks    []tasks.Task        `json:"tasks"`
	Stats    tasks.Stats         `json:"stats"`
	State    tasks.ViewState     `json:"state"`
	Calendar []tasks.CalendarDay `json:"calendar,omitempty"`
	Banner   *notice.Banner      `json:"banner,omitempty"`
}

// manager builds a Manager for the signed-in user. A failed load leaves the
// list empty and is returned so callers can show the banner.
func (h *TaskHandler) manager(r *http.Request) (*tasks.Manager, error) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)
	m := tasks.NewManager(h.store, h.gate, h.memo)

	_, loadErr := m.LoadTasks(ctx, userID)

	state := tasks.DefaultViewState()
	if h.states != nil {
		if _, err := h.states.Load(ctx, viewstate.Key(userID, taskStateName), &state); err != nil {
			slog.WarnContext(ctx, "load task view state", "user_id", userID, "error", err)
			state = tasks.DefaultViewState()
		}
	}
	m.SetState(state)
	return m, loadErr
}

func (h *TaskHandler) saveState(r *http.Request, m *tasks.Manager) {
	if h.states == nil {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.states.Save(r.Context(), viewstate.Key(userID, taskStateName), m.State()); err != nil {
		slog.WarnContext(r.Context(), "save task view state", "user_id", userID, "error", err)
	}
}

func (h *TaskHandler) page(m *tasks.Manager, banner *notice.Banner) taskPage {
	p := taskPage{
		Tasks:  m.View(),
		Stats:  m.Stats(),
		State:  m.State(),
		Banner: banner,
	}
	if p.Tasks == nil {
		p.Tasks = []tasks.Task{}
	}
	if p.State.Mode == tasks.ModeCalendar {
		p.Calendar = m.Calendar()
	}
	return p
}

// List shows the derived view, the stats and the view-mode payload.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := h.manager(r)
	var banner *notice.Banner
	if err != nil {
		slog.WarnContext(r.Context(), "load tasks", "error", err)
		b := notice.Error(err, h.now())
		banner = &b
	}
	p := h.page(m, banner)

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, p)
		return
	}
	data := map[string]any{
		"View":     p.Tasks,
		"Stats":    p.Stats,
		"State":    p.State,
		"Calendar": p.Calendar,
	}
	if banner != nil {
		data["Banner"] = *banner
	}
	if err := view.Render(w, r, "tasks.html", data); err != nil {
		http.Error(w, "Failed to render template: "+err.Error(), http.StatusInternalServerError)
	}
}

type viewRequest struct {
	Filter tasks.Filter   `json:"filter"`
	Search *string        `json:"search"`
	Sort   tasks.Sort     `json:"sort"`
	Mode   tasks.ViewMode `json:"mode"`
	// ToggleMode flips list/calendar and wins over Mode.
	ToggleMode bool `json:"toggle_mode"`
}

// SetView updates filter, search, sort and view mode. Omitted fields keep
// their current value.
func (h *TaskHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m.SetView(req.Filter, req.Search, req.Sort)
	if req.ToggleMode {
		m.ToggleMode()
	} else {
		m.SetMode(req.Mode)
	}
	h.saveState(r, m)
	httpx.JSON(w, http.StatusOK, h.page(m, nil))
}

// Create adds a task for the signed-in user.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, nil)
}

// Update edits an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.submit(w, r, &id)
}

type taskResponse struct {
	Task   tasks.Task    `json:"task"`
	Stats  tasks.Stats   `json:"stats"`
	Banner notice.Banner `json:"banner"`
}

func (h *TaskHandler) submit(w http.ResponseWriter, r *http.Request, editing *uint) {
	var form tasks.Form
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := m.CreateOrUpdateTask(r.Context(), form, editing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, msg := http.StatusOK, "Task updated"
	if editing == nil {
		status, msg = http.StatusCreated, "Task created"
	}
	httpx.JSON(w, status, taskResponse{Task: t, Stats: m.Stats(), Banner: notice.Success(msg, h.now())})
}

// Toggle flips a task's completion.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := m.ToggleCompletion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Task reopened"
	if t.Completed {
		msg = "Task completed"
	}
	httpx.JSON(w, http.StatusOK, taskResponse{Task: t, Stats: m.Stats(), Banner: notice.Success(msg, h.now())})
}

// Delete removes one task. Requires ?confirm=1.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := m.DeleteTask(r.Context(), id, confirmed(r)); err != nil {
		writeError(w, r, err)
		return
	}
	h.saveState(r, m)
	httpx.JSON(w, http.StatusOK, h.page(m, bannerPtr(notice.Success("Task deleted", h.now()))))
}

type selectRequest struct {
	ID uint `json:"id"`
}

// Select toggles one task in the persisted selection.
func (h *TaskHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "id is required")
		return
	}
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := m.ToggleSelect(req.ID); err != nil {
		writeError(w, r, err)
		return
	}
	h.saveState(r, m)
	httpx.JSON(w, http.StatusOK, map[string]any{"selected": nonNil(m.Selected())})
}

// SelectAll selects every task of the current view, or clears them when all
// were already selected.
func (h *TaskHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m.SelectAll()
	h.saveState(r, m)
	httpx.JSON(w, http.StatusOK, map[string]any{"selected": nonNil(m.Selected())})
}

// BulkComplete marks the selection complete in one write.
func (h *TaskHandler) BulkComplete(w http.ResponseWriter, r *http.Request) {
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids := m.Selected()
	if err := m.BulkComplete(r.Context(), ids); err != nil {
		writeError(w, r, err)
		return
	}
	h.saveState(r, m)
	httpx.JSON(w, http.StatusOK, h.page(m, bannerPtr(notice.Success(plural(len(ids), "task")+" completed", h.now()))))
}

// BulkDelete removes the selection in one write. Requires ?confirm=1.
func (h *TaskHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	m, err := h.manager(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids := m.Selected()
	if err := m.BulkDelete(r.Context(), ids, confirmed(r)); err != nil {
		writeError(w, r, err)
		return
	}
	h.saveState(r, m)
	httpx.JSON(w, http.StatusOK, h.page(m, bannerPtr(notice.Success(plural(len(ids), "task")+" deleted", h.now()))))
}

func bannerPtr(b notice.Banner) *notice.Banner { return &b }

func nonNil(ids []uint) []uint {
	if ids == nil {
		return []uint{}
	}
	return ids
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
