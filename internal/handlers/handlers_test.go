package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/documents"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/internal/tasks"
	"github.com/diewo77/go-backoffice/internal/testutil"
	"github.com/diewo77/go-backoffice/internal/viewstate"
)

type env struct {
	db    *gorm.DB
	store tablestore.Client
	gate  *authgate.SessionGate
	user  models.User
}

func newEnv(t *testing.T) env {
	t.Helper()
	gdb := testutil.NewTestDB(t)
	user := testutil.SeedUser(t, gdb, "owner@test")
	store := tablestore.NewGormClient(gdb)
	return env{db: gdb, store: store, gate: authgate.NewSessionGate(store, 0), user: user}
}

// request builds a JSON request as the given user (0 means anonymous).
func request(t *testing.T, method, target string, body any, userID uint) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Accept", "application/json")
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		r = r.WithContext(auth.WithUserID(r.Context(), userID))
	}
	return r
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{documents.ValidateForSave(documents.Document{}, true), http.StatusUnprocessableEntity},
		{auth.ErrSessionExpired, http.StatusUnauthorized},
		{documents.ErrConfirmationRequired, http.StatusConflict},
		{tasks.ErrConfirmationRequired, http.StatusConflict},
		{tasks.ErrNotFound, http.StatusNotFound},
		{&documents.StepError{Step: documents.StepCreateItems, Err: errors.New("x")}, http.StatusBadGateway},
		{tablestore.ErrNotConfigured, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

// ---- documents ----

type fakeArchive struct {
	key  string
	body []byte
}

func (a *fakeArchive) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	a.key, a.body = key, body
	return "s3://test/" + key, nil
}

func createDocument(t *testing.T, h *DocumentHandler, userID uint) documents.Document {
	t.Helper()
	w := httptest.NewRecorder()
	h.New(w, request(t, "POST", "/documents/new?type=invoice", nil, userID))
	require.Equal(t, http.StatusOK, w.Code)
	draft := decode[documents.Document](t, w)
	draft.CustomerName = "ACME"
	draft.Items = []documents.LineItem{
		{ID: documents.NewTempID(), Description: "Design", Quantity: 2, Price: 10},
		{ID: documents.NewTempID(), Description: "Hosting", Quantity: 1, Price: 5},
	}

	w = httptest.NewRecorder()
	h.Save(w, request(t, "POST", "/documents", draft, userID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[saveResponse](t, w).Document
}

func TestDocumentCreateAndList(t *testing.T) {
	e := newEnv(t)
	h := NewDocumentHandler(e.store, e.gate, nil)

	saved := createDocument(t, h, e.user.ID)
	assert.False(t, saved.IsTemporary())
	assert.Equal(t, "INV-001", saved.Number)
	assert.Equal(t, 25.0, saved.Total)

	w := httptest.NewRecorder()
	h.List(w, request(t, "GET", "/documents", nil, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[documentListResponse](t, w)
	require.Len(t, resp.Documents, 1)
	assert.Nil(t, resp.Banner)
	assert.Len(t, resp.Documents[0].Items, 2)

	// the next draft is numbered after the saved one
	w = httptest.NewRecorder()
	h.New(w, request(t, "POST", "/documents/new?type=invoice", nil, e.user.ID))
	assert.Equal(t, "INV-002", decode[documents.Document](t, w).Number)
}

func TestDocumentListHTML(t *testing.T) {
	e := newEnv(t)
	h := NewDocumentHandler(e.store, e.gate, nil)
	createDocument(t, h, e.user.ID)

	r := httptest.NewRequest("GET", "/documents", nil)
	r = r.WithContext(auth.WithUserID(r.Context(), e.user.ID))
	w := httptest.NewRecorder()
	h.List(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "INV-001")
	assert.Contains(t, w.Body.String(), "25.00")
}

type failingSelect struct{ tablestore.NullClient }

func (failingSelect) Select(context.Context, string, any, tablestore.Query) error {
	return errors.New("offline")
}

func TestDocumentListFailureShowsBanner(t *testing.T) {
	h := NewDocumentHandler(failingSelect{}, authgate.NullGate{}, nil)
	w := httptest.NewRecorder()
	h.List(w, request(t, "GET", "/documents", nil, 1))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[documentListResponse](t, w)
	assert.Empty(t, resp.Documents)
	require.NotNil(t, resp.Banner)
	assert.Equal(t, "Error loading invoices: offline", resp.Banner.Message)
}

func TestDocumentSaveValidation(t *testing.T) {
	e := newEnv(t)
	h := NewDocumentHandler(e.store, e.gate, nil)
	draft := documents.NewDraft(true, 0, time.Now())

	w := httptest.NewRecorder()
	h.Save(w, request(t, "POST", "/documents", draft, e.user.ID))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "validation_failed", resp["error"])
	assert.Equal(t, map[string]any{"customer_name": "required"}, resp["details"])
}

func TestDocumentSaveWithoutSession(t *testing.T) {
	e := newEnv(t)
	h := NewDocumentHandler(e.store, authgate.NullGate{}, nil)
	draft := documents.NewDraft(false, 0, time.Now())
	draft.CustomerName = "ACME"

	w := httptest.NewRecorder()
	h.Save(w, request(t, "POST", "/documents", draft, 0))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentToggleType(t *testing.T) {
	h := NewDocumentHandler(tablestore.NullClient{}, authgate.NullGate{}, nil)
	doc := documents.NewDraft(true, 2, time.Now())

	w := httptest.NewRecorder()
	h.ToggleType(w, request(t, "POST", "/documents/toggle-type", doc, 1))
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[documents.Document](t, w)
	assert.Equal(t, models.TypeQuotation, got.Type)
	assert.Equal(t, "QT-003", got.Number)
}

func TestDocumentItems(t *testing.T) {
	h := NewDocumentHandler(tablestore.NullClient{}, authgate.NullGate{}, nil)
	doc := documents.NewDraft(true, 0, time.Now())
	itemID := doc.Items[0].ID
	qty, price := 3.0, 2.5

	w := httptest.NewRecorder()
	h.Items(w, request(t, "POST", "/documents/items", itemRequest{Document: doc, Op: "update", ItemID: itemID, Quantity: &qty}, 1))
	require.Equal(t, http.StatusOK, w.Code)
	doc = decode[documents.Document](t, w)

	w = httptest.NewRecorder()
	h.Items(w, request(t, "POST", "/documents/items", itemRequest{Document: doc, Op: "update", ItemID: itemID, Price: &price}, 1))
	require.Equal(t, http.StatusOK, w.Code)
	doc = decode[documents.Document](t, w)
	assert.Equal(t, 7.5, doc.Total)

	w = httptest.NewRecorder()
	h.Items(w, request(t, "POST", "/documents/items", itemRequest{Document: doc, Op: "add"}, 1))
	doc = decode[documents.Document](t, w)
	assert.Len(t, doc.Items, 2)

	w = httptest.NewRecorder()
	h.Items(w, request(t, "POST", "/documents/items", itemRequest{Document: doc, Op: "update", ItemID: itemID, Quantity: &qty, Price: &price}, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	neg := -1.0
	w = httptest.NewRecorder()
	h.Items(w, request(t, "POST", "/documents/items", itemRequest{Document: doc, Op: "update", ItemID: itemID, Price: &neg}, 1))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	h.Items(w, request(t, "POST", "/documents/items", itemRequest{Document: doc, Op: "update", ItemID: "missing", Price: &price}, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentDelete(t *testing.T) {
	e := newEnv(t)
	h := NewDocumentHandler(e.store, e.gate, nil)
	saved := createDocument(t, h, e.user.ID)

	r := request(t, "DELETE", "/documents/"+saved.ID, nil, e.user.ID)
	r.SetPathValue("id", saved.ID)
	w := httptest.NewRecorder()
	h.Delete(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)

	r = request(t, "DELETE", "/documents/"+saved.ID+"?confirm=1", nil, e.user.ID)
	r.SetPathValue("id", saved.ID)
	w = httptest.NewRecorder()
	h.Delete(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var items int64
	e.db.Model(&models.InvoiceItem{}).Count(&items)
	assert.Zero(t, items)

	r = request(t, "GET", "/documents/"+saved.ID+"/pdf", nil, e.user.ID)
	r.SetPathValue("id", saved.ID)
	w = httptest.NewRecorder()
	h.PDF(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentPDFAndArchive(t *testing.T) {
	e := newEnv(t)
	arc := &fakeArchive{}
	h := NewDocumentHandler(e.store, e.gate, arc)
	saved := createDocument(t, h, e.user.ID)

	r := request(t, "GET", "/documents/"+saved.ID+"/pdf?archive=1", nil, e.user.ID)
	r.SetPathValue("id", saved.ID)
	w := httptest.NewRecorder()
	h.PDF(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.True(t, strings.HasPrefix(w.Header().Get("X-Archive-Location"), "s3://test/users/"))
	assert.Equal(t, w.Body.Bytes(), arc.body)
	assert.Contains(t, arc.key, "INV-001")
}

func TestDocumentPDFOtherUser(t *testing.T) {
	e := newEnv(t)
	h := NewDocumentHandler(e.store, e.gate, nil)
	saved := createDocument(t, h, e.user.ID)
	other := testutil.SeedUser(t, e.db, "other@test")

	r := request(t, "GET", "/documents/"+saved.ID+"/print", nil, other.ID)
	r.SetPathValue("id", saved.ID)
	w := httptest.NewRecorder()
	h.Print(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- tasks ----

func newTaskHandler(e env) (*TaskHandler, viewstate.Store) {
	states := viewstate.NewMemoryStore(time.Hour)
	return NewTaskHandler(e.store, e.gate, tasks.NewMemo(time.Minute), states), states
}

func createTask(t *testing.T, h *TaskHandler, userID uint, title string) tasks.Task {
	t.Helper()
	w := httptest.NewRecorder()
	h.Create(w, request(t, "POST", "/tasks", tasks.Form{Title: title}, userID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[taskResponse](t, w).Task
}

func TestTaskCreateWithCalendarDueDate(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)

	w := httptest.NewRecorder()
	h.Create(w, request(t, "POST", "/tasks", map[string]any{"title": "pay rent", "due_date": "2026-10-20"}, e.user.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[taskResponse](t, w).Task
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-10-20", task.DueDate.UTC().Format("2006-01-02"))

	w = httptest.NewRecorder()
	h.Create(w, request(t, "POST", "/tasks", map[string]any{"title": "x", "due_date": "next tuesday"}, e.user.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskCreateValidation(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)

	w := httptest.NewRecorder()
	h.Create(w, request(t, "POST", "/tasks", tasks.Form{Title: "  "}, e.user.ID))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	created := createTask(t, h, e.user.ID, "Write report")
	assert.NotZero(t, created.ID)
	assert.Equal(t, e.user.ID, created.UserID)
}

func TestTaskCreateWithoutSession(t *testing.T) {
	e := newEnv(t)
	h := NewTaskHandler(e.store, authgate.NullGate{}, nil, nil)
	w := httptest.NewRecorder()
	h.Create(w, request(t, "POST", "/tasks", tasks.Form{Title: "x"}, 0))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTaskUpdateAndToggle(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)
	created := createTask(t, h, e.user.ID, "Draft")
	id := jsonID(created.ID)

	r := request(t, "PUT", "/tasks/"+id, tasks.Form{Title: "Final", Priority: models.PriorityHigh}, e.user.ID)
	r.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.Update(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Final", decode[taskResponse](t, w).Task.Title)

	r = request(t, "POST", "/tasks/"+id+"/toggle", nil, e.user.ID)
	r.SetPathValue("id", id)
	w = httptest.NewRecorder()
	h.Toggle(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[taskResponse](t, w)
	assert.True(t, resp.Task.Completed)
	assert.Equal(t, 1, resp.Stats.Completed)
	assert.Equal(t, 100, resp.Stats.CompletionRate)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestTaskSelectionAndBulkComplete(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)
	var ids []uint
	for _, title := range []string{"a", "b", "c"} {
		ids = append(ids, createTask(t, h, e.user.ID, title).ID)
	}

	for _, id := range ids[:2] {
		w := httptest.NewRecorder()
		h.Select(w, request(t, "POST", "/tasks/select", selectRequest{ID: id}, e.user.ID))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.BulkComplete(w, request(t, "POST", "/tasks/bulk/complete", nil, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[taskPage](t, w)
	assert.Equal(t, 2, page.Stats.Completed)
	assert.Equal(t, 1, page.Stats.Active)
	assert.Empty(t, page.State.Selected)
	require.NotNil(t, page.Banner)
	assert.Equal(t, "2 tasks completed", page.Banner.Message)
}

func TestTaskBulkDeleteNeedsConfirmation(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)
	created := createTask(t, h, e.user.ID, "a")

	w := httptest.NewRecorder()
	h.SelectAll(w, request(t, "POST", "/tasks/select-all", nil, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(created.ID)}, decode[map[string]any](t, w)["selected"])

	w = httptest.NewRecorder()
	h.BulkDelete(w, request(t, "POST", "/tasks/bulk/delete", nil, e.user.ID))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	h.BulkDelete(w, request(t, "POST", "/tasks/bulk/delete?confirm=1", nil, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[taskPage](t, w).Tasks)
}

func TestTaskViewStatePersists(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)
	done := createTask(t, h, e.user.ID, "done")
	createTask(t, h, e.user.ID, "open")
	id := jsonID(done.ID)
	r := request(t, "POST", "/tasks/"+id+"/toggle", nil, e.user.ID)
	r.SetPathValue("id", id)
	h.Toggle(httptest.NewRecorder(), r)

	w := httptest.NewRecorder()
	h.SetView(w, request(t, "PUT", "/tasks/view", viewRequest{Filter: tasks.FilterActive, ToggleMode: true}, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	h.List(w, request(t, "GET", "/tasks", nil, e.user.ID))
	page := decode[taskPage](t, w)
	assert.Equal(t, tasks.FilterActive, page.State.Filter)
	assert.Equal(t, tasks.ModeCalendar, page.State.Mode)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, "open", page.Tasks[0].Title)
	assert.Equal(t, 2, page.Stats.Total)
}

func TestTaskSelectionFollowsFilteredView(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)
	done := createTask(t, h, e.user.ID, "done")
	open := createTask(t, h, e.user.ID, "open")
	id := jsonID(done.ID)
	r := request(t, "POST", "/tasks/"+id+"/toggle", nil, e.user.ID)
	r.SetPathValue("id", id)
	h.Toggle(httptest.NewRecorder(), r)

	w := httptest.NewRecorder()
	h.SetView(w, request(t, "PUT", "/tasks/view", viewRequest{Filter: tasks.FilterActive}, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	h.Select(w, request(t, "POST", "/tasks/select", selectRequest{ID: done.ID}, e.user.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.Select(w, request(t, "POST", "/tasks/select", selectRequest{ID: open.ID}, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(open.ID)}, decode[map[string]any](t, w)["selected"])

	w = httptest.NewRecorder()
	h.SetView(w, request(t, "PUT", "/tasks/view", viewRequest{Filter: tasks.FilterCompleted}, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[taskPage](t, w).State.Selected)

	w = httptest.NewRecorder()
	h.BulkDelete(w, request(t, "POST", "/tasks/bulk/delete?confirm=1", nil, e.user.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var remaining int64
	require.NoError(t, e.db.Model(&models.Todo{}).Where("user_id = ?", e.user.ID).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)
}

func TestTaskDelete(t *testing.T) {
	e := newEnv(t)
	h, _ := newTaskHandler(e)
	created := createTask(t, h, e.user.ID, "a")
	id := jsonID(created.ID)

	r := request(t, "DELETE", "/tasks/"+id, nil, e.user.ID)
	r.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.Delete(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)

	r = request(t, "DELETE", "/tasks/"+id+"?confirm=true", nil, e.user.ID)
	r.SetPathValue("id", id)
	w = httptest.NewRecorder()
	h.Delete(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	r = request(t, "DELETE", "/tasks/"+id+"?confirm=true", nil, e.user.ID)
	r.SetPathValue("id", id)
	w = httptest.NewRecorder()
	h.Delete(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- auth ----

func newAuthHandler(e env) *AuthHandler {
	return NewAuthHandler(authgate.NewAccounts(e.store), auth.NewSessions("test-secret", time.Hour), e.gate)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestSignupAndLoginJSON(t *testing.T) {
	e := newEnv(t)
	h := newAuthHandler(e)

	w := httptest.NewRecorder()
	h.Signup(w, request(t, "POST", "/signup", credentials{Email: "New@Example.com", Password: "longenough", Name: "New"}, 0))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, sessionCookie(w))

	w = httptest.NewRecorder()
	h.Signup(w, request(t, "POST", "/signup", credentials{Email: "new@example.com", Password: "longenough"}, 0))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	h.Login(w, request(t, "POST", "/login", credentials{Email: "new@example.com", Password: "wrong-password"}, 0))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, sessionCookie(w))

	w = httptest.NewRecorder()
	h.Login(w, request(t, "POST", "/login", credentials{Email: "new@example.com", Password: "longenough"}, 0))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, sessionCookie(w))
}

func TestLoginFormFailureRerenders(t *testing.T) {
	e := newEnv(t)
	h := newAuthHandler(e)

	r := httptest.NewRequest("POST", "/login", strings.NewReader("email=nobody%40test&password=whatever1"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Login(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	assert.Contains(t, w.Body.String(), `value="nobody@test"`)
}

func TestLoginFormSuccessRedirects(t *testing.T) {
	e := newEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&e.user).Update("password", string(hash)).Error)
	h := newAuthHandler(e)

	r := httptest.NewRequest("POST", "/login", strings.NewReader("email=owner%40test&password=correct-horse"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Login(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/documents", w.Header().Get("Location"))
	assert.NotNil(t, sessionCookie(w))
}

func TestUpdatePassword(t *testing.T) {
	e := newEnv(t)
	h := newAuthHandler(e)
	w := httptest.NewRecorder()
	h.Signup(w, request(t, "POST", "/signup", credentials{Email: "pw@test", Password: "first-pw"}, 0))
	require.Equal(t, http.StatusOK, w.Code)
	uid := uint(decode[map[string]any](t, w)["user_id"].(float64))

	w = httptest.NewRecorder()
	h.UpdatePassword(w, request(t, "POST", "/account/password", passwordRequest{Current: "bad", New: "whatever-pw"}, uid))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	h.UpdatePassword(w, request(t, "POST", "/account/password", passwordRequest{Current: "first-pw", New: "short"}, uid))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	h.UpdatePassword(w, request(t, "POST", "/account/password", passwordRequest{Current: "first-pw", New: "brand-new-pw"}, uid))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	h.Login(w, request(t, "POST", "/login", credentials{Email: "pw@test", Password: "brand-new-pw"}, 0))
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- health ----

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).Check(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_configured", decode[healthResponse](t, w).Database)

	e := newEnv(t)
	w = httptest.NewRecorder()
	NewHealthHandler(e.db).Check(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, w).Database)
}

func TestWriteErrorRedirectsBrowsers(t *testing.T) {
	r := httptest.NewRequest("GET", "/documents/1/print", nil)
	w := httptest.NewRecorder()
	writeError(w, r, auth.ErrSessionExpired)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = httptest.NewRecorder()
	r = request(t, "GET", "/documents/1/print", nil, 0)
	writeError(w, r, auth.ErrSessionExpired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[httpx.ErrorResponse](t, w).Error)
}
