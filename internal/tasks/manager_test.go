package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/internal/testutil"
	"github.com/diewo77/go-backoffice/validation"
)

type staticGate struct{ user *models.User }

func (g staticGate) CurrentSession(context.Context) (*auth.Session, error) {
	if g.user == nil {
		return nil, nil
	}
	return &auth.Session{UserID: g.user.ID}, nil
}

func (g staticGate) CurrentUser(context.Context) (*models.User, error) { return g.user, nil }

type countingStore struct {
	tablestore.Client
	updates, deletes int
	failWrites       error
}

func (s *countingStore) Update(ctx context.Context, table string, patch map[string]any, f ...tablestore.Filter) (int64, error) {
	s.updates++
	if s.failWrites != nil {
		return 0, s.failWrites
	}
	return s.Client.Update(ctx, table, patch, f...)
}

func (s *countingStore) Delete(ctx context.Context, table string, model any, f ...tablestore.Filter) (int64, error) {
	s.deletes++
	if s.failWrites != nil {
		return 0, s.failWrites
	}
	return s.Client.Delete(ctx, table, model, f...)
}

func (s *countingStore) Insert(ctx context.Context, table string, rows any) error {
	if s.failWrites != nil {
		return s.failWrites
	}
	return s.Client.Insert(ctx, table, rows)
}

func setupManager(t *testing.T, n int) (*Manager, *countingStore, *gorm.DB, models.User) {
	t.Helper()
	gdb := testutil.NewTestDB(t)
	user := testutil.SeedUser(t, gdb, "tasks@test")
	for i := 0; i < n; i++ {
		todo := models.Todo{UserID: user.ID, Title: "task", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, gdb.Create(&todo).Error)
	}
	store := &countingStore{Client: tablestore.NewGormClient(gdb)}
	m := NewManager(store, staticGate{user: &user}, NewMemo(time.Minute))
	m.now = func() time.Time { return base.Add(24 * time.Hour) }
	_, err := m.LoadTasks(context.Background(), user.ID)
	require.NoError(t, err)
	return m, store, gdb, user
}

func TestLoadTasksNewestFirst(t *testing.T) {
	m, _, _, _ := setupManager(t, 3)
	tasks := m.Tasks()
	require.Len(t, tasks, 3)
	assert.True(t, tasks[0].CreatedAt.After(tasks[1].CreatedAt))
	assert.True(t, tasks[1].CreatedAt.After(tasks[2].CreatedAt))
}

func TestBulkCompleteThreeOfFive(t *testing.T) {
	m, store, gdb, user := setupManager(t, 5)
	ctx := context.Background()

	ids := IDs(m.Tasks())
	for _, id := range ids[:3] {
		require.NoError(t, m.ToggleSelect(id))
	}
	require.NoError(t, m.BulkComplete(ctx, m.Selected()))

	assert.Equal(t, 1, store.updates, "one batched write")
	stats := m.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 3, stats.Completed)
	assert.Empty(t, m.Selected())

	// the store agrees after reload
	var done int64
	require.NoError(t, gdb.Model(&models.Todo{}).Where("user_id = ? AND completed = ?", user.ID, true).Count(&done).Error)
	assert.EqualValues(t, 3, done)
}

func TestBulkOpsEmptySelectionNoop(t *testing.T) {
	m, store, _, _ := setupManager(t, 2)
	ctx := context.Background()
	require.NoError(t, m.BulkComplete(ctx, nil))
	require.NoError(t, m.BulkDelete(ctx, nil, false))
	assert.Zero(t, store.updates)
	assert.Zero(t, store.deletes)
}

func TestBulkDelete(t *testing.T) {
	m, store, _, user := setupManager(t, 4)
	ctx := context.Background()
	ids := IDs(m.Tasks())
	require.NoError(t, m.ToggleSelect(ids[0]))
	require.NoError(t, m.ToggleSelect(ids[2]))

	assert.ErrorIs(t, m.BulkDelete(ctx, m.Selected(), false), ErrConfirmationRequired)
	assert.Zero(t, store.deletes)

	require.NoError(t, m.BulkDelete(ctx, m.Selected(), true))
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, []uint{ids[1], ids[3]}, IDs(m.Tasks()))
	assert.Empty(t, m.Selected())

	reloaded, err := m.LoadTasks(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded, 2)
}

func TestBulkCompleteFailureLeavesState(t *testing.T) {
	m, store, _, _ := setupManager(t, 2)
	ids := IDs(m.Tasks())
	require.NoError(t, m.ToggleSelect(ids[0]))
	store.failWrites = errors.New("timeout")

	err := m.BulkComplete(context.Background(), m.Selected())
	require.Error(t, err)
	assert.Equal(t, 0, m.Stats().Completed)
	assert.Equal(t, []uint{ids[0]}, m.Selected())
}

func TestToggleCompletion(t *testing.T) {
	m, _, gdb, _ := setupManager(t, 1)
	ctx := context.Background()
	id := m.Tasks()[0].ID
	before := m.Version()

	got, err := m.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.True(t, got.UpdatedAt.Equal(base.Add(24*time.Hour)))
	assert.NotEqual(t, before, m.Version())

	var row models.Todo
	require.NoError(t, gdb.First(&row, id).Error)
	assert.True(t, row.Completed)

	got, err = m.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Completed)

	_, err = m.ToggleCompletion(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTaskPrepends(t *testing.T) {
	m, _, _, user := setupManager(t, 2)
	ctx := context.Background()
	due := base.Add(48 * time.Hour)

	created, err := m.CreateOrUpdateTask(ctx, Form{Title: "  New  ", Description: ptr("  "), DueDate: DateOf(due), Priority: models.PriorityHigh}, nil)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, user.ID, created.UserID)
	assert.Equal(t, "New", created.Title)
	assert.Nil(t, created.Description)
	require.NotNil(t, created.DueDate)
	assert.True(t, due.Equal(*created.DueDate))
	require.Len(t, m.Tasks(), 3)
	assert.Equal(t, created.ID, m.Tasks()[0].ID)
}

func TestCreateTaskValidation(t *testing.T) {
	m, _, _, _ := setupManager(t, 0)
	_, err := m.CreateOrUpdateTask(context.Background(), Form{Title: " "}, nil)
	assert.ErrorIs(t, err, validation.ErrInvalid)
	_, err = m.CreateOrUpdateTask(context.Background(), Form{Title: "x", Priority: "urgent"}, nil)
	assert.ErrorIs(t, err, validation.ErrInvalid)
	assert.Empty(t, m.Tasks())
}

func TestCreateTaskSessionExpired(t *testing.T) {
	m, _, _, _ := setupManager(t, 1)
	m.gate = staticGate{}
	_, err := m.CreateOrUpdateTask(context.Background(), Form{Title: "x"}, nil)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
	assert.Len(t, m.Tasks(), 1)
}

func TestCreateTaskFailureNoLocalChange(t *testing.T) {
	m, store, _, _ := setupManager(t, 1)
	store.failWrites = errors.New("db down")
	_, err := m.CreateOrUpdateTask(context.Background(), Form{Title: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error creating task: db down")
	assert.Len(t, m.Tasks(), 1)
}

func TestUpdateTask(t *testing.T) {
	m, _, gdb, _ := setupManager(t, 2)
	ctx := context.Background()
	id := m.Tasks()[1].ID

	updated, err := m.CreateOrUpdateTask(ctx, Form{Title: "Renamed", Priority: models.PriorityLow}, &id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Renamed", m.Tasks()[1].Title)

	var row models.Todo
	require.NoError(t, gdb.First(&row, id).Error)
	assert.Equal(t, "Renamed", row.Title)
	assert.Equal(t, models.PriorityLow, row.Priority)

	missing := uint(9999)
	_, err = m.CreateOrUpdateTask(ctx, Form{Title: "x"}, &missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	m, _, _, _ := setupManager(t, 2)
	ctx := context.Background()
	id := m.Tasks()[0].ID
	require.NoError(t, m.ToggleSelect(id))

	assert.ErrorIs(t, m.DeleteTask(ctx, id, false), ErrConfirmationRequired)
	require.NoError(t, m.DeleteTask(ctx, id, true))
	assert.Len(t, m.Tasks(), 1)
	assert.Empty(t, m.Selected())
	assert.ErrorIs(t, m.DeleteTask(ctx, id, true), ErrNotFound)
}

func TestViewStateRoundTrip(t *testing.T) {
	m, _, _, _ := setupManager(t, 3)
	ids := IDs(m.Tasks())
	m.SetState(ViewState{Filter: FilterActive, Search: "task", Sort: SortOldest, Mode: ModeCalendar, Selected: []uint{ids[0], 424242}})

	st := m.State()
	assert.Equal(t, FilterActive, st.Filter)
	assert.Equal(t, ModeCalendar, st.Mode)
	assert.Equal(t, []uint{ids[0]}, st.Selected, "unknown ids are dropped")

	m.SetState(ViewState{Filter: "bogus", Sort: "bogus", Mode: "bogus"})
	assert.Equal(t, DefaultViewState().Filter, m.State().Filter)
	assert.Equal(t, ModeList, m.State().Mode)

	assert.Equal(t, ModeCalendar, m.ToggleMode())
	search := "x"
	m.SetView(FilterCompleted, &search, SortPriority)
	assert.Equal(t, ViewState{Filter: FilterCompleted, Search: "x", Sort: SortPriority, Mode: ModeCalendar, Selected: []uint{}}, m.State())
}

func TestSelectAllUsesView(t *testing.T) {
	m, _, _, _ := setupManager(t, 3)
	ctx := context.Background()
	first := m.Tasks()[0].ID
	_, err := m.ToggleCompletion(ctx, first)
	require.NoError(t, err)

	m.SetView(FilterActive, nil, SortNewest)
	m.SelectAll()
	assert.Len(t, m.Selected(), 2)
	assert.NotContains(t, m.Selected(), first)
}

func TestToggleSelectIgnoresHiddenTasks(t *testing.T) {
	m, _, _, _ := setupManager(t, 3)
	ctx := context.Background()
	ids := IDs(m.Tasks())
	_, err := m.ToggleCompletion(ctx, ids[0])
	require.NoError(t, err)

	m.SetView(FilterActive, nil, SortNewest)
	assert.ErrorIs(t, m.ToggleSelect(ids[0]), ErrNotFound)
	assert.Empty(t, m.Selected())

	require.NoError(t, m.ToggleSelect(ids[1]))
	assert.Equal(t, []uint{ids[1]}, m.Selected())
}

func TestFilterChangeDropsHiddenSelection(t *testing.T) {
	m, store, _, _ := setupManager(t, 3)
	ctx := context.Background()
	ids := IDs(m.Tasks())
	_, err := m.ToggleCompletion(ctx, ids[0])
	require.NoError(t, err)

	m.SetView(FilterActive, nil, SortNewest)
	require.NoError(t, m.ToggleSelect(ids[1]))

	m.SetView(FilterCompleted, nil, SortNewest)
	assert.Equal(t, []uint{ids[0]}, IDs(m.View()))
	assert.Empty(t, m.Selected())

	deletesBefore := store.deletes
	require.NoError(t, m.BulkDelete(ctx, m.Selected(), true))
	assert.Equal(t, deletesBefore, store.deletes)
	assert.Len(t, m.Tasks(), 3)

	// switching back does not resurrect the dropped selection
	m.SetView(FilterAll, nil, SortNewest)
	assert.Empty(t, m.Selected())
}

func TestSearchNarrowsSelection(t *testing.T) {
	m, _, _, _ := setupManager(t, 2)
	ids := IDs(m.Tasks())
	m.SelectAll()
	require.Len(t, m.Selected(), 2)

	none := "nothing matches"
	m.SetView("", &none, "")
	assert.Empty(t, m.Selected())
	assert.Empty(t, m.State().Selected)

	all := ""
	m.SetView("", &all, "")
	assert.Empty(t, m.Selected())
	require.NoError(t, m.ToggleSelect(ids[1]))
	assert.Equal(t, []uint{ids[1]}, m.Selected())
}

func TestCompletedTaskLeavesActiveSelection(t *testing.T) {
	m, _, _, _ := setupManager(t, 2)
	ctx := context.Background()
	ids := IDs(m.Tasks())
	m.SetView(FilterActive, nil, SortNewest)
	m.SelectAll()
	require.Len(t, m.Selected(), 2)

	_, err := m.ToggleCompletion(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[1]}, m.Selected())
	assert.Equal(t, []uint{ids[1]}, m.State().Selected)
}

func TestSetStateDropsSelectionOutsideView(t *testing.T) {
	m, _, _, _ := setupManager(t, 2)
	ctx := context.Background()
	ids := IDs(m.Tasks())
	_, err := m.ToggleCompletion(ctx, ids[0])
	require.NoError(t, err)

	m.SetState(ViewState{Filter: FilterActive, Selected: ids})
	assert.Equal(t, []uint{ids[1]}, m.Selected())
}
